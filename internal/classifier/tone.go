package classifier

import (
	"math"
	"strings"
)

// Tone is a rough sentiment and subjectivity estimate. Sentiment runs from -1
// (negative) to 1 (positive), subjectivity from 0 (factual) to 1 (opinion).
type Tone struct {
	Sentiment    float64
	Subjectivity float64
}

var positiveWords = wordSet(
	"good", "great", "excellent", "positive", "success", "successful", "win",
	"benefit", "improve", "improved", "growth", "strong", "hope", "progress",
	"agreement", "recovery", "record", "gain",
)

var negativeWords = wordSet(
	"bad", "terrible", "horrific", "horrible", "disaster", "crisis", "threat",
	"fear", "collapse", "destroy", "destroyed", "corrupt", "scandal", "outrage",
	"catastrophe", "panic", "deadly", "evil", "chaos", "lies", "hoax",
)

var subjectiveWords = wordSet(
	"think", "believe", "feel", "opinion", "obviously", "clearly", "definitely",
	"absolutely", "must", "should", "always", "never", "everyone", "nobody",
	"best", "worst", "amazing", "shocking", "unbelievable", "incredible",
	"disgusting", "outrageous", "insane", "stupid",
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// AnalyzeTone estimates tone from word lists. A handful of charged words in a
// long article stays near neutral; the same words dominating a short post do
// not.
func AnalyzeTone(text string) Tone {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return Tone{}
	}

	var pos, neg, subj int
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:'\"()[]")
		if _, ok := positiveWords[w]; ok {
			pos++
		}
		if _, ok := negativeWords[w]; ok {
			neg++
		}
		if _, ok := subjectiveWords[w]; ok {
			subj++
		}
	}

	var tone Tone
	total := float64(len(words))
	if pos+neg > 0 {
		polarity := float64(pos-neg) / float64(pos+neg)
		density := float64(pos+neg) / total
		tone.Sentiment = polarity * math.Min(1, density*20)
	}
	tone.Subjectivity = math.Min(1, float64(subj)/total*15)
	return tone
}
