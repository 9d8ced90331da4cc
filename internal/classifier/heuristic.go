package classifier

import (
	"context"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// HeuristicVersion tags predictions made without a model server.
const HeuristicVersion = "heuristic-v1"

// Heuristic is the last-resort classifier. It never fails, so a failover
// chain ending in it always produces a verdict.
type Heuristic struct{}

var _ Classifier = Heuristic{}

func (Heuristic) Classify(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	fake := 0.35

	fake += 0.15 * float64(len(RedFlags(text)))

	words := len(strings.Fields(text))
	if words > 0 {
		if density := float64(strings.Count(text, "!")) / float64(words); density > 0.05 {
			fake += 0.05
		}
	}
	if upperRatio(text) > 0.3 {
		fake += 0.1
	}

	tone := AnalyzeTone(text)
	if tone.Subjectivity > 0.6 {
		fake += 0.1
	}
	if math.Abs(tone.Sentiment) > 0.6 {
		fake += 0.1
	}

	size := utf8.RuneCountInString(text)
	if size < 200 {
		fake += 0.05
	} else if size > 1000 {
		fake -= 0.1
	}

	if fake < 0.02 {
		fake = 0.02
	}
	if fake > 0.98 {
		fake = 0.98
	}

	return Normalize(Prediction{
		ScoreReal:    1 - fake,
		ScoreFake:    fake,
		ModelVersion: HeuristicVersion,
	}), nil
}

func upperRatio(text string) float64 {
	var letters, upper int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}
