package classifier

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// Explain builds the reason list shown with a verdict. confidence is a
// percentage (0-100); knownFalse marks a fact-check override.
func Explain(text string, real bool, confidence float64, redFlags []string, knownFalse bool) []string {
	reasons := make([]string, 0, 8)

	switch {
	case confidence > 90:
		reasons = append(reasons, fmt.Sprintf("AI model is extremely confident (%.1f%%) based on training data patterns", confidence))
	case confidence > 70:
		reasons = append(reasons, fmt.Sprintf("AI model shows strong indicators (%.1f%%) matching this category", confidence))
	case confidence > 50:
		reasons = append(reasons, fmt.Sprintf("AI found patterns (%.1f%%) leaning towards this verdict, though with lower certainty", confidence))
	}

	tone := AnalyzeTone(text)
	size := utf8.RuneCountInString(text)
	if real {
		if tone.Subjectivity < 0.4 {
			reasons = append(reasons, "Writing style is objective and neutral (common in professional journalism)")
		}
		if tone.Sentiment > -0.1 && tone.Sentiment < 0.1 {
			reasons = append(reasons, "Tone is balanced, avoiding emotionally charged language")
		}
		if size > 1000 {
			reasons = append(reasons, "Article length indicates detailed reporting")
		}
	} else {
		if tone.Subjectivity > 0.6 {
			reasons = append(reasons, "Writing is highly subjective/opinionated rather than factual")
		}
		if math.Abs(tone.Sentiment) > 0.6 {
			reasons = append(reasons, "Uses highly emotional language to trigger a reaction")
		}
		if size < 200 {
			reasons = append(reasons, "Text is very short, lacking detail typical of credible reports")
		}
	}

	reasons = append(reasons, redFlags...)
	if knownFalse {
		reasons = append(reasons, "CRITICAL: Matches a known false claim in fact-checking database")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "Linguistic patterns (word choice/grammar) closely match the training dataset for this category")
	}
	return reasons
}
