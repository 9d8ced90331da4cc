package classifier

import "context"

// Class labels. The numeric codes stored by the tracker follow the training
// data convention: 0 real, 1 fake.
const (
	LabelReal = "real"
	LabelFake = "fake"

	CodeReal = 0
	CodeFake = 1
)

// Prediction is one classification outcome. Scores are probabilities in
// [0, 1] that sum to 1 after Normalize.
type Prediction struct {
	Label        string  `json:"label"`
	ScoreReal    float64 `json:"score_real"`
	ScoreFake    float64 `json:"score_fake"`
	ModelVersion string  `json:"model_version"`
}

// Real reports whether the prediction landed on the real side.
func (p Prediction) Real() bool { return p.Label == LabelReal }

// Confidence returns the winning probability.
func (p Prediction) Confidence() float64 {
	if p.Real() {
		return p.ScoreReal
	}
	return p.ScoreFake
}

// Code returns the numeric class for storage.
func (p Prediction) Code() int {
	if p.Real() {
		return CodeReal
	}
	return CodeFake
}

// LabelFromCode maps a stored class code back to its label.
func LabelFromCode(code int) string {
	if code == CodeReal {
		return LabelReal
	}
	return LabelFake
}

// Classifier scores a news text. Implementations must be safe for concurrent
// use.
type Classifier interface {
	Classify(ctx context.Context, text string) (Prediction, error)
}

// Normalize clamps both scores into [0, 1], rescales them to sum to 1 and
// sets the label to the winning side.
func Normalize(p Prediction) Prediction {
	p.ScoreReal = clamp01(p.ScoreReal)
	p.ScoreFake = clamp01(p.ScoreFake)

	sum := p.ScoreReal + p.ScoreFake
	if sum == 0 {
		p.ScoreReal, p.ScoreFake = 0.5, 0.5
	} else {
		p.ScoreReal /= sum
		p.ScoreFake /= sum
	}

	if p.ScoreReal >= p.ScoreFake {
		p.Label = LabelReal
	} else {
		p.Label = LabelFake
	}
	return p
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
