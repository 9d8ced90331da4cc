package classifier

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubClassifier struct {
	err   error
	pred  Prediction
	calls int
}

func (s *stubClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	s.calls++
	if s.err != nil {
		return Prediction{}, s.err
	}
	return s.pred, nil
}

func TestFailoverFallsBackOnError(t *testing.T) {
	primary := &stubClassifier{err: errors.New("backend down")}
	fallback := &stubClassifier{pred: Prediction{Label: LabelReal, ScoreReal: 0.8, ScoreFake: 0.2, ModelVersion: "fallback"}}

	f := NewFailover(
		Backend{Name: "primary", Classifier: primary},
		Backend{Name: "fallback", Classifier: fallback},
	)

	pred, err := f.Classify(context.Background(), "some text")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if pred.ModelVersion != "fallback" {
		t.Fatalf("expected fallback prediction, got %+v", pred)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("expected both backends tried once, got %d/%d", primary.calls, fallback.calls)
	}
}

func TestFailoverCooldownSkipsUnhealthyBackend(t *testing.T) {
	primary := &stubClassifier{err: errors.New("backend down")}
	fallback := &stubClassifier{pred: Prediction{Label: LabelReal, ScoreReal: 0.8, ScoreFake: 0.2}}

	now := time.Now()
	f := NewFailover(
		Backend{Name: "primary", Classifier: primary},
		Backend{Name: "fallback", Classifier: fallback},
	)
	f.now = func() time.Time { return now }

	for i := 0; i < failureThreshold; i++ {
		if _, err := f.Classify(context.Background(), "text"); err != nil {
			t.Fatalf("classify %d: %v", i, err)
		}
	}
	if primary.calls != failureThreshold {
		t.Fatalf("expected %d primary attempts, got %d", failureThreshold, primary.calls)
	}

	// While cooling down the primary must be skipped.
	if _, err := f.Classify(context.Background(), "text"); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if primary.calls != failureThreshold {
		t.Fatalf("expected primary to be skipped, got %d calls", primary.calls)
	}

	status := f.Status()
	if status[0].Healthy {
		t.Fatalf("expected primary unhealthy in status, got %+v", status)
	}
	if !status[1].Healthy {
		t.Fatalf("expected fallback healthy in status, got %+v", status)
	}

	// After the cooldown the primary is tried again.
	now = now.Add(backendCooldown + time.Second)
	if _, err := f.Classify(context.Background(), "text"); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if primary.calls != failureThreshold+1 {
		t.Fatalf("expected primary retried after cooldown, got %d calls", primary.calls)
	}
}

func TestFailoverTriesPrimaryWhenAllCoolingDown(t *testing.T) {
	primary := &stubClassifier{err: errors.New("backend down")}

	now := time.Now()
	f := NewFailover(Backend{Name: "primary", Classifier: primary})
	f.now = func() time.Time { return now }

	for i := 0; i < failureThreshold; i++ {
		if _, err := f.Classify(context.Background(), "text"); err == nil {
			t.Fatalf("expected error from failing backend")
		}
	}

	// The only backend is cooling down, but a lone backend is still tried.
	primary.err = nil
	primary.pred = Prediction{Label: LabelReal, ScoreReal: 0.9, ScoreFake: 0.1}
	pred, err := f.Classify(context.Background(), "text")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if pred.Label != LabelReal {
		t.Fatalf("unexpected prediction: %+v", pred)
	}
}

func TestFailoverSuccessDecaysFailureCount(t *testing.T) {
	primary := &stubClassifier{err: errors.New("flaky")}
	fallback := &stubClassifier{pred: Prediction{Label: LabelReal, ScoreReal: 0.8, ScoreFake: 0.2}}

	f := NewFailover(
		Backend{Name: "primary", Classifier: primary},
		Backend{Name: "fallback", Classifier: fallback},
	)

	// Two failures, then recovery. The decayed count keeps the backend off
	// cooldown through the next failure.
	for i := 0; i < 2; i++ {
		if _, err := f.Classify(context.Background(), "text"); err != nil {
			t.Fatalf("classify: %v", err)
		}
	}
	primary.err = nil
	primary.pred = Prediction{Label: LabelFake, ScoreReal: 0.2, ScoreFake: 0.8}
	if _, err := f.Classify(context.Background(), "text"); err != nil {
		t.Fatalf("classify: %v", err)
	}

	primary.err = errors.New("flaky")
	if _, err := f.Classify(context.Background(), "text"); err != nil {
		t.Fatalf("classify: %v", err)
	}

	status := f.Status()
	if !status[0].Healthy {
		t.Fatalf("expected primary still healthy after decay, got %+v", status)
	}
	if status[0].Failures != 2 {
		t.Fatalf("expected failure count 2, got %d", status[0].Failures)
	}
}
