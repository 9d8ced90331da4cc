package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"veriglow-backend/internal/audit"
	"veriglow-backend/internal/cache"
	"veriglow-backend/internal/classifier"
	"veriglow-backend/internal/factcheck"
	"veriglow-backend/internal/scraper"
	"veriglow-backend/internal/search"
	"veriglow-backend/internal/shared/metrics"
	"veriglow-backend/internal/shared/telemetry"
	"veriglow-backend/internal/translate"
	"veriglow-backend/internal/usage"
)

// UserCounter supplies the user total for public stats.
type UserCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Dispatcher fans completed analyses out to registered webhooks.
// Implementations must not block the request.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID, event string, data any)
}

// Service runs the analysis pipeline and owns history.
type Service struct {
	Repo    Repo
	Users   UserCounter
	Router  *classifier.Router
	Model   classifier.Classifier
	Tracker *classifier.Tracker

	Cache      cache.Cache
	Scraper    *scraper.Scraper
	Translator translate.Translator
	FactCheck  factcheck.Checker
	Search     search.Searcher

	Usage  *usage.Service
	Audit  *audit.Service
	Events Dispatcher

	clock func() time.Time
}

// NewService constructs a Service around the required repo. Optional
// collaborators are set on the returned struct.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo, clock: time.Now}
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock()
}

// AnalyzeRequest is one submission. UserID is always set; Guest marks
// callers without an account, which are served but never stored.
type AnalyzeRequest struct {
	Text     string
	Language string
	UserID   string
	Guest    bool
	IP       string
}

// cacheEntry is the serialized form stored in the cache. The tracker linkage
// is carried alongside because those fields never marshal on Analysis.
type cacheEntry struct {
	Analysis     Analysis `json:"analysis"`
	PredictionID string   `json:"prediction_id,omitempty"`
	Variant      string   `json:"variant,omitempty"`
}

// Analyze classifies a text or URL submission. The cache is consulted on the
// raw trimmed submission so a repeated URL never triggers a second scrape.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (Analysis, error) {
	metrics.IncAnalysisRequested()
	started := s.now()

	submission := strings.TrimSpace(req.Text)
	key := cache.AnalysisKey(submission)

	if !req.Guest && s.Usage != nil {
		ok, _, err := s.Usage.CanConsume(ctx, req.UserID, 1)
		if err != nil {
			telemetry.Warn("usage.check_failed", map[string]any{"user_id": req.UserID, "error": err.Error()})
		} else if !ok {
			metrics.IncAnalysisFailed("quota")
			metrics.IncRateLimited()
			return Analysis{}, usage.ErrLimitReached
		}
	}

	if s.Cache != nil && submission != "" {
		if raw, ok := s.Cache.Get(ctx, key); ok {
			var entry cacheEntry
			if err := json.Unmarshal(raw, &entry); err == nil {
				metrics.IncCacheHit()
				hit := entry.Analysis
				hit.PredictionID = entry.PredictionID
				hit.Variant = entry.Variant
				return s.record(ctx, req, hit, started, true)
			}
		}
		metrics.IncCacheMiss()
	}

	text := submission
	sourceURL := ""
	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
		sourceURL = text
		extracted, err := s.Scraper.Extract(ctx, text)
		if err != nil {
			metrics.IncAnalysisFailed("scrape")
			return Analysis{}, err
		}
		text = extracted
	}

	if utf8.RuneCountInString(text) < MinAnalysisLength {
		metrics.IncAnalysisFailed("text_too_short")
		return Analysis{}, ErrTextTooShort
	}

	analyzed := text
	translated := ""
	if req.Language != translate.LangEnglish {
		outcome := translate.ToEnglish(ctx, s.Translator, text)
		analyzed = outcome.Text
		if outcome.Translated != "" {
			translated = outcome.Text
		}
	}

	clf, variant := s.pickClassifier(req.UserID)
	pred, err := clf.Classify(ctx, analyzed)
	if err != nil {
		metrics.IncAnalysisFailed("classifier")
		return Analysis{}, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	pred = classifier.Normalize(pred)
	metrics.IncPrediction(pred.ModelVersion)

	flags := classifier.RedFlags(analyzed)

	var fc *factcheck.Result
	if s.FactCheck != nil {
		res, err := s.FactCheck.Check(ctx, analyzed)
		if err != nil {
			telemetry.Warn("factcheck.failed", map[string]any{"error": err.Error()})
		} else {
			fc = res
		}
	}
	knownFalse := fc.KnownFalse()
	if knownFalse {
		// A verified false claim overrides whatever the model thought.
		pred.Label = classifier.LabelFake
		pred.ScoreFake = 0.99
		pred.ScoreReal = 0.01
	}

	confidence := pred.Confidence() * 100
	verdict := VerdictQuestionable
	if pred.Real() {
		verdict = VerdictAuthentic
	}
	explanation := classifier.Explain(analyzed, pred.Real(), confidence, flags, knownFalse)

	var sources []search.Source
	if s.Search != nil {
		found, err := s.Search.Search(ctx, analyzed)
		if err != nil {
			telemetry.Warn("search.failed", map[string]any{"error": err.Error()})
		} else {
			sources = found
		}
	}

	predictionID, err := s.Tracker.Record(ctx, analyzed, pred, s.now().Sub(started))
	if err != nil {
		telemetry.Warn("tracker.record_failed", map[string]any{"error": err.Error()})
		predictionID = ""
	}

	a := Analysis{
		Query:        submission,
		Translated:   translated,
		SourceURL:    sourceURL,
		Verdict:      verdict,
		Confidence:   confidence,
		ScoreReal:    pred.ScoreReal,
		ScoreFake:    pred.ScoreFake,
		Explanation:  explanation,
		RedFlags:     flags,
		FactCheck:    fc,
		Sources:      sources,
		ModelVersion: pred.ModelVersion,
		PredictionID: predictionID,
		Variant:      variant,
	}

	if s.Cache != nil {
		if raw, err := json.Marshal(cacheEntry{Analysis: a, PredictionID: predictionID, Variant: variant}); err == nil {
			s.Cache.Set(ctx, key, raw, cache.DefaultTTL)
		}
	}

	return s.record(ctx, req, a, started, false)
}

// record finalizes an analysis for this caller: fresh identity, quota spend,
// history row for account holders, and the completion signals.
func (s *Service) record(ctx context.Context, req AnalyzeRequest, a Analysis, started time.Time, cached bool) (Analysis, error) {
	a.ID = uuid.NewString()
	a.UserID = ""
	a.Cached = cached
	a.Reviewed = false
	a.Correct = nil
	a.CreatedAt = s.now().UTC()

	if !req.Guest {
		a.UserID = req.UserID
		// Cache hits ride an analysis someone already paid for.
		if s.Usage != nil && !cached {
			if _, err := s.Usage.Consume(ctx, req.UserID, 1); err != nil && !errors.Is(err, usage.ErrLimitReached) {
				telemetry.Warn("usage.consume_failed", map[string]any{"user_id": req.UserID, "error": err.Error()})
			}
		}
		if s.Repo != nil {
			if err := s.Repo.Create(ctx, a); err != nil {
				metrics.IncAnalysisFailed("storage")
				return Analysis{}, fmt.Errorf("save history: %w", err)
			}
		}
		s.Audit.LogDataAccess(ctx, req.UserID, "analysis", a.ID, req.IP)
	}

	metrics.IncAnalysisCompleted()
	metrics.IncVerdict(a.Verdict)
	metrics.ObserveConfidence(a.Confidence)
	metrics.ObserveAnalysisDurationMs(float64(s.now().Sub(started).Milliseconds()))
	telemetry.Info("analysis.complete", map[string]any{
		"analysis_id": a.ID,
		"verdict":     a.Verdict,
		"confidence":  a.Confidence,
		"model":       a.ModelVersion,
		"cached":      a.Cached,
		"guest":       req.Guest,
	})
	if s.Events != nil {
		s.Events.Dispatch(ctx, a.UserID, "analysis.completed", a)
	}
	return a, nil
}

func (s *Service) pickClassifier(userID string) (classifier.Classifier, string) {
	if s.Router != nil {
		return s.Router.Pick(userID)
	}
	return s.Model, ""
}

// Review stores reader feedback on an owned history entry and feeds it back
// into prediction monitoring.
func (s *Service) Review(ctx context.Context, userID, analysisID string, correct bool, ip string) error {
	a, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		return err
	}
	// Rows belonging to other users look like they don't exist.
	if a.UserID != userID {
		return ErrNotFound
	}
	if err := s.Repo.MarkReviewed(ctx, analysisID, correct); err != nil {
		return err
	}

	if a.PredictionID != "" {
		predicted := classifier.LabelFake
		if a.Verdict == VerdictAuthentic {
			predicted = classifier.LabelReal
		}
		actual := predicted
		if !correct {
			actual = flipLabel(predicted)
		}
		if err := s.Tracker.Feedback(ctx, a.PredictionID, actual); err != nil {
			telemetry.Warn("tracker.feedback_failed", map[string]any{"prediction_id": a.PredictionID, "error": err.Error()})
		}
	}
	if s.Router != nil && a.Variant != "" {
		s.Router.RecordResult(a.Variant, correct)
	}

	s.Audit.LogDataModification(ctx, userID, "analysis", analysisID, map[string]any{"reviewed": true, "correct": correct}, ip)
	return nil
}

// History lists the caller's analyses newest first.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]Analysis, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.Repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetByID loads one analysis regardless of owner. Moderation uses it to
// confirm a flagged analysis exists; everything user-facing goes through
// History or Review instead.
func (s *Service) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	return s.Repo.GetByID(ctx, analysisID)
}

// DeleteByUser erases the user's entire history. Part of account deletion.
func (s *Service) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return s.Repo.DeleteByUser(ctx, userID)
}

// DeleteOlderThan applies the retention cutoff to stored analyses.
func (s *Service) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.Repo.DeleteOlderThan(ctx, cutoff)
}

// Stats merges verdict aggregates with the user total.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.Repo.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	if s.Users != nil {
		n, err := s.Users.Count(ctx)
		if err != nil {
			telemetry.Warn("stats.user_count_failed", map[string]any{"error": err.Error()})
		} else {
			st.TotalUsers = n
		}
	}
	return st, nil
}

func flipLabel(label string) string {
	if label == classifier.LabelReal {
		return classifier.LabelFake
	}
	return classifier.LabelReal
}
