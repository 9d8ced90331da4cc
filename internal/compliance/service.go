// Package compliance implements the data rights surface: account export,
// account deletion, and the retention sweep.
package compliance

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"veriglow-backend/internal/analyses"
	"veriglow-backend/internal/audit"
	"veriglow-backend/internal/billing"
	"veriglow-backend/internal/shared/storage/object"
	"veriglow-backend/internal/shared/telemetry"
	"veriglow-backend/internal/shared/util"
	"veriglow-backend/internal/usage"
	"veriglow-backend/internal/users"
	"veriglow-backend/internal/webhooks"
)

// DefaultRetentionDays is how long analyses are kept when no policy is
// configured.
const DefaultRetentionDays = 365

const exportPageSize = 100

// Service gathers and erases user data across the feature packages.
type Service struct {
	Users    *users.Service
	Analyses *analyses.Service
	Billing  *billing.Service
	Usage    *usage.Service
	Webhooks *webhooks.Service
	Store    object.ObjectStore
	Audit    *audit.Service

	RetentionDays int

	now func() time.Time
}

func NewService(usersSvc *users.Service, analysesSvc *analyses.Service) *Service {
	return &Service{
		Users:         usersSvc,
		Analyses:      analysesSvc,
		RetentionDays: DefaultRetentionDays,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Bundle is everything we hold about one user, returned inline and written
// to the object store as the JSON artifact.
type Bundle struct {
	User         users.User            `json:"user"`
	History      []analyses.Analysis   `json:"history"`
	Subscription *billing.Subscription `json:"subscription,omitempty"`
	Usage        *usage.Usage          `json:"usage,omitempty"`
	ExportedAt   time.Time             `json:"exported_at"`
}

// Artifacts are the object store keys the export was written to.
type Artifacts struct {
	JSON string `json:"json"`
	CSV  string `json:"csv"`
}

// Export assembles the user's data bundle and persists JSON and CSV copies
// to the object store.
func (s *Service) Export(ctx context.Context, userID, ip string) (Bundle, *Artifacts, error) {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return Bundle{}, nil, err
	}

	history, err := s.fullHistory(ctx, userID)
	if err != nil {
		return Bundle{}, nil, fmt.Errorf("export history: %w", err)
	}

	bundle := Bundle{
		User:       user,
		History:    history,
		ExportedAt: s.now(),
	}
	if s.Billing != nil {
		sub, err := s.Billing.Current(ctx, userID)
		switch {
		case err == nil:
			bundle.Subscription = &sub
		case !errors.Is(err, billing.ErrNotFound):
			return Bundle{}, nil, fmt.Errorf("export subscription: %w", err)
		}
	}
	if s.Usage != nil {
		u, err := s.Usage.Get(ctx, userID)
		if err != nil {
			return Bundle{}, nil, fmt.Errorf("export usage: %w", err)
		}
		bundle.Usage = &u
	}

	artifacts, err := s.writeArtifacts(ctx, userID, bundle)
	if err != nil {
		return Bundle{}, nil, err
	}

	details := map[string]any{"history_rows": len(history)}
	if artifacts != nil {
		details["artifacts"] = []string{artifacts.JSON, artifacts.CSV}
	}
	s.Audit.Log(ctx, audit.Event{
		Action:       audit.ActionDataExport,
		UserID:       userID,
		ResourceType: "account",
		ResourceID:   userID,
		Details:      details,
		IP:           ip,
	})
	telemetry.Info("compliance.exported", map[string]any{
		"user_id":      userID,
		"history_rows": len(history),
	})
	return bundle, artifacts, nil
}

// fullHistory pages through the listing until every row is collected.
func (s *Service) fullHistory(ctx context.Context, userID string) ([]analyses.Analysis, error) {
	var out []analyses.Analysis
	for offset := 0; ; {
		page, total, err := s.Analyses.History(ctx, userID, exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		offset += len(page)
		if len(page) == 0 || int64(offset) >= total {
			return out, nil
		}
	}
}

func (s *Service) writeArtifacts(ctx context.Context, userID string, bundle Bundle) (*Artifacts, error) {
	if s.Store == nil {
		return nil, nil
	}

	raw, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export encode: %w", err)
	}
	sheet, err := historyCSV(bundle.History)
	if err != nil {
		return nil, fmt.Errorf("export csv: %w", err)
	}

	prefix := object.ExportsPrefix + "/" + util.HashUserKey(userID) + "/" + s.now().Format("20060102T150405Z")
	keys := Artifacts{JSON: prefix + ".json", CSV: prefix + ".csv"}
	if _, err := s.Store.SaveWithKey(ctx, keys.JSON, "application/json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("export save json: %w", err)
	}
	if _, err := s.Store.SaveWithKey(ctx, keys.CSV, "text/csv; charset=utf-8", bytes.NewReader(sheet)); err != nil {
		return nil, fmt.Errorf("export save csv: %w", err)
	}
	return &keys, nil
}

func historyCSV(items []analyses.Analysis) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"id", "created_at", "verdict", "confidence", "score_real", "score_fake",
		"source_url", "model_version", "cached", "reviewed", "query",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, a := range items {
		rec := []string{
			a.ID,
			a.CreatedAt.UTC().Format(time.RFC3339),
			a.Verdict,
			strconv.FormatFloat(a.Confidence, 'f', 2, 64),
			strconv.FormatFloat(a.ScoreReal, 'f', 4, 64),
			strconv.FormatFloat(a.ScoreFake, 'f', 4, 64),
			a.SourceURL,
			a.ModelVersion,
			strconv.FormatBool(a.Cached),
			strconv.FormatBool(a.Reviewed),
			a.Query,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// DeleteAccount erases the user's data in dependency order: history and
// stored objects first, then the subscription (canceled at the provider, not
// just locally), usage, webhooks, and finally the user row. Billing rows
// survive as financial records. Tokens are not revoked; they stop resolving
// once the user is gone.
func (s *Service) DeleteAccount(ctx context.Context, userID, ip string) error {
	if _, err := s.Users.GetByID(ctx, userID); err != nil {
		return err
	}

	removed, err := s.Analyses.DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if s.Store != nil {
		if err := s.Store.DeleteUserObjects(ctx, userID); err != nil {
			return fmt.Errorf("delete stored objects: %w", err)
		}
	}
	if s.Billing != nil {
		if err := s.Billing.Cancel(ctx, userID, ip); err != nil && !errors.Is(err, billing.ErrNotFound) {
			return fmt.Errorf("cancel subscription: %w", err)
		}
	}
	if s.Usage != nil {
		if err := s.Usage.Delete(ctx, userID); err != nil {
			return fmt.Errorf("delete usage: %w", err)
		}
	}
	if s.Webhooks != nil {
		if err := s.Webhooks.DeleteAllForUser(ctx, userID); err != nil {
			return fmt.Errorf("delete webhooks: %w", err)
		}
	}
	if err := s.Users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.Audit.LogDataDeletion(ctx, userID, "account", userID, ip)
	telemetry.Info("compliance.account_deleted", map[string]any{
		"user_id":      userID,
		"history_rows": removed,
	})
	return nil
}

// RetentionSweep deletes analyses older than the retention window and
// reports how many went. The worker runs it daily.
func (s *Service) RetentionSweep(ctx context.Context) (int64, error) {
	days := s.RetentionDays
	if days <= 0 {
		days = DefaultRetentionDays
	}
	cutoff := s.now().AddDate(0, 0, -days)

	n, err := s.Analyses.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}
	telemetry.Info("compliance.retention_sweep", map[string]any{
		"deleted": n,
		"cutoff":  cutoff.Format(time.RFC3339),
	})
	return n, nil
}
