package analyses

import (
	"context"
	"time"
)

// Repo stores analysis history.
type Repo interface {
	Create(ctx context.Context, a Analysis) error
	GetByID(ctx context.Context, id string) (Analysis, error)
	// ListByUser returns the user's analyses newest first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	MarkReviewed(ctx context.Context, id string, correct bool) error
	// DeleteByUser removes every row for the user and reports how many went.
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	// DeleteOlderThan removes rows created before the cutoff. Used by the
	// retention sweep.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context) (Stats, error)
}
