package admin

import (
	"context"
	"time"
)

// FlagRepo stores the moderation queue.
type FlagRepo interface {
	Insert(ctx context.Context, f Flag) error
	GetByID(ctx context.Context, id string) (Flag, error)
	// ListByStatus returns flags in arrival order so moderators work the
	// queue oldest first.
	ListByStatus(ctx context.Context, status string, limit int) ([]Flag, error)
	// Resolve closes the flag. Resolving again overwrites the outcome, so
	// a second moderator's call is not an error.
	Resolve(ctx context.Context, id, resolvedBy, resolution string, resolvedAt time.Time) error
}
