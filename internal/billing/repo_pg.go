package billing

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo stores subscriptions in Postgres.
type PGRepo struct {
	DB *sql.DB
}

const subscriptionColumns = `id, user_id, plan, status, provider_id, current_period_end,
cancel_at_period_end, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, sub Subscription) error {
	const query = `
INSERT INTO subscriptions (id, user_id, plan, status, provider_id, current_period_end, cancel_at_period_end, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.DB.ExecContext(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Plan,
		sub.Status,
		nullableString(sub.ProviderID),
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	return err
}

func (r *PGRepo) CurrentByUser(ctx context.Context, userID string) (Subscription, error) {
	query := `
SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE user_id = $1 AND status <> $2
ORDER BY created_at DESC
LIMIT 1`
	return scanSubscription(r.DB.QueryRowContext(ctx, query, userID, StatusCanceled))
}

func (r *PGRepo) ByProviderID(ctx context.Context, providerID string) (Subscription, error) {
	query := `
SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE provider_id = $1
ORDER BY created_at DESC
LIMIT 1`
	return scanSubscription(r.DB.QueryRowContext(ctx, query, providerID))
}

func (r *PGRepo) Update(ctx context.Context, sub Subscription) error {
	const query = `
UPDATE subscriptions
SET plan = $2, status = $3, provider_id = $4, current_period_end = $5, cancel_at_period_end = $6, updated_at = $7
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query,
		sub.ID,
		sub.Plan,
		sub.Status,
		nullableString(sub.ProviderID),
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.UpdatedAt,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (Subscription, error) {
	var (
		sub        Subscription
		providerID sql.NullString
		periodEnd  sql.NullTime
	)
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Plan,
		&sub.Status,
		&providerID,
		&periodEnd,
		&sub.CancelAtPeriodEnd,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, err
	}
	sub.ProviderID = providerID.String
	if periodEnd.Valid {
		t := periodEnd.Time
		sub.CurrentPeriodEnd = &t
	}
	return sub, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
