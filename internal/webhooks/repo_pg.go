package webhooks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo stores webhooks and deliveries in Postgres.
type PGRepo struct {
	DB *sql.DB
}

const webhookColumns = `id, user_id, url, secret, events, active, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, hook Webhook) error {
	events, err := json.Marshal(hook.Events)
	if err != nil {
		return err
	}
	const query = `
INSERT INTO webhooks (id, user_id, url, secret, events, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = r.DB.ExecContext(ctx, query,
		hook.ID,
		hook.UserID,
		hook.URL,
		hook.Secret,
		events,
		hook.Active,
		hook.CreatedAt,
		hook.UpdatedAt,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`
	return scanWebhook(r.DB.QueryRowContext(ctx, query, id))
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWebhooks(rows)
}

func (r *PGRepo) ListActiveByEvent(ctx context.Context, userID, event string) ([]Webhook, error) {
	match, err := json.Marshal([]string{event})
	if err != nil {
		return nil, err
	}
	query := `
SELECT ` + webhookColumns + `
FROM webhooks
WHERE user_id = $1 AND active AND events @> $2::jsonb
ORDER BY created_at`
	rows, err := r.DB.QueryContext(ctx, query, userID, match)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWebhooks(rows)
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
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

func (r *PGRepo) RecordDelivery(ctx context.Context, d Delivery) error {
	const query = `
INSERT INTO webhook_deliveries (id, webhook_id, event, status_code, success, error, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		d.ID,
		d.WebhookID,
		d.Event,
		d.StatusCode,
		d.Success,
		nullableString(d.Error),
		d.DurationMs,
		d.CreatedAt,
	)
	return err
}

func (r *PGRepo) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]Delivery, error) {
	const query = `
SELECT id, webhook_id, event, status_code, success, error, duration_ms, created_at
FROM webhook_deliveries
WHERE webhook_id = $1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, webhookID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var (
			d      Delivery
			errMsg sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.WebhookID, &d.Event, &d.StatusCode, &d.Success, &errMsg, &d.DurationMs, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Error = errMsg.String
		out = append(out, d)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWebhook(row rowScanner) (Webhook, error) {
	var (
		hook   Webhook
		events []byte
	)
	err := row.Scan(
		&hook.ID,
		&hook.UserID,
		&hook.URL,
		&hook.Secret,
		&events,
		&hook.Active,
		&hook.CreatedAt,
		&hook.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Webhook{}, ErrNotFound
	}
	if err != nil {
		return Webhook{}, err
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &hook.Events); err != nil {
			return Webhook{}, err
		}
	}
	return hook, nil
}

func collectWebhooks(rows *sql.Rows) ([]Webhook, error) {
	var out []Webhook
	for rows.Next() {
		hook, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, hook)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
