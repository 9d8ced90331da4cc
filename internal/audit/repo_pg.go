package audit

import (
	"context"
	"database/sql"
	"encoding/json"
)

type PGRepo struct {
	DB *sql.DB
}

// NewPGRepo constructs a Postgres-backed audit repo.
func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{DB: db}
}

const eventColumns = `id, action, user_id, resource_type, resource_id, details, ip, created_at`

func (r *PGRepo) Insert(ctx context.Context, event Event) error {
	var details any
	if len(event.Details) > 0 {
		raw, err := json.Marshal(event.Details)
		if err != nil {
			return err
		}
		details = raw
	}
	const query = `
INSERT INTO audit_logs (action, user_id, resource_type, resource_id, details, ip, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.DB.ExecContext(ctx, query,
		event.Action,
		nullableString(event.UserID),
		event.ResourceType,
		nullableString(event.ResourceID),
		details,
		nullableString(event.IP),
		event.CreatedAt,
	)
	return err
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	const query = `
SELECT ` + eventColumns + `
FROM audit_logs
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *PGRepo) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	const query = `
SELECT ` + eventColumns + `
FROM audit_logs
ORDER BY created_at DESC
LIMIT $1`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var event Event
		var userID, resourceID, ip sql.NullString
		var details []byte
		err := rows.Scan(
			&event.ID,
			&event.Action,
			&userID,
			&event.ResourceType,
			&resourceID,
			&details,
			&ip,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		event.UserID = userID.String
		event.ResourceID = resourceID.String
		event.IP = ip.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
