package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

const taskColumns = `id, user_id, kind, state, status, current, total,
       payload, result, error, attempts, created_at, updated_at`

// PGRepo implements Repo on Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, t Task) error {
	const query = `
INSERT INTO tasks (` + taskColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	payload, err := json.Marshal(t.Payload)
	if err != nil {
		return err
	}
	var result any
	if len(t.Result) > 0 {
		result = []byte(t.Result)
	}

	_, err = r.DB.ExecContext(ctx, query,
		t.ID,
		nullableString(t.UserID),
		t.Kind,
		t.State,
		t.Status,
		t.Current,
		t.Total,
		payload,
		result,
		nullableString(t.Error),
		t.Attempts,
		t.CreatedAt,
		t.UpdatedAt,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Task, error) {
	const query = `
SELECT ` + taskColumns + `
FROM tasks
WHERE id = $1
LIMIT 1`
	return scanTask(r.DB.QueryRowContext(ctx, query, id))
}

func (r *PGRepo) MarkProgress(ctx context.Context, id string, current, total int, status string) error {
	return r.exec(ctx, `
UPDATE tasks SET state = $2, status = $3, current = $4, total = $5, updated_at = now()
WHERE id = $1`, id, StateProgress, status, current, total)
}

func (r *PGRepo) MarkPending(ctx context.Context, id, status string) error {
	return r.exec(ctx, `
UPDATE tasks SET state = $2, status = $3, updated_at = now()
WHERE id = $1`, id, StatePending, status)
}

func (r *PGRepo) MarkSuccess(ctx context.Context, id string, result []byte) error {
	return r.exec(ctx, `
UPDATE tasks SET state = $2, status = '', result = $3, error = NULL, updated_at = now()
WHERE id = $1`, id, StateSuccess, result)
}

func (r *PGRepo) MarkFailure(ctx context.Context, id, errMsg string) error {
	return r.exec(ctx, `
UPDATE tasks SET state = $2, status = '', error = $3, updated_at = now()
WHERE id = $1`, id, StateFailure, errMsg)
}

func (r *PGRepo) IncAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.DB.QueryRowContext(ctx, `
UPDATE tasks SET attempts = attempts + 1, updated_at = now()
WHERE id = $1
RETURNING attempts`, id).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return attempts, err
}

func (r *PGRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var t Task
	var userID, errMsg sql.NullString
	var payload, result sql.NullString

	err := row.Scan(
		&t.ID,
		&userID,
		&t.Kind,
		&t.State,
		&t.Status,
		&t.Current,
		&t.Total,
		&payload,
		&result,
		&errMsg,
		&t.Attempts,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}

	t.UserID = userID.String
	t.Error = errMsg.String
	if payload.Valid {
		_ = json.Unmarshal([]byte(payload.String), &t.Payload)
	}
	if result.Valid {
		t.Result = json.RawMessage(result.String)
	}
	return t, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
