package admin

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGFlagRepo stores the moderation queue in Postgres.
type PGFlagRepo struct {
	DB *sql.DB
}

const flagColumns = `id, analysis_id, reporter_id, reason, status, resolved_by, resolution, created_at, resolved_at`

func (r *PGFlagRepo) Insert(ctx context.Context, f Flag) error {
	const query = `
INSERT INTO moderation_queue (id, analysis_id, reporter_id, reason, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, query,
		f.ID,
		f.AnalysisID,
		nullableString(f.ReporterID),
		f.Reason,
		f.Status,
		f.CreatedAt,
	)
	return err
}

func (r *PGFlagRepo) GetByID(ctx context.Context, id string) (Flag, error) {
	query := `SELECT ` + flagColumns + ` FROM moderation_queue WHERE id = $1`
	return scanFlag(r.DB.QueryRowContext(ctx, query, id))
}

func (r *PGFlagRepo) ListByStatus(ctx context.Context, status string, limit int) ([]Flag, error) {
	query := `
SELECT ` + flagColumns + `
FROM moderation_queue
WHERE status = $1
ORDER BY created_at
LIMIT $2`
	rows, err := r.DB.QueryContext(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *PGFlagRepo) Resolve(ctx context.Context, id, resolvedBy, resolution string, resolvedAt time.Time) error {
	const query = `
UPDATE moderation_queue
SET status = $2, resolved_by = $3, resolution = $4, resolved_at = $5
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, FlagResolved, nullableString(resolvedBy), resolution, resolvedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlag(row rowScanner) (Flag, error) {
	var (
		f          Flag
		reporter   sql.NullString
		resolvedBy sql.NullString
		resolution sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&f.ID,
		&f.AnalysisID,
		&reporter,
		&f.Reason,
		&f.Status,
		&resolvedBy,
		&resolution,
		&f.CreatedAt,
		&resolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Flag{}, ErrNotFound
	}
	if err != nil {
		return Flag{}, err
	}
	f.ReporterID = reporter.String
	f.ResolvedBy = resolvedBy.String
	f.Resolution = resolution.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		f.ResolvedAt = &t
	}
	return f, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ FlagRepo = (*PGFlagRepo)(nil)
