package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, email, name, picture, password_hash, role, plan, banned,
failed_logins, last_failed_at, lockout_until, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, name, picture, password_hash, role, plan, banned, failed_logins, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, now(), now())`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		nullableString(user.Picture),
		nullableString(user.PasswordHash),
		user.Role,
		user.Plan,
		user.Banned,
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *PGRepo) Upsert(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, name, picture, role, plan, banned, failed_logins, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, FALSE, 0, now(), now())
ON CONFLICT (email) DO UPDATE SET
  name = EXCLUDED.name,
  picture = COALESCE(EXCLUDED.picture, users.picture),
  updated_at = now()`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		nullableString(user.Picture),
		defaultIfEmpty(user.Role, "user"),
		defaultIfEmpty(user.Plan, DefaultPlan),
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, userID))
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	const query = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, email))
}

func (r *PGRepo) UpdateLoginState(ctx context.Context, userID string, failedLogins int, lastFailedAt, lockoutUntil *time.Time) error {
	const query = `
UPDATE users
SET failed_logins = $2, last_failed_at = $3, lockout_until = $4, updated_at = now()
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, userID, failedLogins, nullableTime(lastFailedAt), nullableTime(lockoutUntil))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepo) SetRole(ctx context.Context, userID, role string) error {
	const query = `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, userID, role)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepo) SetBanned(ctx context.Context, userID string, banned bool) error {
	const query = `UPDATE users SET banned = $2, updated_at = now() WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, userID, banned)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepo) SetPlan(ctx context.Context, userID, plan string) error {
	const query = `UPDATE users SET plan = $2, updated_at = now() WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, userID, plan)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]User, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT ` + userColumns + `
FROM users
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func (r *PGRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func (r *PGRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) scanOne(row *sql.Row) (User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var picture sql.NullString
	var passwordHash sql.NullString
	var lastFailedAt sql.NullTime
	var lockoutUntil sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&picture,
		&passwordHash,
		&user.Role,
		&user.Plan,
		&user.Banned,
		&user.FailedLogins,
		&lastFailedAt,
		&lockoutUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	if picture.Valid {
		user.Picture = picture.String
	}
	if passwordHash.Valid {
		user.PasswordHash = passwordHash.String
	}
	if lastFailedAt.Valid {
		t := lastFailedAt.Time
		user.LastFailedAt = &t
	}
	if lockoutUntil.Valid {
		t := lockoutUntil.Time
		user.LockoutUntil = &t
	}
	return user, nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}

func defaultIfEmpty(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
