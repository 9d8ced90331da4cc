package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"veriglow-backend/internal/factcheck"
)

const analysisColumns = `id, user_id, query, translated, source_url, verdict, confidence,
       score_real, score_fake, explanation, red_flags, fact_check, sources,
       model_version, cached, reviewed, correct, prediction_id, variant, created_at`

// PGRepo implements Repo on Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, a Analysis) error {
	const query = `
INSERT INTO analyses (` + analysisColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	explanation, err := marshalList(a.Explanation)
	if err != nil {
		return err
	}
	redFlags, err := marshalList(a.RedFlags)
	if err != nil {
		return err
	}
	var factCheck any
	if a.FactCheck != nil {
		factCheck, err = json.Marshal(a.FactCheck)
		if err != nil {
			return err
		}
	}
	var sources any
	if len(a.Sources) > 0 {
		sources, err = json.Marshal(a.Sources)
		if err != nil {
			return err
		}
	}

	_, err = r.DB.ExecContext(ctx, query,
		a.ID,
		a.UserID,
		a.Query,
		nullableString(a.Translated),
		nullableString(a.SourceURL),
		a.Verdict,
		a.Confidence,
		a.ScoreReal,
		a.ScoreFake,
		explanation,
		redFlags,
		factCheck,
		sources,
		a.ModelVersion,
		a.Cached,
		a.Reviewed,
		a.Correct,
		nullableString(a.PredictionID),
		nullableString(a.Variant),
		a.CreatedAt,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Analysis, error) {
	const query = `
SELECT ` + analysisColumns + `
FROM analyses
WHERE id = $1
LIMIT 1`
	return scanAnalysis(r.DB.QueryRowContext(ctx, query, id))
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	const query = `
SELECT ` + analysisColumns + `
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PGRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM analyses WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

func (r *PGRepo) MarkReviewed(ctx context.Context, id string, correct bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE analyses SET reviewed = TRUE, correct = $2 WHERE id = $1`, id, correct)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM analyses WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PGRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM analyses WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats aggregates verdict counts in one pass. Rows under the confidence
// floor count as uncertain regardless of verdict, so the three buckets stay
// disjoint.
func (r *PGRepo) Stats(ctx context.Context) (Stats, error) {
	const query = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE verdict = $1 AND confidence >= $3),
       COUNT(*) FILTER (WHERE verdict = $2 AND confidence >= $3),
       COUNT(*) FILTER (WHERE confidence < $3),
       COUNT(*) FILTER (WHERE reviewed),
       COUNT(*) FILTER (WHERE correct)
FROM analyses`

	var st Stats
	err := r.DB.QueryRowContext(ctx, query, VerdictAuthentic, VerdictQuestionable, UncertainBelow).Scan(
		&st.TotalAnalyses,
		&st.TotalReal,
		&st.TotalFake,
		&st.TotalUncertain,
		&st.TotalReviews,
		&st.CorrectVotes,
	)
	return st, err
}

var _ Repo = (*PGRepo)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var userID, translated, sourceURL sql.NullString
	var explanation, redFlags, factCheck, sources sql.NullString
	var correct sql.NullBool
	var predictionID, variant sql.NullString

	err := row.Scan(
		&a.ID,
		&userID,
		&a.Query,
		&translated,
		&sourceURL,
		&a.Verdict,
		&a.Confidence,
		&a.ScoreReal,
		&a.ScoreFake,
		&explanation,
		&redFlags,
		&factCheck,
		&sources,
		&a.ModelVersion,
		&a.Cached,
		&a.Reviewed,
		&correct,
		&predictionID,
		&variant,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}

	a.UserID = userID.String
	a.Translated = translated.String
	a.SourceURL = sourceURL.String
	a.PredictionID = predictionID.String
	a.Variant = variant.String
	if correct.Valid {
		v := correct.Bool
		a.Correct = &v
	}
	if explanation.Valid {
		_ = json.Unmarshal([]byte(explanation.String), &a.Explanation)
	}
	if redFlags.Valid {
		_ = json.Unmarshal([]byte(redFlags.String), &a.RedFlags)
	}
	if factCheck.Valid {
		var fc factcheck.Result
		if err := json.Unmarshal([]byte(factCheck.String), &fc); err == nil {
			a.FactCheck = &fc
		}
	}
	if sources.Valid {
		_ = json.Unmarshal([]byte(sources.String), &a.Sources)
	}
	return a, nil
}

func marshalList(values []string) ([]byte, error) {
	if values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(values)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
