package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ossmk/ossmk/internal/domain/port/driven"
)

// Daily manual/auto update limits for free accounts. Paid accounts
// (quota_users.is_paid) are unlimited. Grounded in
// original_source/src/ossmk/core/services/analyze.py's backend_update_user,
// which checks a per-kind usage counter before every update.
const (
	freeManualLimit = 5
	freeAutoLimit   = 50
)

// QuotaPolicy implements driven.UpdateQuotaPolicy and driven.GrowthTracker
// (the optional C8 tier) against the quota_* tables.
type QuotaPolicy struct {
	db *DB
}

var (
	_ driven.UpdateQuotaPolicy = (*QuotaPolicy)(nil)
	_ driven.GrowthTracker     = (*QuotaPolicy)(nil)
)

// NewQuotaPolicy wraps db for update-quota enforcement and growth tracking.
func NewQuotaPolicy(db *DB) *QuotaPolicy {
	return &QuotaPolicy{db: db}
}

// UpsertUser registers subjectID (the internal account id, distinct from
// the forge login) so usage and snapshot rows have a foreign subject to key
// on. Safe to call on every request; it only ever inserts or leaves is_paid
// untouched.
func (q *QuotaPolicy) UpsertUser(ctx context.Context, subjectID, githubLogin string, isPaid bool) error {
	_, err := q.db.Pool.Exec(ctx, `
		INSERT INTO quota_users (id, github_login, is_paid)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET github_login = EXCLUDED.github_login
	`, subjectID, githubLogin, isPaid)
	if err != nil {
		return fmt.Errorf("upsert quota user %s: %w", subjectID, err)
	}
	return nil
}

func (q *QuotaPolicy) CheckQuota(ctx context.Context, subjectID string, kind driven.UpdateKind) (driven.QuotaStatus, error) {
	var isPaid bool
	err := q.db.Pool.QueryRow(ctx, `SELECT is_paid FROM quota_users WHERE id = $1`, subjectID).Scan(&isPaid)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return driven.QuotaStatus{}, fmt.Errorf("loading quota user %s: %w", subjectID, err)
	}
	if isPaid {
		return driven.QuotaStatus{Allowed: true, Used: 0, Limit: -1}, nil
	}

	limit := freeManualLimit
	if kind == driven.UpdateAuto {
		limit = freeAutoLimit
	}

	var used int
	err = q.db.Pool.QueryRow(ctx, `
		SELECT count FROM quota_update_usage WHERE user_id = $1 AND kind = $2 AND day = current_date
	`, subjectID, string(kind)).Scan(&used)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return driven.QuotaStatus{}, fmt.Errorf("loading quota usage for %s: %w", subjectID, err)
	}

	if used >= limit {
		return driven.QuotaStatus{
			Allowed: false,
			Reason:  fmt.Sprintf("%s update quota exceeded for today", kind),
			Used:    used,
			Limit:   limit,
		}, nil
	}
	return driven.QuotaStatus{Allowed: true, Used: used, Limit: limit}, nil
}

func (q *QuotaPolicy) RecordUsage(ctx context.Context, subjectID string, kind driven.UpdateKind) error {
	_, err := q.db.Pool.Exec(ctx, `
		INSERT INTO quota_update_usage (user_id, kind, day, count)
		VALUES ($1, $2, current_date, 1)
		ON CONFLICT (user_id, kind, day) DO UPDATE SET count = quota_update_usage.count + 1
	`, subjectID, string(kind))
	if err != nil {
		return fmt.Errorf("recording quota usage for %s: %w", subjectID, err)
	}
	return nil
}

func (q *QuotaPolicy) RecordSnapshot(ctx context.Context, subjectID string, totalScore float64) (prevTotal, newTotal float64, err error) {
	prevTotal, err = q.latestTotal(ctx, subjectID)
	if err != nil {
		return 0, 0, err
	}

	_, err = q.db.Pool.Exec(ctx, `
		INSERT INTO quota_score_snapshots (user_id, total, snapshot_at)
		VALUES ($1, $2, $3)
	`, subjectID, totalScore, time.Now().UTC())
	if err != nil {
		return 0, 0, fmt.Errorf("recording score snapshot for %s: %w", subjectID, err)
	}

	return prevTotal, totalScore, nil
}

func (q *QuotaPolicy) AwardGrowthPoints(ctx context.Context, subjectID string, points, prevTotal, newTotal float64) error {
	_, err := q.db.Pool.Exec(ctx, `
		INSERT INTO quota_growth_points (user_id, points, prev_total, new_total)
		VALUES ($1, $2, $3, $4)
	`, subjectID, points, prevTotal, newTotal)
	if err != nil {
		return fmt.Errorf("awarding growth points for %s: %w", subjectID, err)
	}
	return nil
}

func (q *QuotaPolicy) latestTotal(ctx context.Context, subjectID string) (float64, error) {
	var total float64
	err := q.db.Pool.QueryRow(ctx, `
		SELECT total FROM quota_score_snapshots WHERE user_id = $1 ORDER BY snapshot_at DESC LIMIT 1
	`, subjectID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("loading latest total for %s: %w", subjectID, err)
	}
	return total, nil
}
