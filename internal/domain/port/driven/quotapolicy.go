package driven

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned (wrapped) by the analyze service when
// CheckQuota reports that the subject has exhausted its update allowance.
// CheckQuota itself reports this through QuotaStatus.Allowed, not an error.
var ErrQuotaExceeded = errors.New("update quota exceeded")

// UpdateKind distinguishes manual (user-triggered) from automatic (scheduled)
// analysis runs for quota accounting.
type UpdateKind string

// UpdateKind values.
const (
	UpdateManual UpdateKind = "manual"
	UpdateAuto   UpdateKind = "auto"
)

// QuotaStatus reports the outcome of a quota check.
type QuotaStatus struct {
	Allowed bool
	Reason  string
	Used    int
	Limit   int
}

// UpdateQuotaPolicy is the optional coarse policy layer from C8 enforcing at
// most N manual updates per subject per rolling window. Implementations may
// be a no-op (always Allowed) when quota enforcement is not configured; the
// pipeline itself never requires a non-trivial implementation.
type UpdateQuotaPolicy interface {
	CheckQuota(ctx context.Context, subjectID string, kind UpdateKind) (QuotaStatus, error)
	RecordUsage(ctx context.Context, subjectID string, kind UpdateKind) error
}

// GrowthTracker records score-total snapshots over time and awards growth
// points for positive movement between them. It is an optional add-on to
// UpdateQuotaPolicy: a backend may implement UpdateQuotaPolicy without it,
// in which case callers skip snapshotting entirely.
type GrowthTracker interface {
	// RecordSnapshot stores totalScore as the subject's latest snapshot and
	// returns the previous and new running totals.
	RecordSnapshot(ctx context.Context, subjectID string, totalScore float64) (prevTotal, newTotal float64, err error)

	// AwardGrowthPoints logs a positive-growth event. Callers only invoke
	// this when newTotal > prevTotal.
	AwardGrowthPoints(ctx context.Context, subjectID string, points, prevTotal, newTotal float64) error
}
