package application

import (
	"context"

	"github.com/ossmk/ossmk/internal/domain/port/driven"
)

// NoopQuotaPolicy always allows updates and discards usage records. It is
// the default when no Postgres-backed quota policy is configured, per
// spec.md §4.8's "not required to implement the pipeline itself and may be
// a no-op."
type NoopQuotaPolicy struct{}

var _ driven.UpdateQuotaPolicy = NoopQuotaPolicy{}

func (NoopQuotaPolicy) CheckQuota(context.Context, string, driven.UpdateKind) (driven.QuotaStatus, error) {
	return driven.QuotaStatus{Allowed: true, Limit: -1}, nil
}

func (NoopQuotaPolicy) RecordUsage(context.Context, string, driven.UpdateKind) error {
	return nil
}
