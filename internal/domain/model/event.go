// Package model holds the data shapes shared by the ingest and scoring
// pipeline: canonical events, subjects, scores, and the rule configuration
// that drives scoring.
package model

import "time"

// EventKind is the canonical contribution taxonomy.
type EventKind string

// EventKind values.
const (
	KindCommit EventKind = "commit"
	KindPR     EventKind = "pr"
	KindReview EventKind = "review"
	KindIssue  EventKind = "issue"
)

// ContributionEvent is the canonical record emitted by a forge fetcher and
// consumed by the scoring engine. id is opaque and globally unique within
// (host, kind) space; it is never mutated after ingest — re-ingest is an
// upsert-ignore on id.
type ContributionEvent struct {
	ID           string
	Kind         EventKind
	RepoID       string // host/owner/name
	UserID       string // actor login; comparisons downstream are lower-cased
	CreatedAt    time.Time
	LinesAdded   int
	LinesRemoved int
}

// DayKey returns the UTC calendar day of CreatedAt as YYYY-MM-DD. It converts
// to UTC explicitly before truncating to a date: events from mixed zones on
// the same absolute day would otherwise fall into different day keys and
// underflow the daily clip.
func (e ContributionEvent) DayKey() string {
	return e.CreatedAt.UTC().Format("2006-01-02")
}
