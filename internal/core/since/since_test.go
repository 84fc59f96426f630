package since

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRelative(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	got := Parse("30d", 0, now)
	want := now.Add(-30 * 24 * time.Hour).Format(time.RFC3339)
	assert.Equal(t, want, got)

	got = Parse("12h", 0, now)
	want = now.Add(-12 * time.Hour).Format(time.RFC3339)
	assert.Equal(t, want, got)
}

func TestParseAbsolute(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	got := Parse("2026-01-01", 0, now)
	assert.Equal(t, "2026-01-01T00:00:00Z", got)

	got = Parse("2026-01-01T08:30:00Z", 0, now)
	assert.Equal(t, "2026-01-01T08:30:00Z", got)
}

func TestParseEmpty(t *testing.T) {
	assert.Equal(t, "", Parse("", 0, time.Now()))
}

func TestParseUnparseablePassesThrough(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "not-a-date", Parse("not-a-date", 0, now))
}

func TestParseClampsToMaxDays(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	got := Parse("2000-01-01", 90, now)
	want := now.Add(-90 * 24 * time.Hour).Format(time.RFC3339)
	assert.Equal(t, want, got)
}

func TestParseWithinMaxDaysUnaffected(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	got := Parse("5d", 90, now)
	want := now.Add(-5 * 24 * time.Hour).Format(time.RFC3339)
	assert.Equal(t, want, got)
}
