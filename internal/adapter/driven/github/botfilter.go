package github

import (
	"strings"

	"github.com/ossmk/ossmk/internal/domain/model"
)

var exactBotLogins = map[string]struct{}{
	"dependabot":     {},
	"github-actions": {},
	"renovate":       {},
	"renovate[bot]":  {},
}

// isBot reports whether login matches the fixed bot predicate from
// spec.md §4.4: an exact match against a small known set, a "[bot]"/"-bot"
// suffix, or "[bot]" anywhere in the login.
func isBot(login string) bool {
	lower := strings.ToLower(login)
	if _, ok := exactBotLogins[lower]; ok {
		return true
	}
	return strings.HasSuffix(lower, "[bot]") ||
		strings.HasSuffix(lower, "-bot") ||
		strings.Contains(lower, "[bot]")
}

// filterBots removes events whose UserID satisfies isBot when enabled,
// reusing the input slice's backing array.
func filterBots(events []model.ContributionEvent, enabled bool) []model.ContributionEvent {
	if !enabled {
		return events
	}
	out := events[:0]
	for _, e := range events {
		if !isBot(e.UserID) {
			out = append(out, e)
		}
	}
	return out
}
