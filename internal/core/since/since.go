// Package since parses the "since" window argument accepted throughout the
// pipeline: a relative duration ("30d", "12h") or an absolute ISO-8601
// timestamp, per spec.md §4.5 (C5).
package since

import (
	"regexp"
	"strconv"
	"time"
)

var relativePattern = regexp.MustCompile(`^(\d+)([dh])$`)

// Parse resolves raw into an ISO-8601 (RFC 3339) timestamp string.
//
// Relative inputs ("30d", "12h") resolve against the current UTC instant.
// Absolute inputs missing a zone default to UTC. If maxDays is positive, the
// resolved instant is clamped to no earlier than now−maxDays. Unparseable
// input is returned verbatim — it is the caller's choice whether to forward
// it (e.g. to an upstream API that may reject it).
func Parse(raw string, maxDays int, now time.Time) string {
	if raw == "" {
		return ""
	}

	resolved, ok := parseOne(raw, now)
	if !ok {
		return raw
	}

	if maxDays > 0 {
		earliest := now.Add(-time.Duration(maxDays) * 24 * time.Hour)
		if resolved.Before(earliest) {
			resolved = earliest
		}
	}

	return resolved.UTC().Format(time.RFC3339)
}

func parseOne(raw string, now time.Time) (time.Time, bool) {
	if m := relativePattern.FindStringSubmatch(raw); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		var d time.Duration
		switch m[2] {
		case "d":
			d = time.Duration(n) * 24 * time.Hour
		case "h":
			d = time.Duration(n) * time.Hour
		default:
			return time.Time{}, false
		}
		return now.UTC().Add(-d), true
	}

	for _, layout := range []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
