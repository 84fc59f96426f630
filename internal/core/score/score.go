// Package score implements the fairness-clipped, decay-weighted scoring
// engine (C7): a single pass over a canonical event stream that accumulates
// per-(user, dimension) values under a RuleSet.
package score

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ossmk/ossmk/internal/domain/model"
)

// Config carries the environment-sourced knobs that the engine applies
// uniformly across the pass, resolved once at construction rather than read
// per-event.
type Config struct {
	// SelfRepoPenalty is nil when unconfigured (no penalty applied). A
	// non-nil value < 1.0 multiplies the weight of events against the
	// user's own repo, including 0 to zero them out entirely.
	SelfRepoPenalty *float64
	UserOrgs        map[string]struct{}
	OrgRepoPenalty  float64
	Now             time.Time // decay reference instant; zero means time.Now()
}

func (c Config) now() time.Time {
	if c.Now.IsZero() {
		return time.Now()
	}
	return c.Now
}

// Score runs the single-pass accumulation described in spec.md §4.7 and
// returns flattened, deterministic Score records with window "all".
//
// events is sorted in place by (user_id, kind, created_at, id) before
// accumulation, per the ordering requirement in spec.md §5 — this makes
// clipping (and therefore the result) independent of input arrival order.
func Score(events []model.ContributionEvent, rs model.RuleSet, cfg Config) []model.Score {
	sortCanonical(events)

	type key struct {
		user, dim string
	}
	totals := make(map[key]float64)
	counters := make(map[string]int) // "user|kind|day"

	now := cfg.now()

	for _, e := range events {
		if clipped(e, rs, counters) {
			continue
		}

		for name, dim := range rs.Dimensions {
			if _, ok := dim.Kinds[e.Kind]; !ok {
				continue
			}

			w := dim.WeightFor(e.Kind)
			w = applyRepoPenalties(w, e, cfg)

			w, drop := applyDecay(w, e, rs.Decay, now)
			if drop {
				continue
			}

			totals[key{e.UserID, name}] += w
		}
	}

	out := make([]model.Score, 0, len(totals))
	for k, v := range totals {
		out = append(out, model.Score{
			SubjectID: k.user,
			Dimension: k.dim,
			Value:     v,
			Window:    model.WindowAll,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubjectID != out[j].SubjectID {
			return out[i].SubjectID < out[j].SubjectID
		}
		return out[i].Dimension < out[j].Dimension
	})
	return out
}

func sortCanonical(events []model.ContributionEvent) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// clipped increments the per-(user,kind,day) counter for e and reports
// whether e should be dropped for exceeding the global fairness cap. A
// missing created_at disables clipping for that event, per spec.md §4.7
// failure semantics.
func clipped(e model.ContributionEvent, rs model.RuleSet, counters map[string]int) bool {
	if e.CreatedAt.IsZero() {
		return false
	}
	cap, ok := rs.Fairness[e.Kind]
	if !ok {
		return false
	}
	k := e.UserID + "|" + string(e.Kind) + "|" + e.DayKey()
	counters[k]++
	return counters[k] > cap
}

func applyRepoPenalties(w float64, e model.ContributionEvent, cfg Config) float64 {
	repo, err := model.ParseRepoID(e.RepoID)
	if err != nil {
		return w
	}
	owner := strings.ToLower(repo.Owner)
	user := strings.ToLower(e.UserID)

	if cfg.SelfRepoPenalty != nil && *cfg.SelfRepoPenalty < 1.0 && owner == user {
		w *= *cfg.SelfRepoPenalty
	}
	if len(cfg.UserOrgs) > 0 {
		if _, in := cfg.UserOrgs[owner]; in {
			w *= cfg.OrgRepoPenalty
		}
	}
	return w
}

// applyDecay applies the configured decay mode to w given e's age relative
// to now. The returned bool reports whether the contribution should be
// dropped entirely (decay_mode="window" past the window).
func applyDecay(w float64, e model.ContributionEvent, d model.Decay, now time.Time) (float64, bool) {
	if e.CreatedAt.IsZero() {
		return w, false
	}

	age := now.Sub(e.CreatedAt).Hours() / 24
	if age < 0 {
		age = 0
	}

	switch d.Mode {
	case model.DecayExponential:
		if d.HalfLifeDays > 0 {
			w *= math.Exp(-math.Ln2 * age / d.HalfLifeDays)
		}
	case model.DecayLinear:
		if d.WindowDays > 0 {
			factor := 1 - age/d.WindowDays
			if factor < 0 {
				factor = 0
			}
			w *= factor
		}
	case model.DecayWindow:
		if d.WindowDays > 0 && age > d.WindowDays {
			return w, true
		}
	case model.DecayNone:
	}

	return w, false
}
