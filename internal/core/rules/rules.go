// Package rules builds an immutable model.RuleSet from either the built-in
// defaults or a declarative TOML file, per spec.md §4.6 (C6).
package rules

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/ossmk/ossmk/internal/domain/model"
)

// schema mirrors the TOML document shape from spec.md §6 exactly; it is
// decoded first and validated/converted into model.RuleSet second so that
// malformed input fails with a path and cannot leak a half-built RuleSet.
type schema struct {
	DecayMode         string               `toml:"decay_mode"`
	DecayHalfLifeDays float64              `toml:"decay_half_life_days"`
	DecayWindowDays   float64              `toml:"decay_window_days"`
	Dimensions        map[string]dimSchema `toml:"dimensions"`
	Fairness          fairnessSchema       `toml:"fairness"`
}

type dimSchema struct {
	Kinds          []string           `toml:"kinds"`
	Weight         *float64           `toml:"weight"`
	WeightsByKind  map[string]float64 `toml:"weights_by_kind"`
	ClipPerUserDay map[string]int     `toml:"clip_per_user_day"`
}

type fairnessSchema struct {
	ClipPerUserDay map[string]int `toml:"clip_per_user_day"`
}

// Load resolves id into a RuleSet.
//
// "default" or "auto" resolve to the built-in ruleset, unless rulesFileEnv
// names a readable TOML file — in that case it is loaded instead. Any other
// id ending in ".toml" is parsed directly as a path.
func Load(id, rulesFileEnv string) (model.RuleSet, error) {
	if id == "default" || id == "auto" || id == "" {
		if rulesFileEnv != "" {
			if _, err := os.Stat(rulesFileEnv); err == nil {
				return LoadFile(rulesFileEnv)
			}
		}
		return BuiltIn(), nil
	}

	if hasTOMLSuffix(id) {
		return LoadFile(id)
	}

	return BuiltIn(), nil
}

func hasTOMLSuffix(s string) bool {
	return len(s) > 5 && s[len(s)-5:] == ".toml"
}

// LoadFile parses path as a rule TOML document.
func LoadFile(path string) (model.RuleSet, error) {
	var s schema
	meta, err := toml.DecodeFile(path, &s)
	if err != nil {
		return model.RuleSet{}, fmt.Errorf("parsing rule file %s: %w", path, err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		// Unknown keys are tolerated (forward compatibility) but surfaced
		// nowhere else; the spec does not ask for strict rejection here.
		_ = undec
	}
	return convert(s)
}

func convert(s schema) (model.RuleSet, error) {
	rs := model.RuleSet{
		Dimensions: make(map[string]model.Dimension, len(s.Dimensions)),
		Fairness:   make(map[model.EventKind]int, len(s.Fairness.ClipPerUserDay)),
	}

	for name, d := range s.Dimensions {
		dim := model.Dimension{
			Name:   name,
			Kinds:  make(map[model.EventKind]struct{}, len(d.Kinds)),
			Weight: 1.0,
		}
		if d.Weight != nil {
			dim.Weight = *d.Weight
		}
		for _, k := range d.Kinds {
			kind, err := parseKind(k)
			if err != nil {
				return model.RuleSet{}, fmt.Errorf("dimension %q: %w", name, err)
			}
			dim.Kinds[kind] = struct{}{}
		}
		if len(d.WeightsByKind) > 0 {
			dim.WeightsByKind = make(map[model.EventKind]float64, len(d.WeightsByKind))
			for k, w := range d.WeightsByKind {
				kind, err := parseKind(k)
				if err != nil {
					return model.RuleSet{}, fmt.Errorf("dimension %q weights_by_kind: %w", name, err)
				}
				dim.WeightsByKind[kind] = w
			}
		}
		if len(d.ClipPerUserDay) > 0 {
			dim.ClipPerUserDay = make(map[model.EventKind]int, len(d.ClipPerUserDay))
			for k, c := range d.ClipPerUserDay {
				kind, err := parseKind(k)
				if err != nil {
					return model.RuleSet{}, fmt.Errorf("dimension %q clip_per_user_day: %w", name, err)
				}
				dim.ClipPerUserDay[kind] = c
			}
		}
		rs.Dimensions[name] = dim
	}

	for k, c := range s.Fairness.ClipPerUserDay {
		kind, err := parseKind(k)
		if err != nil {
			return model.RuleSet{}, fmt.Errorf("fairness.clip_per_user_day: %w", err)
		}
		rs.Fairness[kind] = c
	}

	mode := model.DecayMode(s.DecayMode)
	switch mode {
	case model.DecayExponential, model.DecayLinear, model.DecayWindow, model.DecayNone:
	case "":
		mode = model.DecayNone
	default:
		return model.RuleSet{}, fmt.Errorf("unknown decay_mode %q", s.DecayMode)
	}
	rs.Decay = model.Decay{
		Mode:         mode,
		HalfLifeDays: s.DecayHalfLifeDays,
		WindowDays:   s.DecayWindowDays,
	}

	return rs, nil
}

func parseKind(s string) (model.EventKind, error) {
	switch model.EventKind(s) {
	case model.KindCommit, model.KindPR, model.KindReview, model.KindIssue:
		return model.EventKind(s), nil
	default:
		return "", fmt.Errorf("unknown kind %q", s)
	}
}

// BuiltIn returns the default ruleset from spec.md §4.6: a "code" dimension
// over pr/commit, a "review" dimension over review, and a "community"
// dimension over issue, with default fairness caps.
func BuiltIn() model.RuleSet {
	return model.RuleSet{
		Dimensions: map[string]model.Dimension{
			"code": {
				Name:   "code",
				Kinds:  map[model.EventKind]struct{}{model.KindPR: {}, model.KindCommit: {}},
				Weight: 1.0,
				WeightsByKind: map[model.EventKind]float64{
					model.KindCommit: 0.8,
					model.KindPR:     1.0,
				},
			},
			"review": {
				Name:   "review",
				Kinds:  map[model.EventKind]struct{}{model.KindReview: {}},
				Weight: 0.6,
			},
			"community": {
				Name:   "community",
				Kinds:  map[model.EventKind]struct{}{model.KindIssue: {}},
				Weight: 0.3,
			},
		},
		Fairness: map[model.EventKind]int{
			model.KindCommit: 20,
			model.KindPR:     5,
			model.KindReview: 50,
			model.KindIssue:  10,
		},
		Decay: model.Decay{Mode: model.DecayNone},
	}
}
