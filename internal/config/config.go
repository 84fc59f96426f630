// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ossmk/ossmk/internal/domain/model"
)

// AuthMode distinguishes a static personal-access token from a GitHub App
// installation flow.
type AuthMode string

// AuthMode values.
const (
	AuthToken AuthMode = "token"
	AuthApp   AuthMode = "app"
	AuthNone  AuthMode = "none"
)

// Config holds every OSSMK_*/GITHUB_* variable collected once at pipeline
// construction, per spec.md §6. Nothing downstream reads os.Getenv directly.
type Config struct {
	AuthMode AuthMode

	// Token auth.
	GitHubToken string

	// App auth.
	GitHubAppID             string
	GitHubAppPrivateKey     []byte
	GitHubAppInstallationID string
	GHInstallationOwner     string
	GHInstallationRepo      string

	ExcludeBots bool
	Concurrency int
	RulesFile   string

	// SelfRepoPenalty is nil when OSSMK_SELF_REPO_PENALTY is unset, so an
	// explicit "0" (fully zero self-repo contributions) is distinguishable
	// from "not configured" downstream in score.Config.
	SelfRepoPenalty *float64
	UserOrgs        map[string]struct{}
	OrgRepoPenalty  float64

	DecayMode         string
	DecayHalfLifeDays float64
	DecayWindowDays   float64

	StorageDSN string
	PGDSN      string
}

// Load reads configuration from environment variables and returns a
// validated Config. Auth is optional at load time (AuthNone is valid — the
// forge fetcher simply cannot be constructed); everything else has a
// default, mirroring the teacher's fail-fast-on-malformed,
// warn-and-degrade-on-absent posture.
func Load() (*Config, error) {
	var cfg Config

	if err := loadAuth(&cfg); err != nil {
		return nil, err
	}

	cfg.ExcludeBots = true
	if v, ok := os.LookupEnv("OSSMK_EXCLUDE_BOTS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("OSSMK_EXCLUDE_BOTS has invalid boolean %q: %w", v, err)
		}
		cfg.ExcludeBots = b
	}

	cfg.Concurrency = 5
	if v, ok := os.LookupEnv("OSSMK_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("OSSMK_CONCURRENCY has invalid integer %q: %w", v, err)
		}
		cfg.Concurrency = clamp(n, 1, 20)
	}

	cfg.RulesFile = os.Getenv("OSSMK_RULES_FILE")

	if v, ok := os.LookupEnv("OSSMK_SELF_REPO_PENALTY"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("OSSMK_SELF_REPO_PENALTY has invalid float %q: %w", v, err)
		}
		cfg.SelfRepoPenalty = &f
	}

	cfg.UserOrgs = map[string]struct{}{}
	if v, ok := os.LookupEnv("OSSMK_USER_ORGS"); ok && v != "" {
		for _, org := range strings.Split(v, ",") {
			org = strings.ToLower(strings.TrimSpace(org))
			if org != "" {
				cfg.UserOrgs[org] = struct{}{}
			}
		}
	}

	if v, ok := os.LookupEnv("OSSMK_ORG_REPO_PENALTY"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("OSSMK_ORG_REPO_PENALTY has invalid float %q: %w", v, err)
		}
		cfg.OrgRepoPenalty = f
	}

	cfg.DecayMode = os.Getenv("OSSMK_DECAY_MODE")
	if v, ok := os.LookupEnv("OSSMK_DECAY_HALF_LIFE_DAYS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("OSSMK_DECAY_HALF_LIFE_DAYS has invalid float %q: %w", v, err)
		}
		cfg.DecayHalfLifeDays = f
	}
	if v, ok := os.LookupEnv("OSSMK_DECAY_WINDOW_DAYS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("OSSMK_DECAY_WINDOW_DAYS has invalid float %q: %w", v, err)
		}
		cfg.DecayWindowDays = f
	}

	cfg.StorageDSN = "sqlite:///ossmk.db"
	if v, ok := os.LookupEnv("OSSMK_STORAGE_DSN"); ok && v != "" {
		cfg.StorageDSN = v
	}

	if v, ok := os.LookupEnv("OSSMK_PG_DSN"); ok && v != "" {
		cfg.PGDSN = v
	} else if v, ok := os.LookupEnv("DATABASE_URL"); ok && v != "" {
		cfg.PGDSN = v
	}

	return &cfg, nil
}

func loadAuth(cfg *Config) error {
	appID := os.Getenv("GITHUB_APP_ID")
	if appID != "" {
		keyPEM := os.Getenv("GITHUB_APP_PRIVATE_KEY")
		if keyPEM == "" {
			return fmt.Errorf("GITHUB_APP_ID is set but GITHUB_APP_PRIVATE_KEY is not")
		}
		cfg.AuthMode = AuthApp
		cfg.GitHubAppID = appID
		cfg.GitHubAppPrivateKey = []byte(keyPEM)
		cfg.GitHubAppInstallationID = os.Getenv("GITHUB_APP_INSTALLATION_ID")
		cfg.GHInstallationOwner = os.Getenv("OSSMK_GH_INSTALLATION_OWNER")
		cfg.GHInstallationRepo = os.Getenv("OSSMK_GH_INSTALLATION_REPO")
		return nil
	}

	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		token = os.Getenv("GH_TOKEN")
	}
	if token != "" {
		cfg.AuthMode = AuthToken
		cfg.GitHubToken = token
		return nil
	}

	slog.Warn("no GITHUB_TOKEN/GH_TOKEN or GITHUB_APP_ID configured — forge client cannot be constructed")
	cfg.AuthMode = AuthNone
	return nil
}

// RuleOverrides converts the decay-related environment knobs into a Decay
// override, applied by cmd/ossmk on top of the loaded RuleSet.
// Mode is empty when OSSMK_DECAY_MODE was not set, signaling "no override."
func (c *Config) RuleOverrides() model.Decay {
	return model.Decay{
		Mode:         model.DecayMode(c.DecayMode),
		HalfLifeDays: c.DecayHalfLifeDays,
		WindowDays:   c.DecayWindowDays,
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
