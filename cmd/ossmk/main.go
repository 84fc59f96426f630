package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	ghadapter "github.com/ossmk/ossmk/internal/adapter/driven/github"
	pgadapter "github.com/ossmk/ossmk/internal/adapter/driven/postgres"
	sqliteadapter "github.com/ossmk/ossmk/internal/adapter/driven/sqlite"
	storagedispatch "github.com/ossmk/ossmk/internal/adapter/driven/storage"
	"github.com/ossmk/ossmk/internal/application"
	"github.com/ossmk/ossmk/internal/config"
	"github.com/ossmk/ossmk/internal/core/rules"
	"github.com/ossmk/ossmk/internal/core/score"
	"github.com/ossmk/ossmk/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	login := flag.String("user", "", "GitHub login to analyze (required)")
	rulesID := flag.String("rules", "default", "rule set id (\"default\"/\"auto\" honor OSSMK_RULES_FILE)")
	sinceFlag := flag.String("since", "", "lower bound for events: relative (\"90d\", \"24h\") or an absolute timestamp")
	maxRepos := flag.Int("max-repos", 0, "cap on repos scanned for contributions (0 = unbounded)")
	manual := flag.Bool("manual", true, "count this run against the manual update quota instead of auto")
	flag.Parse()

	if *login == "" {
		return errors.New("-user is required")
	}

	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded", "auth_mode", cfg.AuthMode, "storage_dsn", cfg.StorageDSN, "concurrency", cfg.Concurrency)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open storage backend (dispatches on DSN scheme).
	storage, err := storagedispatch.Open(ctx, cfg.StorageDSN)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := storage.Close(); closeErr != nil {
			slog.Error("error closing storage", "error", closeErr)
		}
	}()
	if err := storage.EnsureSchema(ctx); err != nil {
		return err
	}
	slog.Info("storage ready", "dsn", cfg.StorageDSN)

	// 4. Construct the forge client from whichever auth mode was configured.
	// When storage is the embedded SQLite backend, reuse its database for
	// conditional-GET caching rather than opening a second connection.
	var cache driven.HTTPCache
	if sqliteStorage, ok := storage.(interface{ CacheDB() *sqliteadapter.DB }); ok {
		cache = sqliteadapter.NewHTTPCache(sqliteStorage.CacheDB())
	}
	forge, err := newForgeClient(cfg, cache)
	if err != nil {
		return err
	}

	// 5. Load scoring rules, then layer any OSSMK_DECAY_* env overrides on
	// top (OSSMK_DECAY_MODE unset means "no override").
	ruleSet, err := rules.Load(*rulesID, cfg.RulesFile)
	if err != nil {
		return err
	}
	if cfg.DecayMode != "" {
		ruleSet.Decay = cfg.RuleOverrides()
	}

	// 6. Wire an optional quota policy: Postgres backends get real
	// enforcement and growth tracking; everything else is a no-op.
	var quotaOpt application.Option
	if pgStorage, ok := storage.(interface{ QuotaDB() *pgadapter.DB }); ok {
		quotaOpt = application.WithQuotaPolicy(pgadapter.NewQuotaPolicy(pgStorage.QuotaDB()))
	} else {
		quotaOpt = application.WithQuotaPolicy(application.NoopQuotaPolicy{})
	}

	svc := application.NewAnalyzeService(forge, storage, quotaOpt, application.WithMaxRepos(*maxRepos))

	// 7. Run one analysis pass and print the summary.
	kind := driven.UpdateAuto
	if *manual {
		kind = driven.UpdateManual
	}

	scoreCfg := score.Config{
		SelfRepoPenalty: cfg.SelfRepoPenalty,
		UserOrgs:        cfg.UserOrgs,
		OrgRepoPenalty:  cfg.OrgRepoPenalty,
		Now:             time.Now(),
	}

	result, err := svc.Analyze(ctx, *login, ruleSet, scoreCfg, *sinceFlag, kind)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result.Summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	fmt.Println(string(out))

	slog.Info("analysis complete", "user", *login, "events", result.EventsCount)
	return nil
}

func newForgeClient(cfg *config.Config, cache driven.HTTPCache) (driven.ForgeFetcher, error) {
	opts := []ghadapter.Option{
		ghadapter.WithConcurrency(cfg.Concurrency),
		ghadapter.WithBotFilter(cfg.ExcludeBots),
	}
	if cache != nil {
		opts = append(opts, ghadapter.WithCache(cache))
	}

	switch cfg.AuthMode {
	case config.AuthToken:
		return ghadapter.NewTokenClient(cfg.GitHubToken, opts...), nil
	case config.AuthApp:
		return ghadapter.NewAppClient(
			cfg.GitHubAppID,
			cfg.GitHubAppPrivateKey,
			cfg.GitHubAppInstallationID,
			cfg.GHInstallationOwner,
			cfg.GHInstallationRepo,
			opts...,
		), nil
	default:
		return nil, errors.New("no GitHub credentials configured: set GITHUB_TOKEN/GH_TOKEN or GITHUB_APP_ID")
	}
}
