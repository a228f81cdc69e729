package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tripfetch/tripfetch/internal/app"
	"github.com/tripfetch/tripfetch/internal/domain"
	"github.com/tripfetch/tripfetch/internal/engine"
	"github.com/tripfetch/tripfetch/internal/extract"
	"github.com/tripfetch/tripfetch/internal/fetcher"
	"github.com/tripfetch/tripfetch/internal/infra/config"
	"github.com/tripfetch/tripfetch/internal/infra/logger"
	"github.com/tripfetch/tripfetch/internal/store"
)

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "tripfetch",
		Short:        "Fetch and unpack Divvy trip-data archives",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (optional)")

	cmd.AddCommand(runCmd(&configPath))
	cmd.AddCommand(serveCmd(&configPath))

	return cmd
}

// env bundles everything a command needs for one invocation.
type env struct {
	app     *app.Context
	orch    *engine.Orchestrator
	history app.HistoryStore
}

// setup wires config, logger, fetcher, extraction pool, optional history
// store and the orchestrator. The returned cleanup releases all of them.
func setup(configPath string) (*env, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config error: %w", err)
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, nil, fmt.Errorf("logger error: %w", err)
	}

	appCtx := app.NewContext(cfg, log)

	f := fetcher.New(fetcher.Options{
		Timeout:   cfg.Download.Timeout,
		VerifyTLS: cfg.Download.VerifyTLS,
		ChunkSize: cfg.Download.ChunkSize,
	})

	pool := extract.NewPool(cfg.Extract.Workers, extract.NewZipExtractor())

	var history app.HistoryStore
	var persistent *store.PersistentStore
	if cfg.Store.SQLitePath != "" {
		persistent, err = store.NewPersistentStore(cfg.Store.SQLitePath)
		if err != nil {
			pool.Close()
			log.Close()
			return nil, nil, fmt.Errorf("store error: %w", err)
		}
		history = persistent
	}

	targets := cfg.Download.Targets
	if len(targets) == 0 {
		targets = domain.DefaultTargets
	}

	orch := engine.NewOrchestrator(appCtx, f, pool, log,
		domain.NewStaticEnumerator(targets), history)

	cleanup := func() {
		pool.Close()
		if persistent != nil {
			persistent.Close()
		}
		log.Close()
	}

	return &env{app: appCtx, orch: orch, history: history}, cleanup, nil
}
