package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seantiz/taskroute/internal/api"
	"github.com/seantiz/taskroute/internal/backend"
	"github.com/seantiz/taskroute/internal/backend/simulated"
	"github.com/seantiz/taskroute/internal/config"
	"github.com/seantiz/taskroute/internal/engine"
	"github.com/seantiz/taskroute/internal/planner"
	"github.com/seantiz/taskroute/internal/router"
	"github.com/seantiz/taskroute/internal/store"
	"github.com/seantiz/taskroute/internal/telemetry"
)

const hostSampleWindow = 200 * time.Millisecond

type serveOptions struct {
	addr           string
	dbPath         string
	useSuccessRate bool
}

func newServeCommand() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and workflow engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides TASKROUTE_LISTEN_ADDR)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides TASKROUTE_DB_PATH)")
	cmd.Flags().BoolVar(&opts.useSuccessRate, "simulate-failures", false, "fail simulated steps according to platform success rate")
	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	cfg := config.Load()
	if opts.addr != "" {
		cfg.ListenAddr = opts.addr
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}

	out, closer := cfg.LogWriter(os.Stdout)
	defer closer.Close()
	logger := config.NewLogger(out, cfg.LogLevel)

	logger.Info("taskroute: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"catalog", cfg.CatalogPath,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	platforms, cls, err := newPlatforms(ctx, cfg, logger)
	if err != nil {
		return err
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	backends := backend.NewRegistry()
	backends.SetDefault(simulated.New(simulated.Config{
		Tick:           cfg.StepTick,
		Increment:      cfg.StepIncrement,
		UseSuccessRate: opts.useSuccessRate,
	}, logger))

	eng := engine.NewEngine(engine.Deps{
		Store:      db,
		Platforms:  platforms,
		Classifier: cls,
		Router:     router.New(router.ExcludePolicy(cfg.ExcludePlatforms...)),
		Planner: planner.New(planner.Config{
			CostRate:        cfg.CostRate,
			DefaultPlatform: cfg.DefaultPlatform,
		}),
		Backends: backends,
		Logger:   logger,
	})

	if cfg.TelemetryInterval > 0 {
		poller := telemetry.NewPoller(platforms, cfg.TelemetryInterval, logger,
			telemetry.NewJitterSource(uint64(time.Now().UnixNano())),
			telemetry.NewHostSource(hostSampleWindow),
		)
		go poller.Run(ctx)
	}

	return api.NewServer(cfg.ListenAddr, eng, platforms, backends, logger).Run(ctx)
}
