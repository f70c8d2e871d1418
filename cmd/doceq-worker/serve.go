package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pablopunk/doceq"
	sqlstore "github.com/pablopunk/doceq/store/sql"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// gracefulShutdownTimeout bounds how long serve waits for in-flight
// handlers and the recovery sweep to settle once a shutdown signal
// arrives, before giving up and exiting anyway.
const gracefulShutdownTimeout = 30 * time.Second

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the worker: claim jobs, dispatch handlers, sweep lapsed leases",
		Long: `serve starts the queue's two always-on background components in one
process: Pool (claims queued jobs and dispatches them to the pipeline
handlers under bounded concurrency), and RecoveryLoop (periodically
requeues jobs whose lease lapsed because their worker crashed or
stalled). It runs until interrupted (SIGINT/SIGTERM), at which point it
stops claiming new work, waits for in-flight handlers to finish, and
exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), loadConfig(v))
		},
	}
}

func runServe(ctx context.Context, cfg workerConfig) error {
	log := newLogger()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	st := sqlstore.NewStore(db)
	projects := sqlstore.NewProjects(db)
	engine := doceq.NewEngine(st)

	settings, err := st.GetSettings(ctx)
	if err != nil {
		return err
	}
	poolConcurrency := settings.Concurrency
	if poolConcurrency <= 0 {
		poolConcurrency = cfg.Concurrency
	}

	qconfig := doceq.DefaultConfig()
	qconfig.Concurrency = poolConcurrency
	qconfig.LeaseDuration = cfg.leaseDuration()
	qconfig.PollInterval = cfg.pollInterval()
	qconfig.RecoveryInterval = cfg.recoveryInterval()

	registry := doceq.NewRegistry(st)
	h := buildHandlers(engine, projects, cfg, log)
	h.RegisterAll(registry)

	workerID := "host_" + randomHex(16)
	pool := doceq.NewPool(workerID, st, registry, qconfig, log)
	recovery := doceq.NewRecoveryLoop(st, qconfig.RecoveryInterval, log)

	log.Info("starting doceq worker",
		"worker_id", workerID,
		"db", cfg.DBPath,
		"concurrency", qconfig.Concurrency,
		"lease", qconfig.LeaseDuration,
		"poll", qconfig.PollInterval,
		"recovery_interval", qconfig.RecoveryInterval,
	)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := recovery.Start(runCtx); err != nil {
		return err
	}
	if err := pool.Start(runCtx); err != nil {
		return err
	}

	<-runCtx.Done()
	log.Info("shutdown signal received, draining in-flight jobs")

	if err := pool.Stop(gracefulShutdownTimeout); err != nil {
		log.Error("pool did not stop cleanly", "err", err)
	}
	if err := recovery.Stop(gracefulShutdownTimeout); err != nil {
		log.Error("recovery loop did not stop cleanly", "err", err)
	}
	return nil
}
