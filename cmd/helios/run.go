package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"helios-hq/helios/pkg/config"
	"helios-hq/helios/pkg/credentials"
	"helios-hq/helios/pkg/executor"
	"helios-hq/helios/pkg/gateway"
	"helios-hq/helios/pkg/requestlog"
	"helios-hq/helios/pkg/server"
	"helios-hq/helios/pkg/state"
	"helios-hq/helios/pkg/telemetry/logging"
	"helios-hq/helios/pkg/telemetry/metrics"
	"helios-hq/helios/pkg/translate"
	"helios-hq/helios/pkg/usage"
)

// refreshSweepBuffer is how close to expiry a token may get before the
// background sweep refreshes it. Wider than the selector's per-request
// buffer so the sweep usually wins.
const refreshSweepBuffer = 15 * time.Minute

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the gateway server with the specified configuration.

Examples:
  # Start with defaults
  helios run

  # Start with a config file
  helios run --config /etc/helios/helios.yaml

  # Override listen address
  helios run --listen 0.0.0.0:8080

  # Validate config without starting
  helios run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	log, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
		Writer:    os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	slog.SetDefault(log)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	store, err := state.Open(cfg.Storage.DataDir, log)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()
	if err := store.Watch(); err != nil {
		log.Warn("state hot reload unavailable", "error", err)
	}

	// The config/env switch turns snapshotting on; the admin settings
	// toggle can flip it at runtime either way.
	if cfg.Storage.RequestLogs {
		settings := store.Settings()
		if !settings.RequestLogs {
			settings.RequestLogs = true
			if err := store.UpdateSettings(settings); err != nil {
				return fmt.Errorf("enable request logs: %w", err)
			}
		}
	}

	recorder, err := usage.OpenRecorder(cfg.Storage.DataDir, log)
	if err != nil {
		return fmt.Errorf("open usage recorder: %w", err)
	}
	lineLog, err := requestlog.OpenLineLog(cfg.Storage.DataDir, log)
	if err != nil {
		return fmt.Errorf("open request log: %w", err)
	}
	snapshots, err := requestlog.OpenSnapshots(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer snapshots.Close()

	collector := metrics.NewCollector(nil)
	execs := executor.NewRegistry(log)
	selector := credentials.NewSelector(store, execs.Refresher, log)

	gw := gateway.New(gateway.Deps{
		Store:      store,
		Selector:   selector,
		Executors:  execs,
		Translator: translate.NewRegistry(),
		Recorder:   recorder,
		Inflight:   usage.NewInflight(collector.Registry()),
		LineLog:    lineLog,
		Snapshots:  snapshots,
		Metrics:    collector,
		Log:        log,
	})

	jobs, err := startJobs(cfg, store, selector, recorder, snapshots, log)
	if err != nil {
		return err
	}
	defer jobs.Stop()

	srv := server.New(&cfg.Server, gw.Routes(), log)
	if err := srv.Start(context.Background()); err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return err
	}
	return nil
}

// startJobs schedules the background maintenance: the hourly credential
// refresh sweep and the daily usage/snapshot trim.
func startJobs(cfg *config.Config, store *state.Store, selector *credentials.Selector, recorder *usage.Recorder, snapshots *requestlog.SnapshotStore, log *slog.Logger) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(cfg.Jobs.RefreshSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		now := time.Now()
		for _, conn := range store.AllConnections() {
			if !conn.IsActive || !conn.NeedsRefresh(now, refreshSweepBuffer) {
				continue
			}
			if refreshed := selector.Refresh(ctx, conn); refreshed == nil {
				log.Warn("refresh sweep failed",
					"provider", conn.Provider,
					"connection", conn.ID)
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule refresh sweep: %w", err)
	}

	_, err = c.AddFunc(cfg.Jobs.TrimSchedule, func() {
		cutoff := time.Now().Add(-cfg.Jobs.UsageRetention)
		trimmed := recorder.TrimBefore(cutoff)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		deleted, err := snapshots.DeleteBefore(ctx, cutoff)
		if err != nil {
			log.Warn("snapshot trim failed", "error", err)
		}
		log.Info("history trimmed",
			"usage_records", trimmed,
			"snapshots", deleted,
			"cutoff", cutoff)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule history trim: %w", err)
	}

	c.Start()
	return c, nil
}
