package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/internal/version"
	"github.com/helical/genefold/logger"
	"github.com/helical/genefold/ncbi"
	"github.com/helical/genefold/portal"
	"github.com/helical/genefold/roi"
	"github.com/helical/genefold/server"
	"github.com/helical/genefold/track"
)

// DaemonCmd runs the job workers and the websocket event server.
var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the job workers and websocket event server",
	Long: `Run the genefold daemon: recover interrupted jobs, process queued
jobs with the configured worker pool, and broadcast job updates over the
websocket server.

Jobs that were polling the portal when the previous daemon stopped are
re-attached through their portal-assigned job id instead of being
re-submitted.

Examples:
  genefold daemon
  genefold daemon --workers 4
  genefold daemon --config-watch=false`,
	RunE: runDaemon,
}

var (
	daemonDBPath      string
	daemonWorkers     int
	daemonAddr        string
	daemonConfigWatch bool
)

func init() {
	DaemonCmd.Flags().StringVar(&daemonDBPath, "db-path", "", "Custom database path (overrides config)")
	DaemonCmd.Flags().IntVar(&daemonWorkers, "workers", 0, "Worker count (overrides config)")
	DaemonCmd.Flags().StringVar(&daemonAddr, "addr", "", "Websocket listen address (overrides config)")
	DaemonCmd.Flags().BoolVar(&daemonConfigWatch, "config-watch", true, "Reload configuration when genefold.toml changes")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if daemonWorkers > 0 {
		cfg.Runner.Workers = daemonWorkers
	}
	if daemonAddr != "" {
		cfg.Server.Addr = daemonAddr
	}

	database, err := openDatabase(cfg, daemonDBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	log := logger.Logger
	tracker := track.NewTracker(database)

	registry := track.NewHandlerRegistry()
	registry.Register(ncbi.NewFetchHandler(ncbi.NewClient(cfg.NCBI, log), log))
	registry.Register(roi.NewScanHandler(cfg.ROI, log))
	registry.Register(portal.NewPredictHandler(tracker, cfg.Portal, func() (portal.Driver, error) {
		return portal.NewChromeDriver(cfg.Portal)
	}, log))

	runner := track.NewRunner(context.Background(), tracker, registry, track.RunnerConfig{
		Workers:      cfg.Runner.Workers,
		PollInterval: time.Duration(cfg.Runner.PollIntervalSeconds) * time.Second,
	}, log)
	runner.Start()

	srv := server.New(cfg.Server, tracker, log)
	if err := srv.Start(); err != nil {
		runner.Stop()
		return err
	}

	watcher := startConfigWatcher(log)
	if watcher != nil {
		defer watcher.Stop()
	}

	pterm.Info.Printf("genefold daemon %s\n", version.Get().Version)
	pterm.Info.Printf("Workers: %d, events: ws://%s/ws\n", cfg.Runner.Workers, srv.Addr())
	log.Infow("Daemon started",
		"handlers", registry.Names(), "workers", cfg.Runner.Workers, "addr", srv.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

	shutdownDone := make(chan error, 1)
	go func() {
		runner.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		shutdownDone <- srv.Stop(ctx)
	}()

	select {
	case err := <-shutdownDone:
		if err != nil {
			return err
		}
		pterm.Success.Println("Daemon stopped cleanly")
		return nil
	case <-sigChan:
		pterm.Warning.Println("\nForce shutdown - exiting immediately")
		os.Exit(1)
		return nil // unreachable
	}
}

// startConfigWatcher watches genefold.toml for edits. Reloads are logged;
// in-flight sessions keep their settings, new jobs pick up the change.
func startConfigWatcher(log *zap.SugaredLogger) *config.Watcher {
	if !daemonConfigWatch {
		return nil
	}
	if _, err := os.Stat("genefold.toml"); err != nil {
		return nil
	}

	watcher, err := config.NewWatcher("genefold.toml")
	if err != nil {
		log.Warnw("Config watcher unavailable", "error", err)
		return nil
	}
	watcher.OnReload(func(cfg *config.Config) error {
		log.Infow("Configuration reloaded", "path", "genefold.toml")
		return nil
	})
	watcher.Start()
	return watcher
}
