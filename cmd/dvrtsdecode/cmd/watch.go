package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jmylchreest/dvrtsdecode/internal/database"
	"github.com/jmylchreest/dvrtsdecode/internal/decodejob"
	"github.com/jmylchreest/dvrtsdecode/internal/metrics"
	"github.com/jmylchreest/dvrtsdecode/internal/models"
	"github.com/jmylchreest/dvrtsdecode/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the watch-folder scheduler without the HTTP API",
	Long: `Watch starts the cron-scheduled watch-folder scanner standalone,
decoding every new container file found in storage.watch_dir and recording
the result to the configured database, without exposing the HTTP API.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Scheduler.Enabled {
		return fmt.Errorf("scheduler.enabled is false; nothing to watch")
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	jobRepo := database.NewJobRepository(db)
	m := metrics.New(prometheus.NewRegistry())
	service := decodejob.NewService(cfg, jobRepo, m, logger)

	decodeFn := func(ctx context.Context, sourcePath string) (*models.DecodeJob, error) {
		dest := filepath.Join(cfg.Storage.OutputPath(), filepath.Base(sourcePath)+".ts")
		return service.Submit(ctx, sourcePath, dest)
	}

	sched := scheduler.New(cfg.Scheduler, cfg.Storage.WatchDir, decodeFn, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("received shutdown signal")
	sched.Stop()
	return nil
}
