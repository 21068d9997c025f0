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
	internalhttp "github.com/jmylchreest/dvrtsdecode/internal/http"
	"github.com/jmylchreest/dvrtsdecode/internal/http/handlers"
	"github.com/jmylchreest/dvrtsdecode/internal/metrics"
	"github.com/jmylchreest/dvrtsdecode/internal/models"
	"github.com/jmylchreest/dvrtsdecode/internal/scheduler"
	"github.com/jmylchreest/dvrtsdecode/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the decode job submission and status API",
	Long: `Start the dvrtsdecode HTTP server.

The server provides:
- A job submission and status REST API
- A Prometheus metrics endpoint at /metrics
- A cron-scheduled watch-folder scanner, if enabled`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "host to bind to")
	serveCmd.Flags().Int("port", 8080, "port to listen on")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func runServe(_ *cobra.Command, _ []string) error {
	logger := slog.Default()
	logger.Info("dvrtsdecode starting", slog.String("version", version.Short()))

	cfg, err := loadConfig()
	if err != nil {
		return err
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

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	service := decodejob.NewService(cfg, jobRepo, m, logger)

	serverCfg := internalhttp.DefaultServerConfig()
	serverCfg.Host = viper.GetString("server.host")
	serverCfg.Port = viper.GetInt("server.port")

	server := internalhttp.NewServer(serverCfg, logger, version.Short())

	jobHandler := handlers.NewDecodeJobHandler(service, jobRepo)
	jobHandler.Register(server.API())
	server.Router().Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Scheduler.Enabled {
		decodeFn := func(ctx context.Context, sourcePath string) (*models.DecodeJob, error) {
			dest := filepath.Join(cfg.Storage.OutputPath(), filepath.Base(sourcePath)+".ts")
			return service.Submit(ctx, sourcePath, dest)
		}

		// jobRepo is nil here because decodeFn (service.Submit) already
		// persists the job record itself; a second Create would collide
		// on its ULID primary key.
		sched := scheduler.New(cfg.Scheduler, cfg.Storage.WatchDir, decodeFn, nil, logger)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer sched.Stop()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-sig:
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	return server.Shutdown(ctx)
}
