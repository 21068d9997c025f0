// Package scheduler drives a cron-scheduled scan of a watch directory for
// new DVR container files, enqueuing a decode job for each one found.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/jmylchreest/dvrtsdecode/internal/config"
	"github.com/jmylchreest/dvrtsdecode/internal/database"
	"github.com/jmylchreest/dvrtsdecode/internal/models"
	"github.com/robfig/cron/v3"
)

// JobType identifies the kind of work a scheduled run performs. Only one
// kind exists today; the type is kept so a second scheduled job (e.g.
// periodic history export) has somewhere natural to slot in.
type JobType string

// JobTypeDecode is the only scheduled job kind: decode every new container
// file found in the watch directory.
const JobTypeDecode JobType = "decode"

// DecodeFunc runs one decode job for the container file at sourcePath,
// returning a populated history record.
type DecodeFunc func(ctx context.Context, sourcePath string) (*models.DecodeJob, error)

// Scheduler polls a watch directory on a cron schedule and runs decode for
// every container file it hasn't seen before.
type Scheduler struct {
	cfg     config.SchedulerConfig
	watchDir string
	decode  DecodeFunc
	jobRepo *database.JobRepository
	logger  *slog.Logger

	cronScheduler *cron.Cron

	mu   sync.Mutex
	seen map[string]bool
}

// New creates a Scheduler. decode is called once per newly observed
// container file; jobRepo may be nil to skip history persistence.
func New(cfg config.SchedulerConfig, watchDir string, decode DecodeFunc, jobRepo *database.JobRepository, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	cronScheduler := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	return &Scheduler{
		cfg:           cfg,
		watchDir:      watchDir,
		decode:        decode,
		jobRepo:       jobRepo,
		logger:        logger,
		cronScheduler: cronScheduler,
		seen:          make(map[string]bool),
	}
}

// Start registers the watch-folder scan on the configured cron schedule and
// starts the cron scheduler. If CatchupOnStartup is set, it also runs one
// scan immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("scheduler disabled, skipping start")
		return nil
	}

	if _, err := s.cronScheduler.AddFunc(s.cfg.CronSchedule, func() { s.scanOnce(ctx) }); err != nil {
		return fmt.Errorf("registering watch-folder schedule %q: %w", s.cfg.CronSchedule, err)
	}

	s.cronScheduler.Start()
	s.logger.Info("scheduler started", slog.String("watch_dir", s.watchDir), slog.String("cron_schedule", s.cfg.CronSchedule))

	if s.cfg.CatchupOnStartup {
		go s.scanOnce(ctx)
	}
	return nil
}

// Stop halts the cron scheduler and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	cronCtx := s.cronScheduler.Stop()
	<-cronCtx.Done()
}

// scanOnce lists the watch directory, skips names already processed this
// process lifetime, and runs decode for every new entry in lexical order
// (container filenames are expected to sort by capture time).
func (s *Scheduler) scanOnce(ctx context.Context) {
	entries, err := os.ReadDir(s.watchDir)
	if err != nil {
		s.logger.Error("scanning watch directory", slog.String("dir", s.watchDir), slog.Any("error", err))
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(s.watchDir, name)

		s.mu.Lock()
		alreadySeen := s.seen[path]
		s.seen[path] = true
		s.mu.Unlock()
		if alreadySeen {
			continue
		}

		s.runDecode(ctx, path)
	}
}

func (s *Scheduler) runDecode(ctx context.Context, sourcePath string) {
	start := time.Now()
	s.logger.Info("decode job starting", slog.String("source", sourcePath))

	job, err := s.decode(ctx, sourcePath)
	if err != nil {
		s.logger.Error("decode job failed", slog.String("source", sourcePath), slog.Any("error", err), slog.Duration("elapsed", time.Since(start)))
	} else {
		s.logger.Info("decode job finished", slog.String("source", sourcePath), slog.String("status", string(job.Status)), slog.Duration("elapsed", time.Since(start)))
	}

	if s.jobRepo != nil && job != nil {
		if saveErr := s.jobRepo.Create(ctx, job); saveErr != nil {
			s.logger.Error("recording decode job history", slog.String("source", sourcePath), slog.Any("error", saveErr))
		}
	}
}
