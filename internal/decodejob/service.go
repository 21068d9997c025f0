package decodejob

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmylchreest/dvrtsdecode/internal/config"
	"github.com/jmylchreest/dvrtsdecode/internal/database"
	"github.com/jmylchreest/dvrtsdecode/internal/diagnostics"
	"github.com/jmylchreest/dvrtsdecode/internal/metrics"
	"github.com/jmylchreest/dvrtsdecode/internal/models"
	"github.com/jmylchreest/dvrtsdecode/internal/ringbuffer"
	"github.com/jmylchreest/dvrtsdecode/internal/sink"
	"github.com/jmylchreest/dvrtsdecode/internal/sysinfo"
)

// Service ties the decode engine (Run) to the ambient concerns surrounding
// it: sink selection, history persistence, rejected-group diagnostics,
// metrics, and a preflight resource check. Every field but Decode is
// optional, so callers (CLI, HTTP handler, scheduler) can share one Service
// configured as richly or as minimally as their entrypoint needs.
type Service struct {
	Decode      config.DecodeConfig
	Sink        config.SinkConfig
	Diagnostics config.DiagnosticsConfig

	Jobs    *database.JobRepository
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// NewService builds a Service from application configuration.
func NewService(cfg *config.Config, jobs *database.JobRepository, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Decode:      cfg.Decode,
		Sink:        cfg.Sink,
		Diagnostics: cfg.Diagnostics,
		Jobs:        jobs,
		Metrics:     m,
		Logger:      logger,
	}
}

// Submit runs a decode job for sourcePath, writing cleartext output to
// destDescriptor through the configured sink, and returns a DecodeJob
// record reflecting the outcome. If a JobRepository is configured, the
// record is persisted both at start and at completion.
func (s *Service) Submit(ctx context.Context, sourcePath, destDescriptor string) (*models.DecodeJob, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if s.Sink.Type == "file" || s.Sink.Type == "" {
		if report, err := sysinfo.Collect(ctx, filepath.Dir(destDescriptor)); err == nil {
			if info, statErr := os.Stat(sourcePath); statErr == nil && report.WarnIfTight(uint64(info.Size())) {
				logger.Warn("free disk space looks tight for expected output size",
					slog.String("source", sourcePath), slog.Uint64("free_bytes", report.DiskFreeBytes))
			}
		} else {
			logger.Warn("preflight disk check failed", slog.Any("error", err))
		}
	}

	job := &models.DecodeJob{
		SourcePath:     sourcePath,
		SinkDescriptor: sink.Descriptor(s.Sink, destDescriptor),
		Status:         models.JobStatusPending,
	}
	job.MarkRunning()
	if s.Jobs != nil {
		if err := s.Jobs.Create(ctx, job); err != nil {
			return nil, fmt.Errorf("recording decode job start: %w", err)
		}
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		job.MarkFailed("open_failed", err)
		s.persist(ctx, job)
		return job, fmt.Errorf("opening source %s: %w", sourcePath, err)
	}
	defer src.Close()

	out, err := sink.New(ctx, s.Sink, destDescriptor)
	if err != nil {
		job.MarkFailed("sink_open_failed", err)
		s.persist(ctx, job)
		return job, fmt.Errorf("opening sink: %w", err)
	}

	ringOpts := WithRingBufferOptions(
		ringbuffer.WithMaxCapacity(int(s.Decode.RingBufferCapacity)),
		ringbuffer.WithMaxPull(int(s.Decode.RingBufferMaxPull)),
		ringbuffer.WithCompactionRatio(s.Decode.RingBufferCompactionRatio),
		ringbuffer.WithLogger(logger),
	)

	rejectOpt := WithRejectDiagnostics(s.Diagnostics, job.ID.String(), logger)

	result, runErr := Run(src, out, logger, ringOpts, rejectOpt)

	if closeErr := out.Close(); closeErr != nil && runErr == nil {
		runErr = fmt.Errorf("closing sink: %w", closeErr)
	}

	if s.Metrics != nil {
		s.Metrics.PacketsProcessed.Add(float64(result.Stats.PacketsIn))
		s.Metrics.BytesDecoded.Add(float64(result.Stats.PacketsOut) * 188)
		if result.Stats.Rejected > 0 {
			s.Metrics.RecordRejection(result.FailureKind)
		}
	}

	if runErr != nil {
		job.MarkFailed(result.FailureKind.String(), runErr)
		s.persist(ctx, job)
		return job, runErr
	}

	job.MarkCompleted(result.Stats.PacketsIn, result.Stats.PacketsOut, result.Stats.Rejected)
	s.persist(ctx, job)

	if s.Metrics != nil {
		s.Metrics.JobDuration.Observe(float64(job.DurationMs) / 1000)
	}

	return job, nil
}

func (s *Service) persist(ctx context.Context, job *models.DecodeJob) {
	if s.Jobs == nil {
		return
	}
	if err := s.Jobs.Update(ctx, job); err != nil {
		s.Logger.Error("recording decode job outcome", slog.String("job_id", job.ID.String()), slog.Any("error", err))
	}
}

// WithRejectDiagnostics returns a RunOption that, when diagnostics are
// enabled, dumps a rejected PID's buffered payload to cfg.Directory for
// later inspection.
func WithRejectDiagnostics(cfg config.DiagnosticsConfig, jobID string, logger *slog.Logger) RunOption {
	if !cfg.Enabled {
		return func(*runOptions) {}
	}
	return withProcessorHook(func(pid uint16, scratch []byte) {
		path, err := diagnostics.Dump(cfg.Directory, jobID, pid, scratch)
		if err != nil {
			logger.Error("dumping rejected packet group", slog.Uint64("pid", uint64(pid)), slog.Any("error", err))
			return
		}
		logger.Info("rejected packet group dumped", slog.Uint64("pid", uint64(pid)), slog.String("path", path))
	})
}
