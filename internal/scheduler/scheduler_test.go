package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmylchreest/dvrtsdecode/internal/config"
	"github.com/jmylchreest/dvrtsdecode/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(schedule string) config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:          true,
		CronSchedule:     schedule,
		CatchupOnStartup: true,
	}
}

func TestScheduler_CatchupScansExistingFilesOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.dvr"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.dvr"), []byte("x"), 0o644))

	var decoded []string
	decodeFn := func(ctx context.Context, sourcePath string) (*models.DecodeJob, error) {
		decoded = append(decoded, sourcePath)
		job := &models.DecodeJob{SourcePath: sourcePath, SinkDescriptor: "file:///dev/null", Status: models.JobStatusCompleted}
		return job, nil
	}

	s := New(testConfig("0 0 1 1 *"), dir, decodeFn, nil, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return len(decoded) == 2 }, time.Second, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.dvr"), filepath.Join(dir, "b.dvr")}, decoded)
}

func TestScheduler_SkipsAlreadySeenFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.dvr"), []byte("x"), 0o644))

	var callCount int
	decodeFn := func(ctx context.Context, sourcePath string) (*models.DecodeJob, error) {
		callCount++
		return &models.DecodeJob{SourcePath: sourcePath, SinkDescriptor: "file:///dev/null", Status: models.JobStatusCompleted}, nil
	}

	s := New(testConfig("0 0 1 1 *"), dir, decodeFn, nil, nil)
	s.scanOnce(context.Background())
	s.scanOnce(context.Background())

	assert.Equal(t, 1, callCount)
}

func TestScheduler_DisabledSchedulerNeverStarts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.dvr"), []byte("x"), 0o644))

	var callCount int
	decodeFn := func(ctx context.Context, sourcePath string) (*models.DecodeJob, error) {
		callCount++
		return &models.DecodeJob{SourcePath: sourcePath, SinkDescriptor: "file:///dev/null", Status: models.JobStatusCompleted}, nil
	}

	cfg := testConfig("0 0 1 1 *")
	cfg.Enabled = false
	s := New(cfg, dir, decodeFn, nil, nil)
	require.NoError(t, s.Start(context.Background()))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, callCount)
}
