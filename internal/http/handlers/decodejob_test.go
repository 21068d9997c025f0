package handlers

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmylchreest/dvrtsdecode/internal/config"
	"github.com/jmylchreest/dvrtsdecode/internal/database"
	"github.com/jmylchreest/dvrtsdecode/internal/decodejob"
	"github.com/jmylchreest/dvrtsdecode/internal/models"
	"github.com/jmylchreest/dvrtsdecode/internal/tspacket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupHandlerTestDB(t *testing.T) *database.JobRepository {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		LogLevel:        "silent",
	}

	db, err := database.New(cfg, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())
	return database.NewJobRepository(db)
}

func plainPacketFixture(pid uint16) []byte {
	buf := make([]byte, tspacket.Size)
	buf[0] = tspacket.SyncByte
	buf[1] = byte(pid >> 8 & 0x1F)
	buf[2] = byte(pid & 0xFF)
	buf[3] = 0x10
	for i := 4; i < tspacket.Size; i++ {
		buf[i] = 0xAB
	}
	return buf
}

func writeHandlerFixtureSource(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "source.dvr")
	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x00, 0x00}) // empty stream table, empty MAK
	buf.Write(plainPacketFixture(0x0020))

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestDecodeJobHandler_SubmitAndGet(t *testing.T) {
	jobs := setupHandlerTestDB(t)
	dir := t.TempDir()
	source := writeHandlerFixtureSource(t, dir)

	svc := &decodejob.Service{
		Sink: config.SinkConfig{Type: "file"},
		Jobs: jobs,
	}
	handler := NewDecodeJobHandler(svc, jobs)

	ctx := context.Background()

	submitInput := &SubmitJobInput{}
	submitInput.Body.SourcePath = source
	submitInput.Body.Dest = filepath.Join(dir, "out.ts")

	submitResp, err := handler.SubmitJob(ctx, submitInput)
	require.NoError(t, err)
	require.NotNil(t, submitResp)
	assert.Equal(t, models.JobStatusCompleted, submitResp.Body.Status)

	getResp, err := handler.GetJob(ctx, &GetJobInput{ID: submitResp.Body.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, submitResp.Body.ID, getResp.Body.ID)
}

func TestDecodeJobHandler_SubmitRejectsMissingFields(t *testing.T) {
	handler := NewDecodeJobHandler(nil, nil)

	_, err := handler.SubmitJob(context.Background(), &SubmitJobInput{})
	assert.Error(t, err)
}

func TestDecodeJobHandler_GetUnknownIDReturnsNotFound(t *testing.T) {
	jobs := setupHandlerTestDB(t)
	handler := NewDecodeJobHandler(nil, jobs)

	_, err := handler.GetJob(context.Background(), &GetJobInput{ID: models.NewULID().String()})
	assert.Error(t, err)
}

func TestDecodeJobHandler_GetInvalidIDReturnsBadRequest(t *testing.T) {
	jobs := setupHandlerTestDB(t)
	handler := NewDecodeJobHandler(nil, jobs)

	_, err := handler.GetJob(context.Background(), &GetJobInput{ID: "not-a-ulid"})
	assert.Error(t, err)
}

func TestDecodeJobHandler_ListReturnsSubmittedJobs(t *testing.T) {
	jobs := setupHandlerTestDB(t)
	dir := t.TempDir()
	source := writeHandlerFixtureSource(t, dir)

	svc := &decodejob.Service{
		Sink: config.SinkConfig{Type: "file"},
		Jobs: jobs,
	}
	handler := NewDecodeJobHandler(svc, jobs)

	ctx := context.Background()
	submitInput := &SubmitJobInput{}
	submitInput.Body.SourcePath = source
	submitInput.Body.Dest = filepath.Join(dir, "out.ts")

	_, err := handler.SubmitJob(ctx, submitInput)
	require.NoError(t, err)

	listResp, err := handler.ListJobs(ctx, &ListJobsInput{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, listResp.Body.Jobs, 1)
}
