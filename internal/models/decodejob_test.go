package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJob_Validate(t *testing.T) {
	t.Run("missing source path", func(t *testing.T) {
		j := &DecodeJob{SinkDescriptor: "file:///out.ts", Status: JobStatusPending}
		assert.True(t, errors.Is(j.Validate(), ErrSourcePathRequired))
	})

	t.Run("missing sink descriptor", func(t *testing.T) {
		j := &DecodeJob{SourcePath: "/in.dvr", Status: JobStatusPending}
		assert.True(t, errors.Is(j.Validate(), ErrSinkDescriptorRequired))
	})

	t.Run("invalid status", func(t *testing.T) {
		j := &DecodeJob{SourcePath: "/in.dvr", SinkDescriptor: "file:///out.ts", Status: "bogus"}
		assert.True(t, errors.Is(j.Validate(), ErrInvalidJobStatus))
	})

	t.Run("valid job", func(t *testing.T) {
		j := &DecodeJob{SourcePath: "/in.dvr", SinkDescriptor: "file:///out.ts", Status: JobStatusPending}
		require.NoError(t, j.Validate())
	})
}

func TestDecodeJob_MarkRunning(t *testing.T) {
	j := &DecodeJob{}
	j.MarkRunning()
	assert.Equal(t, JobStatusRunning, j.Status)
	require.NotNil(t, j.StartedAt)
	assert.False(t, j.IsFinished())
}

func TestDecodeJob_MarkCompleted(t *testing.T) {
	j := &DecodeJob{}
	j.MarkRunning()
	j.MarkCompleted(100, 98, 2)

	assert.Equal(t, JobStatusCompleted, j.Status)
	assert.Equal(t, 100, j.PacketsIn)
	assert.Equal(t, 98, j.PacketsOut)
	assert.Equal(t, 2, j.Rejected)
	require.NotNil(t, j.CompletedAt)
	assert.True(t, j.IsFinished())
	assert.GreaterOrEqual(t, j.DurationMs, int64(0))
}

func TestDecodeJob_MarkFailed(t *testing.T) {
	j := &DecodeJob{}
	j.MarkRunning()
	j.MarkFailed("decrypt_failure", errors.New("no turing key bound"))

	assert.Equal(t, JobStatusFailed, j.Status)
	assert.Equal(t, "decrypt_failure", j.FailureKind)
	assert.Equal(t, "no turing key bound", j.Error)
	require.NotNil(t, j.CompletedAt)
	assert.True(t, j.IsFinished())
}

func TestDecodeJob_MarkFailed_NilErrorLeavesErrorEmpty(t *testing.T) {
	j := &DecodeJob{}
	j.MarkRunning()
	j.MarkFailed("sink_open_failed", nil)

	assert.Equal(t, JobStatusFailed, j.Status)
	assert.Empty(t, j.Error)
}

func TestDecodeJob_IsFinished(t *testing.T) {
	j := &DecodeJob{Status: JobStatusPending}
	assert.False(t, j.IsFinished())

	j.Status = JobStatusRunning
	assert.False(t, j.IsFinished())

	j.Status = JobStatusCompleted
	assert.True(t, j.IsFinished())

	j.Status = JobStatusFailed
	assert.True(t, j.IsFinished())
}

func TestDecodeJob_TableName(t *testing.T) {
	assert.Equal(t, "decode_jobs", DecodeJob{}.TableName())
}
