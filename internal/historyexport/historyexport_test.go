package historyexport

import (
	"path/filepath"
	"testing"

	"github.com/jmylchreest/dvrtsdecode/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJobs() []*models.DecodeJob {
	job1 := &models.DecodeJob{
		SourcePath:     "/in/one.dvr",
		SinkDescriptor: "file:///out/one.ts",
		Status:         models.JobStatusCompleted,
		PacketsIn:      10,
		PacketsOut:     10,
	}
	job1.ID = models.NewULID()

	job2 := &models.DecodeJob{
		SourcePath:     "/in/two.dvr",
		SinkDescriptor: "file:///out/two.ts",
		Status:         models.JobStatusFailed,
		FailureKind:    "decrypt_failure",
	}
	job2.ID = models.NewULID()

	return []*models.DecodeJob{job1, job2}
}

func TestExportImport_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.ndjson.br")
	jobs := sampleJobs()

	require.NoError(t, Export(path, jobs))

	imported, err := Import(path)
	require.NoError(t, err)
	require.Len(t, imported, len(jobs))

	for i, job := range jobs {
		assert.Equal(t, job.ID, imported[i].ID)
		assert.Equal(t, job.SourcePath, imported[i].SourcePath)
		assert.Equal(t, job.Status, imported[i].Status)
	}
}

func TestExport_EmptyJobsProducesReadableEmptyExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.ndjson.br")

	require.NoError(t, Export(path, nil))

	imported, err := Import(path)
	require.NoError(t, err)
	assert.Empty(t, imported)
}

func TestImport_MissingFileReturnsError(t *testing.T) {
	_, err := Import(filepath.Join(t.TempDir(), "does-not-exist.ndjson.br"))
	assert.Error(t, err)
}
