// Package historyexport bulk-exports the decode-job history ledger as
// brotli-compressed newline-delimited JSON, for archival or migration
// outside the primary database.
package historyexport

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/andybalholm/brotli"
	"github.com/jmylchreest/dvrtsdecode/internal/models"
)

// Export writes jobs as NDJSON, brotli-compressed, to path.
func Export(path string, jobs []*models.DecodeJob) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file %s: %w", path, err)
	}
	defer f.Close()

	bw := brotli.NewWriter(f)
	enc := json.NewEncoder(bw)
	for _, job := range jobs {
		if err := enc.Encode(job); err != nil {
			bw.Close()
			return fmt.Errorf("encoding decode job %s: %w", job.ID, err)
		}
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("closing brotli stream: %w", err)
	}
	return nil
}

// Import reads a brotli-compressed NDJSON export back into memory.
func Import(path string) ([]*models.DecodeJob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export file %s: %w", path, err)
	}
	defer f.Close()

	br := brotli.NewReader(f)
	dec := json.NewDecoder(br)

	var jobs []*models.DecodeJob
	for dec.More() {
		var job models.DecodeJob
		if err := dec.Decode(&job); err != nil {
			return nil, fmt.Errorf("decoding history export record: %w", err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}
