// Package diagnostics captures rejected packet-group scratch buffers for
// offline inspection when a decode job aborts with MalformedPacket or
// UnknownStartCode. Capture is additive and off the hot path: it never
// affects the bytes already written to the sink (spec's no-partial-recovery
// policy is unaffected).
package diagnostics

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"
)

// Dump xz-compresses data (typically a rejected packet group's scratch
// buffer) to <dir>/<jobID>-pid<pid>-<timestamp>.bin.xz.
func Dump(dir string, jobID string, pid uint16, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating diagnostics directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s-pid%04x-%d.bin.xz", jobID, pid, time.Now().UnixNano())
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating diagnostics file %s: %w", path, err)
	}
	defer f.Close()

	w, err := xz.NewWriter(f)
	if err != nil {
		return "", fmt.Errorf("creating xz writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("writing diagnostics dump: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing xz stream: %w", err)
	}

	return path, nil
}

// Load decompresses a dump previously written by Dump, for tooling that
// wants to re-inspect a rejected packet group.
func Load(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening diagnostics file %s: %w", path, err)
	}
	defer f.Close()

	r, err := xz.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating xz reader: %w", err)
	}

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decompressing diagnostics dump: %w", err)
		}
	}
	return buf, nil
}
