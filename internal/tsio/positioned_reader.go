// Package tsio wraps the ring buffer with an absolute byte position and owns
// the producer goroutine that pumps bytes from an underlying io.Reader into
// it, so callers further up the pipeline only ever see a blocking,
// position-tracking read API.
package tsio

import (
	"io"
	"log/slog"
	"sync"

	"github.com/jmylchreest/dvrtsdecode/internal/ringbuffer"
)

// PositionedReader reads from a RingBuffer while tracking the absolute
// byte offset consumed so far, and drives a background producer goroutine
// that keeps the buffer filled from the underlying source.
type PositionedReader struct {
	rb     *ringbuffer.RingBuffer
	pos    uint64
	logger *slog.Logger

	wg      sync.WaitGroup
	pumpErr error
	pumpMu  sync.Mutex
}

// New starts a producer goroutine pulling from source into a new RingBuffer
// and returns a PositionedReader over it. Call Close when done to stop the
// producer and release its goroutine.
func New(source io.Reader, logger *slog.Logger, opts ...ringbuffer.Option) *PositionedReader {
	if logger == nil {
		logger = slog.Default()
	}
	rb := ringbuffer.New(ringbuffer.DefaultInitialCapacity, append(opts, ringbuffer.WithLogger(logger))...)

	r := &PositionedReader{rb: rb, logger: logger}
	r.wg.Add(1)
	go r.pump(source)
	return r
}

func (r *PositionedReader) pump(source io.Reader) {
	defer r.wg.Done()
	for {
		if r.rb.ShuttingDown() {
			return
		}
		done, err := r.rb.FillFrom(source)
		if done {
			if err != nil {
				r.pumpMu.Lock()
				r.pumpErr = err
				r.pumpMu.Unlock()
				r.logger.Debug("producer stopped with error", slog.String("error", err.Error()))
			} else {
				r.logger.Debug("producer observed end of input")
			}
			return
		}
	}
}

// Position returns the absolute number of bytes consumed from the source so far.
func (r *PositionedReader) Position() uint64 {
	return r.pos
}

// ReadExact reads exactly n bytes, advancing Position by n on success.
func (r *PositionedReader) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := r.rb.ReadExact(buf); err != nil {
		return nil, err
	}
	r.pos += uint64(n)
	return buf, nil
}

// ReadExactOrEOF reads exactly n bytes, distinguishing a clean end-of-stream
// (eof true, no bytes consumed) from a mid-record truncation (err set).
func (r *PositionedReader) ReadExactOrEOF(n int) (data []byte, eof bool, err error) {
	buf := make([]byte, n)
	eof, err = r.rb.ReadExactOrEOF(buf)
	if err != nil || eof {
		return nil, eof, err
	}
	r.pos += uint64(n)
	return buf, false, nil
}

// ReadInto reads exactly len(dst) bytes into dst, advancing Position.
func (r *PositionedReader) ReadInto(dst []byte) error {
	if err := r.rb.ReadExact(dst); err != nil {
		return err
	}
	r.pos += uint64(len(dst))
	return nil
}

// ReadU8 reads one byte as uint8.
func (r *PositionedReader) ReadU8() (byte, error) {
	v, err := r.rb.ReadU8()
	if err != nil {
		return 0, err
	}
	r.pos++
	return v, nil
}

// ReadI8 reads one byte as int8.
func (r *PositionedReader) ReadI8() (int8, error) {
	v, err := r.rb.ReadI8()
	if err != nil {
		return 0, err
	}
	r.pos++
	return v, nil
}

// ReadU16BE reads a big-endian uint16.
func (r *PositionedReader) ReadU16BE() (uint16, error) {
	v, err := r.rb.ReadU16BE()
	if err != nil {
		return 0, err
	}
	r.pos += 2
	return v, nil
}

// ReadU32BE reads a big-endian uint32.
func (r *PositionedReader) ReadU32BE() (uint32, error) {
	v, err := r.rb.ReadU32BE()
	if err != nil {
		return 0, err
	}
	r.pos += 4
	return v, nil
}

// Skip discards n bytes, advancing Position.
func (r *PositionedReader) Skip(n int) error {
	if err := r.rb.Skip(n); err != nil {
		return err
	}
	r.pos += uint64(n)
	return nil
}

// Closed reports whether the underlying source has been fully drained.
func (r *PositionedReader) Closed() bool {
	return r.rb.Closed()
}

// Close stops the producer goroutine and waits for it to exit, returning any
// terminal error it observed (nil on a clean EOF).
func (r *PositionedReader) Close() error {
	r.rb.Shutdown()
	r.wg.Wait()
	r.pumpMu.Lock()
	defer r.pumpMu.Unlock()
	return r.pumpErr
}
