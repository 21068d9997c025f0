// Package ringbuffer implements a thread-safe single-producer/single-consumer
// expanding byte buffer with big-endian typed reads and blocking semantics
// until end-of-stream. A producer goroutine repeatedly pulls bytes from an
// arbitrary io.Reader into the buffer; a consumer goroutine performs
// structured reads against it without loss, unbounded blocking, or overflow,
// even when the source is a pipe with a small kernel buffer.
package ringbuffer

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/jmylchreest/dvrtsdecode/internal/decodeerrors"
)

const (
	// DefaultInitialCapacity is the starting backing-array size.
	DefaultInitialCapacity = 16 * 1024 * 1024
	// DefaultMaxPull bounds how many bytes a single fill pulls from the source,
	// keeping the producer's critical section short.
	DefaultMaxPull = 64 * 1024
	// DefaultCompactionRatio is the read_pos/capacity threshold that triggers compaction.
	DefaultCompactionRatio = 0.9
	// minCompactedCapacity is the floor capacity a compaction will shrink to.
	minCompactedCapacity = 16 * 1024 * 1024
	// defaultMaxCapacity bounds growth; doubling past this reports BufferExhausted
	// rather than risk an int overflow or an unbounded allocation.
	defaultMaxCapacity = 1 << 34 // 16 GiB
)

// ErrShutdown is returned by a blocked read when the buffer is shut down
// (the owning PositionedReader was closed) before enough bytes arrived.
var ErrShutdown = errors.New("ringbuffer: shut down while waiting for data")

// RingBuffer is a growable byte buffer safe for exactly one producer and one
// consumer goroutine operating concurrently.
type RingBuffer struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf      []byte
	readPos  int
	writePos int
	capacity int

	sourceClosed bool
	closeErr     error
	shutdown     bool

	maxPull      int
	compactRatio float64
	maxCapacity  int

	logger *slog.Logger
}

// Option configures a RingBuffer at construction time.
type Option func(*RingBuffer)

// WithMaxPull overrides DefaultMaxPull.
func WithMaxPull(n int) Option {
	return func(r *RingBuffer) {
		if n > 0 {
			r.maxPull = n
		}
	}
}

// WithCompactionRatio overrides DefaultCompactionRatio.
func WithCompactionRatio(ratio float64) Option {
	return func(r *RingBuffer) {
		if ratio > 0 && ratio < 1 {
			r.compactRatio = ratio
		}
	}
}

// WithMaxCapacity bounds how large the backing array may grow before
// fill_from reports BufferExhausted instead of doubling again.
func WithMaxCapacity(n int) Option {
	return func(r *RingBuffer) {
		if n > 0 {
			r.maxCapacity = n
		}
	}
}

// WithLogger injects a logging sink instead of reaching for a global logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *RingBuffer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a RingBuffer with the given initial capacity (DefaultInitialCapacity
// when initialCapacity is zero or negative) and any options applied.
func New(initialCapacity int, opts ...Option) *RingBuffer {
	if initialCapacity <= 0 {
		initialCapacity = DefaultInitialCapacity
	}
	r := &RingBuffer{
		buf:          make([]byte, initialCapacity),
		capacity:     initialCapacity,
		maxPull:      DefaultMaxPull,
		compactRatio: DefaultCompactionRatio,
		maxCapacity:  defaultMaxCapacity,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Len returns the number of unread bytes currently buffered.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writePos - r.readPos
}

// Capacity returns the current backing-array size.
func (r *RingBuffer) Capacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capacity
}

// Closed reports whether the source has been fully drained (EOF observed).
func (r *RingBuffer) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sourceClosed
}

// Shutdown signals cancellation: the producer must stop calling FillFrom and
// any consumer blocked in a typed read unblocks with ErrShutdown. Idempotent.
func (r *RingBuffer) Shutdown() {
	r.mu.Lock()
	r.shutdown = true
	r.mu.Unlock()
	r.cond.Broadcast()
}

// ShuttingDown reports whether Shutdown has been called, for the producer
// loop to observe between fill iterations.
func (r *RingBuffer) ShuttingDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shutdown
}

// FillFrom pulls at most min(capacity-write_pos, maxPull) bytes from source
// into the buffer. It reports done=true once the source has been observed to
// be exhausted (EOF or a terminal read error), at which point the caller
// should stop calling FillFrom again.
func (r *RingBuffer) FillFrom(source io.Reader) (done bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sourceClosed || r.shutdown {
		return true, r.closeErr
	}

	if r.writePos == r.capacity {
		if !r.growLocked() {
			r.sourceClosed = true
			bufErr := decodeerrors.New(decodeerrors.KindBufferExhausted, "ringbuffer.FillFrom", errors.New("capacity growth would overflow bounds"))
			r.closeErr = bufErr
			r.cond.Broadcast()
			return true, bufErr
		}
	}

	avail := r.capacity - r.writePos
	pull := avail
	if pull > r.maxPull {
		pull = r.maxPull
	}

	n, readErr := source.Read(r.buf[r.writePos : r.writePos+pull])
	if n > 0 {
		r.writePos += n
		r.cond.Broadcast()
	}

	if readErr != nil {
		r.sourceClosed = true
		if !errors.Is(readErr, io.EOF) {
			r.closeErr = decodeerrors.New(decodeerrors.KindUnexpectedEOF, "ringbuffer.FillFrom", readErr)
		}
		r.cond.Broadcast()
		return true, r.closeErr
	}

	r.maybeCompactLocked()

	return false, nil
}

// growLocked doubles the backing array, returning false if doing so would
// exceed maxCapacity or overflow int. Caller must hold mu.
func (r *RingBuffer) growLocked() bool {
	newCap := r.capacity * 2
	if newCap <= r.capacity || newCap > r.maxCapacity {
		return false
	}
	grown := make([]byte, newCap)
	copy(grown, r.buf[:r.capacity])
	r.buf = grown
	r.capacity = newCap
	r.logger.Debug("ringbuffer capacity doubled", slog.Int("new_capacity", newCap))
	return true
}

// maybeCompactLocked rebases the live region to offset 0 once read_pos
// crosses compactRatio*capacity. Caller must hold mu.
func (r *RingBuffer) maybeCompactLocked() {
	if float64(r.readPos) <= r.compactRatio*float64(r.capacity) {
		return
	}

	live := r.writePos - r.readPos
	copy(r.buf, r.buf[r.readPos:r.writePos])

	newCap := live * 2
	if newCap < minCompactedCapacity {
		newCap = minCompactedCapacity
	}
	if newCap < r.capacity {
		shrunk := make([]byte, newCap)
		copy(shrunk, r.buf[:live])
		r.buf = shrunk
		r.capacity = newCap
	}

	r.readPos = 0
	r.writePos = live
}

// ReadExact blocks until len(dst) bytes are available or the source closes,
// then copies them into dst and advances read_pos by exactly len(dst).
func (r *RingBuffer) ReadExact(dst []byte) error {
	need := len(dst)
	if need == 0 {
		return nil
	}

	r.mu.Lock()
	for r.writePos-r.readPos < need && !r.sourceClosed && !r.shutdown {
		r.cond.Wait()
	}

	if r.shutdown && r.writePos-r.readPos < need {
		r.mu.Unlock()
		return ErrShutdown
	}

	if r.writePos-r.readPos < need {
		r.mu.Unlock()
		if r.closeErr != nil {
			return r.closeErr
		}
		return decodeerrors.New(decodeerrors.KindUnexpectedEOF, "ringbuffer.ReadExact", io.ErrUnexpectedEOF)
	}

	copy(dst, r.buf[r.readPos:r.readPos+need])
	r.readPos += need
	r.mu.Unlock()
	return nil
}

// ReadExactOrEOF behaves like ReadExact, except that when the source has
// closed with zero bytes remaining it reports a clean end-of-stream (eof
// true, err nil) instead of UnexpectedEof, letting the caller distinguish
// "ended exactly on a boundary" from "truncated mid-record".
func (r *RingBuffer) ReadExactOrEOF(dst []byte) (eof bool, err error) {
	need := len(dst)

	r.mu.Lock()
	for r.writePos-r.readPos < need && !r.sourceClosed && !r.shutdown {
		r.cond.Wait()
	}

	if r.shutdown && r.writePos-r.readPos < need {
		r.mu.Unlock()
		return false, ErrShutdown
	}

	available := r.writePos - r.readPos
	if available < need {
		r.mu.Unlock()
		if r.closeErr != nil {
			return false, r.closeErr
		}
		if available == 0 {
			return true, nil
		}
		return false, decodeerrors.New(decodeerrors.KindUnexpectedEOF, "ringbuffer.ReadExactOrEOF", io.ErrUnexpectedEOF)
	}

	copy(dst, r.buf[r.readPos:r.readPos+need])
	r.readPos += need
	r.mu.Unlock()
	return false, nil
}

// ReadU8 reads one byte as uint8.
func (r *RingBuffer) ReadU8() (byte, error) {
	var b [1]byte
	if err := r.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadI8 reads one byte as int8.
func (r *RingBuffer) ReadI8() (int8, error) {
	b, err := r.ReadU8()
	if err != nil {
		return 0, err
	}
	return int8(b), nil
}

// ReadU16BE reads a big-endian uint16.
func (r *RingBuffer) ReadU16BE() (uint16, error) {
	var b [2]byte
	if err := r.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

// ReadU32BE reads a big-endian uint32.
func (r *RingBuffer) ReadU32BE() (uint32, error) {
	var b [4]byte
	if err := r.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// scratchSkipSize bounds the chunk size used to discard bytes in Skip.
const scratchSkipSize = 4096

// Skip discards the next n bytes, blocking as ReadExact does.
func (r *RingBuffer) Skip(n int) error {
	if n <= 0 {
		return nil
	}
	var scratch [scratchSkipSize]byte
	for n > 0 {
		chunk := n
		if chunk > scratchSkipSize {
			chunk = scratchSkipSize
		}
		if err := r.ReadExact(scratch[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
