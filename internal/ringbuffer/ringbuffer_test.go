package ringbuffer

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jmylchreest/dvrtsdecode/internal/decodeerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowReader dribbles out data a few bytes at a time, forcing multiple
// FillFrom calls and exercising the blocking ReadExact path.
type slowReader struct {
	data   []byte
	pos    int
	chunk  int
}

func (s *slowReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := s.chunk
	if n > len(p) {
		n = len(p)
	}
	if s.pos+n > len(s.data) {
		n = len(s.data) - s.pos
	}
	copy(p, s.data[s.pos:s.pos+n])
	s.pos += n
	return n, nil
}

type errReader struct {
	err error
}

func (e errReader) Read(p []byte) (int, error) {
	return 0, e.err
}

func pumpUntilDone(t *testing.T, rb *RingBuffer, source io.Reader) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		for {
			finished, err := rb.FillFrom(source)
			if finished {
				done <- err
				return
			}
		}
	}()
	return done
}

func TestRingBuffer_ReadExact_AcrossMultipleFills(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 10)
	data[3] = 0x47
	source := &slowReader{data: data, chunk: 2}
	rb := New(64)

	pumpUntilDone(t, rb, source)

	got := make([]byte, len(data))
	require.NoError(t, rb.ReadExact(got))
	assert.Equal(t, data, got)
}

func TestRingBuffer_ReadExact_BlocksUntilDataArrives(t *testing.T) {
	rb := New(64)
	result := make(chan error, 1)
	go func() {
		dst := make([]byte, 4)
		result <- rb.ReadExact(dst)
	}()

	select {
	case <-result:
		t.Fatal("ReadExact returned before any data was produced")
	case <-time.After(20 * time.Millisecond):
	}

	source := &slowReader{data: []byte{1, 2, 3, 4}, chunk: 4}
	pumpUntilDone(t, rb, source)

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ReadExact never unblocked")
	}
}

func TestRingBuffer_UnexpectedEOF_WhenSourceClosesShort(t *testing.T) {
	rb := New(64)
	source := &slowReader{data: []byte{1, 2, 3}, chunk: 3}
	<-pumpUntilDone(t, rb, source)

	dst := make([]byte, 10)
	err := rb.ReadExact(dst)
	require.Error(t, err)
	assert.True(t, decodeerrors.Is(err, decodeerrors.KindUnexpectedEOF))
}

func TestRingBuffer_FillFrom_PropagatesIOError(t *testing.T) {
	rb := New(64)
	wantErr := errors.New("disk fell off")
	_, err := rb.FillFrom(errReader{err: wantErr})
	require.Error(t, err)
	assert.True(t, decodeerrors.Is(err, decodeerrors.KindUnexpectedEOF))
	assert.ErrorIs(t, err, wantErr)
}

func TestRingBuffer_GrowsCapacityWhenFull(t *testing.T) {
	rb := New(4, WithMaxPull(4))
	data := bytes.Repeat([]byte{0x10}, 20)
	source := &slowReader{data: data, chunk: 4}

	<-pumpUntilDone(t, rb, source)

	assert.GreaterOrEqual(t, rb.Capacity(), 20)
	got := make([]byte, 20)
	require.NoError(t, rb.ReadExact(got))
	assert.Equal(t, data, got)
}

func TestRingBuffer_BufferExhausted_WhenMaxCapacityTooSmall(t *testing.T) {
	rb := New(4, WithMaxPull(4), WithMaxCapacity(4))
	data := bytes.Repeat([]byte{0x10}, 20)
	source := &slowReader{data: data, chunk: 4}

	err := <-pumpUntilDone(t, rb, source)
	require.Error(t, err)
	assert.True(t, decodeerrors.Is(err, decodeerrors.KindBufferExhausted))
}

func TestRingBuffer_ReadExactOrEOF_SurfacesBufferExhaustedInsteadOfCleanEOF(t *testing.T) {
	rb := New(4, WithMaxPull(4), WithMaxCapacity(4))
	data := bytes.Repeat([]byte{0x10}, 20)
	source := &slowReader{data: data, chunk: 4}

	require.Error(t, <-pumpUntilDone(t, rb, source))

	drained := make([]byte, 4)
	require.NoError(t, rb.ReadExact(drained))

	eof, err := rb.ReadExactOrEOF(make([]byte, 188))
	assert.False(t, eof, "buffer exhaustion must not be reported as a clean end-of-stream")
	require.Error(t, err)
	assert.True(t, decodeerrors.Is(err, decodeerrors.KindBufferExhausted))
}

func TestRingBuffer_ReadExact_SurfacesBufferExhausted(t *testing.T) {
	rb := New(4, WithMaxPull(4), WithMaxCapacity(4))
	data := bytes.Repeat([]byte{0x10}, 20)
	source := &slowReader{data: data, chunk: 4}

	require.Error(t, <-pumpUntilDone(t, rb, source))

	drained := make([]byte, 4)
	require.NoError(t, rb.ReadExact(drained))

	err := rb.ReadExact(make([]byte, 188))
	require.Error(t, err)
	assert.True(t, decodeerrors.Is(err, decodeerrors.KindBufferExhausted))
}

func TestRingBuffer_CompactsWhenReadPosCrossesRatio(t *testing.T) {
	rb := New(100, WithMaxPull(100), WithCompactionRatio(0.5))
	data := bytes.Repeat([]byte{0x01}, 70)
	source := &slowReader{data: data, chunk: 60}
	done, err := rb.FillFrom(source)
	require.NoError(t, err)
	require.False(t, done)

	// Consume 55 bytes, crossing the 50-byte compaction threshold.
	buf := make([]byte, 55)
	require.NoError(t, rb.ReadExact(buf))

	// Compaction runs in FillFrom after a successful source read, so the
	// next fill (pulling the last 10 bytes) is what rebases the buffer.
	done, err = rb.FillFrom(source)
	require.NoError(t, err)
	require.False(t, done)

	rb.mu.Lock()
	readPos := rb.readPos
	rb.mu.Unlock()
	assert.Equal(t, 0, readPos, "compaction should have rebased read_pos to 0")

	remaining := make([]byte, 15)
	require.NoError(t, rb.ReadExact(remaining))
	assert.Equal(t, data[55:], remaining)
}

func TestRingBuffer_Shutdown_UnblocksPendingRead(t *testing.T) {
	rb := New(64)
	result := make(chan error, 1)
	go func() {
		dst := make([]byte, 100)
		result <- rb.ReadExact(dst)
	}()

	time.Sleep(20 * time.Millisecond)
	rb.Shutdown()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrShutdown)
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not unblock ReadExact")
	}
}

func TestRingBuffer_TypedReads(t *testing.T) {
	rb := New(64)
	source := &slowReader{data: []byte{0x47, 0xFF, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05}, chunk: 8}
	<-pumpUntilDone(t, rb, source)

	b, err := rb.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, byte(0x47), b)

	i8, err := rb.ReadI8()
	require.NoError(t, err)
	assert.Equal(t, int8(-1), i8)

	u16, err := rb.ReadU16BE()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0001), u16)

	u32, err := rb.ReadU32BE()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x02030405), u32)
}

func TestRingBuffer_Skip(t *testing.T) {
	rb := New(64)
	source := &slowReader{data: []byte{1, 2, 3, 4, 5, 6}, chunk: 6}
	<-pumpUntilDone(t, rb, source)

	require.NoError(t, rb.Skip(4))
	remaining := make([]byte, 2)
	require.NoError(t, rb.ReadExact(remaining))
	assert.Equal(t, []byte{5, 6}, remaining)
}
