package tsio

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	assertEventuallyTimeout = time.Second
	assertEventuallyTick    = 5 * time.Millisecond
)

func TestPositionedReader_TracksAbsolutePosition(t *testing.T) {
	data := []byte{0x47, 0x01, 0x02, 0x03, 0xAA, 0xBB}
	pr := New(bytes.NewReader(data), nil)
	defer pr.Close()

	b, err := pr.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, byte(0x47), b)
	assert.Equal(t, uint64(1), pr.Position())

	rest, err := pr.ReadExact(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, rest)
	assert.Equal(t, uint64(4), pr.Position())

	u16, err := pr.ReadU16BE()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xAABB), u16)
	assert.Equal(t, uint64(6), pr.Position())
}

func TestPositionedReader_CloseReturnsNilOnCleanEOF(t *testing.T) {
	pr := New(bytes.NewReader([]byte{1, 2, 3}), nil)
	_, err := pr.ReadExact(3)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return pr.Closed() }, assertEventuallyTimeout, assertEventuallyTick)
	assert.NoError(t, pr.Close())
}

func TestPositionedReader_SkipAdvancesPosition(t *testing.T) {
	pr := New(bytes.NewReader([]byte{1, 2, 3, 4, 5}), nil)
	defer pr.Close()

	require.NoError(t, pr.Skip(2))
	assert.Equal(t, uint64(2), pr.Position())

	b, err := pr.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, byte(3), b)
}
