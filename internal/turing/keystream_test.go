package turing

import (
	"bytes"
	"testing"

	"github.com/jmylchreest/dvrtsdecode/internal/decodeerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() Key {
	var k Key
	for i := range k {
		k[i] = byte(i * 7)
	}
	return k
}

func TestDecryptBytes_IsItsOwnInverse(t *testing.T) {
	plaintext := []byte("some scrambled payload bytes here")
	buf := append([]byte(nil), plaintext...)

	s := NewState(testKey())
	s.DecryptBytes(buf)
	assert.NotEqual(t, plaintext, buf)

	s2 := NewState(testKey())
	s2.DecryptBytes(buf)
	assert.Equal(t, plaintext, buf)
}

func TestDecryptBytes_DifferentBlocksProduceDifferentKeystream(t *testing.T) {
	plaintext := bytes.Repeat([]byte{0x55}, 16)

	buf1 := append([]byte(nil), plaintext...)
	s1 := NewState(testKey())
	s1.DecryptBytes(buf1)

	buf2 := append([]byte(nil), plaintext...)
	s2 := NewState(testKey())
	s2.AdvanceBlock()
	s2.DecryptBytes(buf2)

	assert.NotEqual(t, buf1, buf2)
}

func TestDecryptBytes_DeterministicForSameKeyAndBlock(t *testing.T) {
	plaintext := bytes.Repeat([]byte{0x01}, 8)

	buf1 := append([]byte(nil), plaintext...)
	NewState(testKey()).DecryptBytes(buf1)

	buf2 := append([]byte(nil), plaintext...)
	s := NewState(testKey())
	s.AdvanceBlock()
	s.SetBlock(0)
	s.DecryptBytes(buf2)

	assert.Equal(t, buf1, buf2)
}

func TestDoHeader_RecoversStreamIDAndBlock(t *testing.T) {
	buf := []byte{0x2A, 0x00, 0x00, 0x01, 0x07, 0xFF, 0xFF}
	streamID, block, err := DoHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x2A), streamID)
	assert.Equal(t, uint32(0x00000107), block)
}

func TestDoHeader_FailsWhenTooShort(t *testing.T) {
	_, _, err := DoHeader([]byte{0x01, 0x02})
	require.Error(t, err)
	assert.True(t, decodeerrors.Is(err, decodeerrors.KindDecryptFailure))
}
