package tsprocess

import (
	"bytes"
	"testing"

	"github.com/jmylchreest/dvrtsdecode/internal/tspacket"
	"github.com/jmylchreest/dvrtsdecode/internal/turing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPID = uint16(0x0101)
const testStreamID = byte(0x01)

func testKey() turing.Key {
	var k turing.Key
	for i := range k {
		k[i] = byte(i * 3)
	}
	return k
}

func buildPacket(t *testing.T, payloadStart bool, scrambled bool, payload []byte) *tspacket.Packet {
	t.Helper()
	require.Len(t, payload, tspacket.Size-4)

	buf := make([]byte, tspacket.Size)
	buf[0] = tspacket.SyncByte
	buf[1] = byte(testPID >> 8 & 0x1F)
	if payloadStart {
		buf[1] |= 0x40
	}
	buf[2] = byte(testPID & 0xFF)
	buf[3] = 0x10 // adaptation_field_control = payload only, continuity = 0
	if scrambled {
		buf[3] |= 0xC0
	}
	copy(buf[4:], payload)

	pkt, err := tspacket.Parse(buf)
	require.NoError(t, err)
	return pkt
}

// expectDecrypt replicates exactly what the processor's decryptRegion does,
// so tests can assert on the precise expected ciphertext transform instead
// of a loose "it changed" check.
func expectDecrypt(t *testing.T, region []byte) []byte {
	t.Helper()
	want := append([]byte(nil), region...)
	state := turing.NewState(testKey())
	const headerLen = 5
	if len(want) > headerLen {
		_, block, err := turing.DoHeader(want[:headerLen])
		require.NoError(t, err)
		state.SetBlock(block)
		state.DecryptBytes(want[headerLen:])
	} else {
		state.DecryptBytes(want)
	}
	return want
}

func TestProcessor_PlaintextPacketsPassThroughUnchanged(t *testing.T) {
	var out bytes.Buffer
	proc := New(&out, nil, nil)

	payload1 := bytes.Repeat([]byte{0xAA}, tspacket.Size-4)
	payload2 := bytes.Repeat([]byte{0xBB}, tspacket.Size-4)

	pkt1 := buildPacket(t, false, false, payload1)
	pkt2 := buildPacket(t, false, false, payload2)

	ok, err := proc.ProcessPacket(pkt1)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = proc.ProcessPacket(pkt2)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, append(pkt1.GetBytes(), pkt2.GetBytes()...), out.Bytes())
}

func TestProcessor_ScrambledSinglePacketHeaderEntirelyInPacket(t *testing.T) {
	var out bytes.Buffer
	keys := map[byte]turing.Key{testStreamID: testKey()}
	proc := New(&out, keys, nil)
	require.True(t, proc.BindKey(testPID, testStreamID))

	payload := make([]byte, tspacket.Size-4)
	payload[0], payload[1], payload[2], payload[3] = 0x00, 0x00, 0x01, 0xB7 // sequence_end, 4 bytes
	payload[4], payload[5], payload[6], payload[7] = 0x00, 0x00, 0x01, 0x01 // slice, terminates scan
	for i := 8; i < len(payload); i++ {
		payload[i] = 0xEE
	}

	pkt := buildPacket(t, true, true, payload)
	ok, err := proc.ProcessPacket(pkt)
	require.NoError(t, err)
	require.True(t, ok)

	written := out.Bytes()
	require.Len(t, written, tspacket.Size)
	assert.Equal(t, byte(0), written[3]&0xC0, "scramble bits must be cleared")
	assert.Equal(t, payload[:4], written[4:8], "header bytes must pass through unchanged")

	wantRegion := expectDecrypt(t, payload[4:])
	assert.Equal(t, wantRegion, written[8:])
}

func TestProcessor_PesHeaderStraddlingTwoPackets(t *testing.T) {
	var out bytes.Buffer
	keys := map[byte]turing.Key{testStreamID: testKey()}
	proc := New(&out, keys, nil)
	require.True(t, proc.BindKey(testPID, testStreamID))

	payload1 := bytes.Repeat([]byte{0xCC}, tspacket.Size-4)
	payload1[0], payload1[1], payload1[2], payload1[3] = 0x00, 0x00, 0x01, 0xB2 // user_data

	payload2 := bytes.Repeat([]byte{0xCC}, tspacket.Size-4)
	// Marker placed 20 bytes into packet2's payload: the user_data scan from
	// packet1 runs through packet1's 184 bytes plus the first 20 of packet2
	// before hitting this start-code prefix, then an immediate slice code
	// terminates scanning.
	payload2[20], payload2[21], payload2[22], payload2[23] = 0x00, 0x00, 0x01, 0x01

	pkt1 := buildPacket(t, true, true, payload1)
	pkt2 := buildPacket(t, false, true, payload2)

	ok, err := proc.ProcessPacket(pkt1)
	require.NoError(t, err)
	require.True(t, ok, "first packet alone should remain buffering, not fail")
	assert.Equal(t, 0, out.Len(), "nothing should be written until the group flushes")

	ok, err = proc.ProcessPacket(pkt2)
	require.NoError(t, err)
	require.True(t, ok)

	written := out.Bytes()
	require.Len(t, written, 2*tspacket.Size)

	frame1 := written[:tspacket.Size]
	frame2 := written[tspacket.Size:]

	assert.Equal(t, byte(0), frame1[3]&0xC0)
	assert.Equal(t, byte(0), frame2[3]&0xC0)
	// packet1's pes_header_offset equals its full payload length: no bytes
	// to decrypt, the payload passes through unchanged.
	assert.Equal(t, payload1, frame1[4:])
	// packet2's header region (first 20 bytes) passes through unchanged;
	// the rest was decrypted.
	assert.Equal(t, payload2[:20], frame2[4:24])
	wantTail := expectDecrypt(t, payload2[20:])
	assert.Equal(t, wantTail, frame2[24:])
}

func TestProcessor_UnknownStartCodeRejectsGroup(t *testing.T) {
	var out bytes.Buffer
	proc := New(&out, nil, nil)

	payload := bytes.Repeat([]byte{0xCC}, tspacket.Size-4)
	payload[0], payload[1], payload[2], payload[3] = 0x00, 0x00, 0x01, 0xFF

	pkt := buildPacket(t, true, false, payload)
	ok, err := proc.ProcessPacket(pkt)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestProcessor_RejectHookFiresWithPidAndBufferedPayload(t *testing.T) {
	var out bytes.Buffer

	var gotPID uint16
	var gotScratch []byte
	hook := func(pid uint16, scratch []byte) {
		gotPID = pid
		gotScratch = append([]byte(nil), scratch...)
	}

	proc := New(&out, nil, nil, WithRejectHook(hook))

	payload := bytes.Repeat([]byte{0xCC}, tspacket.Size-4)
	payload[0], payload[1], payload[2], payload[3] = 0x00, 0x00, 0x01, 0xFF

	pkt := buildPacket(t, true, false, payload)
	ok, err := proc.ProcessPacket(pkt)
	require.Error(t, err)
	assert.False(t, ok)

	assert.Equal(t, testPID, gotPID)
	assert.Equal(t, payload, gotScratch)
}

func TestProcessor_RejectHookNotCalledWhenPendingIsEmpty(t *testing.T) {
	var out bytes.Buffer

	called := false
	hook := func(uint16, []byte) { called = true }

	proc := New(&out, nil, nil, WithRejectHook(hook))
	state := proc.streamState(testPID)
	proc.rejectGroup(testPID, state)

	assert.False(t, called, "hook should not fire when there is nothing pending")
}

func TestProcessor_HeaderSpanningWholePayloadRemainsBuffering(t *testing.T) {
	var out bytes.Buffer
	proc := New(&out, nil, nil)

	payload := bytes.Repeat([]byte{0xCC}, tspacket.Size-4)
	payload[0], payload[1], payload[2], payload[3] = 0x00, 0x00, 0x01, 0xB2

	pkt := buildPacket(t, true, true, payload)
	ok, err := proc.ProcessPacket(pkt)
	require.NoError(t, err)
	assert.True(t, ok, "header consuming the whole payload should remain buffering, not fail")
	assert.Equal(t, 0, out.Len())
}
