// Package tspacket parses and re-serialises 188-byte MPEG transport-stream
// frames, the unit the reassembly engine buffers, selectively decrypts, and
// re-emits.
package tspacket

import (
	"github.com/jmylchreest/dvrtsdecode/internal/decodeerrors"
)

// Size is the fixed length of a transport-stream frame.
const Size = 188

// SyncByte is the required first byte of every frame.
const SyncByte = 0x47

// Packet holds a transport-stream frame's raw bytes plus the fields derived
// from its header. PESHeaderOffset is the one field set after construction,
// once the processor has resolved how much of this packet's payload is a
// PES header versus scrambled data.
type Packet struct {
	raw [Size]byte

	TransportError   bool
	PayloadStart     bool
	Priority         bool
	PID              uint16
	ScramblingControl byte
	AdaptationField  byte
	ContinuityCounter byte
	AdaptationFieldLength byte
	PayloadOffset    int

	// PESHeaderOffset is the number of bytes, counted from PayloadOffset,
	// that belong to a PES/MPEG header and must not be decrypted. Zero
	// until the processor's Flush transition finalises it.
	PESHeaderOffset int
}

// Parse builds a Packet from exactly Size raw bytes, copying them so later
// mutation of the caller's slice cannot alias the packet.
func Parse(buf []byte) (*Packet, error) {
	if len(buf) != Size {
		return nil, decodeerrors.New(decodeerrors.KindMalformedPacket, "tspacket.Parse", errWrongLength)
	}
	if buf[0] != SyncByte {
		return nil, decodeerrors.New(decodeerrors.KindMalformedPacket, "tspacket.Parse", errBadSyncByte)
	}

	p := &Packet{}
	copy(p.raw[:], buf)

	p.TransportError = buf[1]&0x80 != 0
	p.PayloadStart = buf[1]&0x40 != 0
	p.Priority = buf[1]&0x20 != 0
	p.PID = (uint16(buf[1]&0x1F) << 8) | uint16(buf[2])

	p.ScramblingControl = (buf[3] >> 6) & 0x03
	p.AdaptationField = (buf[3] >> 4) & 0x03
	p.ContinuityCounter = buf[3] & 0x0F

	offset := 4
	if p.AdaptationField&0x02 != 0 {
		if offset >= Size {
			return nil, decodeerrors.New(decodeerrors.KindMalformedPacket, "tspacket.Parse", errTruncatedAdaptation)
		}
		p.AdaptationFieldLength = buf[offset]
		offset += 1 + int(p.AdaptationFieldLength)
		if offset > Size {
			return nil, decodeerrors.New(decodeerrors.KindMalformedPacket, "tspacket.Parse", errTruncatedAdaptation)
		}
	}
	p.PayloadOffset = offset

	return p, nil
}

// IsScrambled reports whether the scrambling-control bits are non-zero.
func (p *Packet) IsScrambled() bool {
	return p.ScramblingControl != 0
}

// PayloadLength returns the number of payload bytes after PayloadOffset.
func (p *Packet) PayloadLength() int {
	return Size - p.PayloadOffset
}

// Payload returns the packet's payload region of the original raw bytes.
func (p *Packet) Payload() []byte {
	return p.raw[p.PayloadOffset:]
}

// ClearScrambled zeroes the scrambling-control bits in the cached header
// byte, leaving every other header bit untouched.
func (p *Packet) ClearScrambled() {
	p.ScramblingControl = 0
	p.raw[3] &^= 0xC0
}

// GetBytes returns the packet's 188 raw bytes unchanged.
func (p *Packet) GetBytes() []byte {
	out := make([]byte, Size)
	copy(out, p.raw[:])
	return out
}

// GetScrambledBytes returns a 188-byte frame in which bytes up to
// PayloadOffset+PESHeaderOffset are preserved from the original packet, the
// remaining payload bytes come from plaintext, and the scrambling-control
// bits are cleared. len(plaintext) must equal PayloadLength()-PESHeaderOffset.
func (p *Packet) GetScrambledBytes(plaintext []byte) ([]byte, error) {
	clearStart := p.PayloadOffset + p.PESHeaderOffset
	wantLen := Size - clearStart
	if len(plaintext) != wantLen {
		return nil, decodeerrors.New(decodeerrors.KindMalformedPacket, "tspacket.GetScrambledBytes", errPlaintextLengthMismatch)
	}

	out := make([]byte, Size)
	copy(out, p.raw[:clearStart])
	copy(out[clearStart:], plaintext)
	out[3] &^= 0xC0

	return out, nil
}

type packetError string

func (e packetError) Error() string { return string(e) }

const (
	errWrongLength             = packetError("packet is not 188 bytes")
	errBadSyncByte             = packetError("missing sync byte 0x47")
	errTruncatedAdaptation     = packetError("adaptation field length exceeds packet")
	errPlaintextLengthMismatch = packetError("plaintext length does not match post-header payload length")
)
