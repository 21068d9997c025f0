// Package container parses the portion of the DVR container header that the
// decode engine needs: the per-stream descriptor table and the media access
// key, plus the stream-key derivation that turns them into Turing keys. The
// outer program-stream framing that precedes this header is a separate
// concern and is not handled here.
package container

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/jmylchreest/dvrtsdecode/internal/turing"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/text/unicode/norm"
)

// StreamType classifies an elementary stream carried in the container.
type StreamType int

// Stream type classifications, determined from the raw stream_type byte via
// StreamTypeFromCode.
const (
	StreamTypeNone StreamType = iota
	StreamTypeVideo
	StreamTypeAudio
	StreamTypePrivateData
	StreamTypeOther
)

func (t StreamType) String() string {
	switch t {
	case StreamTypeNone:
		return "none"
	case StreamTypeVideo:
		return "video"
	case StreamTypeAudio:
		return "audio"
	case StreamTypePrivateData:
		return "private_data"
	case StreamTypeOther:
		return "other"
	default:
		return "unknown"
	}
}

var videoCodes = map[byte]bool{0x01: true, 0x02: true, 0x10: true, 0x1B: true, 0x80: true, 0xEA: true}
var audioCodes = map[byte]bool{0x03: true, 0x04: true, 0x0F: true, 0x11: true, 0x81: true, 0x8A: true}
var privateDataCodes = map[byte]bool{0x97: true}
var noneCodes = map[byte]bool{0x00: true}

// StreamTypeFromCode maps a raw stream_type byte to its StreamType,
// defaulting unrecognised codes to PRIVATE_DATA.
func StreamTypeFromCode(code byte) StreamType {
	switch {
	case noneCodes[code]:
		return StreamTypeNone
	case videoCodes[code]:
		return StreamTypeVideo
	case audioCodes[code]:
		return StreamTypeAudio
	case privateDataCodes[code]:
		return StreamTypePrivateData
	case code >= 0x05 && code <= 0x1A, code == 0x7F:
		return StreamTypeOther
	default:
		return StreamTypePrivateData
	}
}

// NonceSize is the length of the per-stream initial nonce in the header.
const NonceSize = 16

// StreamDescriptor is one entry of the container header's stream table.
type StreamDescriptor struct {
	StreamID       byte
	StreamType     StreamType
	StreamTypeCode byte // raw wire stream_type byte, kept for codec-support lookups
	InitialNonce   [NonceSize]byte
}

// Header holds the decoded stream table and the media access key, the only
// parts of the outer container header this engine consumes.
type Header struct {
	MAK     string
	Streams []StreamDescriptor
}

// NormalizedMAK returns the media access key in Unicode Normalization Form C,
// so that visually identical keys typed with different composed/decomposed
// sequences derive identical stream keys.
func (h Header) NormalizedMAK() string {
	return norm.NFC.String(h.MAK)
}

// DeriveStreamKey turns a media access key, stream id, and per-stream
// initial nonce into a 16-byte Turing key via HKDF-SHA256, with the nonce as
// salt and the stream id as context info. This stands in for the
// proprietary MAK-to-Turing-key derivation, which is external to this
// system and pinned only by its input/output contract.
func DeriveStreamKey(mak string, streamID byte, initialNonce [NonceSize]byte) (turing.Key, error) {
	var key turing.Key

	reader := hkdf.New(sha256.New, []byte(norm.NFC.String(mak)), initialNonce[:], []byte{streamID})
	if _, err := io.ReadFull(reader, key[:]); err != nil {
		return key, fmt.Errorf("deriving stream key for stream %d: %w", streamID, err)
	}
	return key, nil
}

// KeyTable maps a stream id to its derived Turing key, built once per
// decode job from the header's stream descriptor table.
type KeyTable map[byte]turing.Key

// BuildKeyTable derives a Turing key for every stream descriptor in the header.
func BuildKeyTable(h Header) (KeyTable, error) {
	table := make(KeyTable, len(h.Streams))
	for _, sd := range h.Streams {
		key, err := DeriveStreamKey(h.MAK, sd.StreamID, sd.InitialNonce)
		if err != nil {
			return nil, err
		}
		table[sd.StreamID] = key
	}
	return table, nil
}
