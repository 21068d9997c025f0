package container

import (
	"github.com/jmylchreest/dvrtsdecode/internal/decodeerrors"
	"github.com/jmylchreest/dvrtsdecode/internal/tsio"
)

// wire layout, decided as an implementation detail of the otherwise
// unspecified container header (the outer program-stream framing that
// precedes it is a separate, out-of-scope concern):
//
//	u8            stream_count
//	stream_count ×{ u8 stream_id, u8 stream_type, [16]byte initial_nonce }
//	u16_be        mak_length
//	mak_length    bytes of UTF-8 MAK

// ParseHeader reads the stream descriptor table and MAK from r, which must
// already be positioned at the start of the header region. The body that
// follows is untouched and ready to be read as a concatenation of 188-byte
// transport-stream packets.
func ParseHeader(r *tsio.PositionedReader) (Header, error) {
	var h Header

	count, err := r.ReadU8()
	if err != nil {
		return h, decodeerrors.New(decodeerrors.KindUnexpectedEOF, "container.ParseHeader", err)
	}

	h.Streams = make([]StreamDescriptor, 0, count)
	for i := 0; i < int(count); i++ {
		sd, err := parseStreamDescriptor(r)
		if err != nil {
			return h, err
		}
		h.Streams = append(h.Streams, sd)
	}

	makLen, err := r.ReadU16BE()
	if err != nil {
		return h, decodeerrors.New(decodeerrors.KindUnexpectedEOF, "container.ParseHeader", err)
	}
	makBytes, err := r.ReadExact(int(makLen))
	if err != nil {
		return h, decodeerrors.New(decodeerrors.KindUnexpectedEOF, "container.ParseHeader", err)
	}
	h.MAK = string(makBytes)

	return h, nil
}

func parseStreamDescriptor(r *tsio.PositionedReader) (StreamDescriptor, error) {
	var sd StreamDescriptor

	streamID, err := r.ReadU8()
	if err != nil {
		return sd, decodeerrors.New(decodeerrors.KindUnexpectedEOF, "container.parseStreamDescriptor", err)
	}
	typeCode, err := r.ReadU8()
	if err != nil {
		return sd, decodeerrors.New(decodeerrors.KindUnexpectedEOF, "container.parseStreamDescriptor", err)
	}
	nonce, err := r.ReadExact(NonceSize)
	if err != nil {
		return sd, decodeerrors.New(decodeerrors.KindUnexpectedEOF, "container.parseStreamDescriptor", err)
	}

	sd.StreamID = streamID
	sd.StreamType = StreamTypeFromCode(typeCode)
	sd.StreamTypeCode = typeCode
	copy(sd.InitialNonce[:], nonce)
	return sd, nil
}
