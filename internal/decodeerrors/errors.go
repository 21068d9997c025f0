// Package decodeerrors defines the semantic error kinds produced while
// decoding a DVR container into a transport stream, per the error-handling
// design: the ring buffer, scanner, and processor all surface one of these
// rather than ad-hoc wrapped errors so callers can branch on kind.
package decodeerrors

import "errors"

// Kind identifies the semantic category of a decode failure.
type Kind int

const (
	// KindUnexpectedEOF means the consumer asked for N bytes and the input
	// closed with fewer available.
	KindUnexpectedEOF Kind = iota
	// KindBufferExhausted means the ring buffer could not grow further.
	KindBufferExhausted
	// KindMalformedPacket means the sync byte was absent or framing was impossible.
	KindMalformedPacket
	// KindUnknownStartCode means the scanner saw a start-code prefix with an
	// unrecognised identifier.
	KindUnknownStartCode
	// KindDecryptFailure means the Turing block header parse failed.
	KindDecryptFailure
	// KindSinkWriteFailure means the output write returned an I/O error.
	KindSinkWriteFailure
)

func (k Kind) String() string {
	switch k {
	case KindUnexpectedEOF:
		return "unexpected_eof"
	case KindBufferExhausted:
		return "buffer_exhausted"
	case KindMalformedPacket:
		return "malformed_packet"
	case KindUnknownStartCode:
		return "unknown_start_code"
	case KindDecryptFailure:
		return "decrypt_failure"
	case KindSinkWriteFailure:
		return "sink_write_failure"
	default:
		return "unknown"
	}
}

// Error is a decode failure tagged with a Kind, wrapping an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a decode error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err is a decode error of the given kind.
func Is(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}
