// Package mpegscan implements a stateless forward scanner over a byte
// window that locates consecutive MPEG-2 video and PES headers starting at
// offset 0, returning the bit-length of each header found. The processor
// uses the summed byte length to know how much of a buffered PES payload is
// header (plaintext) versus post-header scrambled data.
package mpegscan

const prefixLen = 3

// Start-code identifiers recognised at byte offset 3 of a 0x000001xx prefix.
const (
	codeExtension    = 0xB5
	codeGOP          = 0xB8
	codeUserData     = 0xB2
	codePicture      = 0x00
	codeSequence     = 0xB3
	codeSequenceEnd  = 0xB7
	codeAncillary    = 0xB6
	pesStreamLow     = 0xC0
	pesStreamHigh    = 0xEF
	pesPrivateStream = 0xBD
	sliceLow         = 0x01
	sliceHigh        = 0xAF
)

// Scan walks buf from offset 0 looking for a run of consecutive MPEG-2
// start-code-prefixed headers. It returns the bit-length of each header
// found, in order, and true if the scan terminated cleanly (ran out of
// window, hit a slice start code, or reached a non-start-code byte).
// It returns false if a start-code prefix was found with an identifier
// this scanner does not recognise; the caller must then reject the whole
// packet group.
func Scan(buf []byte) ([]int, bool) {
	var lengths []int
	offset := 0

	for {
		if offset+4 > len(buf) {
			return lengths, true
		}
		if buf[offset] != 0x00 || buf[offset+1] != 0x00 || buf[offset+2] != 0x01 {
			return lengths, true
		}

		code := buf[offset+3]

		switch {
		case code >= sliceLow && code <= sliceHigh:
			return lengths, true
		case code == codeExtension:
			bits, consumed := extensionHeaderLength(buf[offset:])
			lengths = append(lengths, bits)
			offset += consumed
		case code == codeGOP:
			lengths = append(lengths, gopHeaderBits)
			offset += gopHeaderBits / 8
		case code == codeUserData:
			bits, consumed := scanToNextStartCode(buf[offset:])
			lengths = append(lengths, bits)
			offset += consumed
		case code == codePicture:
			bits, consumed, ok := pictureHeaderLength(buf[offset:])
			if !ok {
				return lengths, false
			}
			lengths = append(lengths, bits)
			offset += consumed
		case code == codeSequence:
			bits, consumed, ok := sequenceHeaderLength(buf[offset:])
			if !ok {
				return lengths, false
			}
			lengths = append(lengths, bits)
			offset += consumed
		case code == codeSequenceEnd:
			lengths = append(lengths, sequenceEndBits)
			offset += sequenceEndBits / 8
		case code == codeAncillary:
			bits, consumed := scanToNextStartCode(buf[offset:])
			lengths = append(lengths, bits)
			offset += consumed
		case code == pesPrivateStream || (code >= pesStreamLow && code <= pesStreamHigh):
			bits, consumed, ok := pesHeaderLength(buf[offset:])
			if !ok {
				return lengths, false
			}
			lengths = append(lengths, bits)
			offset += consumed
		default:
			return lengths, false
		}
	}
}

const gopHeaderBits = 8 * 8      // start code + time_code/flags/stuffing
const sequenceEndBits = 4 * 8    // start code only

// scanToNextStartCode measures a variable-length region (user data,
// ancillary data) that runs until the next 0x000001 prefix or the end of
// the window, returning its length in bits and the number of bytes consumed.
func scanToNextStartCode(buf []byte) (bits int, consumed int) {
	i := prefixLen + 1 // skip this header's own start code + id byte
	for i+2 < len(buf) {
		if buf[i] == 0x00 && buf[i+1] == 0x00 && buf[i+2] == 0x01 {
			return i * 8, i
		}
		i++
	}
	return len(buf) * 8, len(buf)
}

// extensionHeaderLength gives the fixed bit-width, including the 4-byte start
// code, for each MPEG-2 extension_start_code_identifier. Identifiers this
// scanner has no table entry for still succeed with a conservative minimum
// width, matching the scanner's contract of only failing on an unrecognised
// top-level start code.
func extensionHeaderLength(buf []byte) (bits int, consumed int) {
	const minBits = 5 * 8
	if len(buf) < 5 {
		return len(buf) * 8, len(buf)
	}
	extID := buf[4] >> 4
	switch extID {
	case 1: // sequence extension
		bits = 10 * 8
	case 2: // sequence display extension (no colour description)
		bits = 6 * 8
	case 8: // picture coding extension
		bits = 5 * 8
	case 3: // quant matrix extension, at most 1+4*64 bits of matrices
		bits = minBits
	default:
		bits = minBits
	}
	if bits > len(buf)*8 {
		bits = len(buf) * 8
	}
	return bits, bits / 8
}

// bitReader reads big-endian bits from a byte slice starting at a bit
// offset, used only for computing header lengths; it never touches the
// ring buffer.
type bitReader struct {
	buf    []byte
	bitPos int
}

func (r *bitReader) readBits(n int) (uint32, bool) {
	var v uint32
	for i := 0; i < n; i++ {
		byteIdx := r.bitPos / 8
		if byteIdx >= len(r.buf) {
			return 0, false
		}
		bitIdx := 7 - (r.bitPos % 8)
		bit := (r.buf[byteIdx] >> uint(bitIdx)) & 1
		v = (v << 1) | uint32(bit)
		r.bitPos++
	}
	return v, true
}

// pictureHeaderLength parses the MPEG-2 picture_header syntax following the
// 4-byte start code: temporal_reference(10), picture_coding_type(3),
// vbv_delay(16), optional motion-vector fields depending on coding type, and
// a trailing extra_bit_picture/extra_information_picture loop.
func pictureHeaderLength(buf []byte) (bits int, consumed int, ok bool) {
	r := &bitReader{buf: buf, bitPos: 4 * 8}

	if _, ok = r.readBits(10); !ok { // temporal_reference
		return 0, 0, false
	}
	codingType, ok2 := r.readBits(3)
	if !ok2 {
		return 0, 0, false
	}
	if _, ok = r.readBits(16); !ok { // vbv_delay
		return 0, 0, false
	}

	if codingType == 2 || codingType == 3 { // P or B picture
		if _, ok = r.readBits(1); !ok { // full_pel_forward_vector
			return 0, 0, false
		}
		if _, ok = r.readBits(3); !ok { // forward_f_code
			return 0, 0, false
		}
	}
	if codingType == 3 { // B picture
		if _, ok = r.readBits(1); !ok { // full_pel_backward_vector
			return 0, 0, false
		}
		if _, ok = r.readBits(3); !ok { // backward_f_code
			return 0, 0, false
		}
	}

	for {
		extraBit, ok3 := r.readBits(1)
		if !ok3 {
			return 0, 0, false
		}
		if extraBit == 0 {
			break
		}
		if _, ok = r.readBits(8); !ok { // extra_information_picture
			return 0, 0, false
		}
	}

	total := r.bitPos
	return total, byteCeil(total), true
}

// sequenceHeaderLength parses the MPEG-2 sequence_header syntax following
// the 4-byte start code, including the optional intra/non-intra
// quantiser matrices.
func sequenceHeaderLength(buf []byte) (bits int, consumed int, ok bool) {
	r := &bitReader{buf: buf, bitPos: 4 * 8}

	fields := []int{12, 12, 4, 4, 18, 1, 10, 1}
	for _, n := range fields {
		if _, ok = r.readBits(n); !ok {
			return 0, 0, false
		}
	}

	loadIntra, ok2 := r.readBits(1)
	if !ok2 {
		return 0, 0, false
	}
	if loadIntra == 1 {
		if _, ok = r.readBits(64 * 8); !ok {
			return 0, 0, false
		}
	}

	loadNonIntra, ok3 := r.readBits(1)
	if !ok3 {
		return 0, 0, false
	}
	if loadNonIntra == 1 {
		if _, ok = r.readBits(64 * 8); !ok {
			return 0, 0, false
		}
	}

	total := r.bitPos
	return total, byteCeil(total), true
}

// pesHeaderLength parses the optional-fields prefix of a PES packet header:
// PES_packet_length(16), a fixed 16-bit flag pair, PES_header_data_length(8),
// followed by that many bytes of optional fields.
func pesHeaderLength(buf []byte) (bits int, consumed int, ok bool) {
	r := &bitReader{buf: buf, bitPos: 4 * 8}

	if _, ok = r.readBits(16); !ok { // PES_packet_length
		return 0, 0, false
	}
	if _, ok = r.readBits(16); !ok { // marker bits + flags
		return 0, 0, false
	}
	headerDataLen, ok2 := r.readBits(8)
	if !ok2 {
		return 0, 0, false
	}
	if _, ok = r.readBits(int(headerDataLen) * 8); !ok {
		return 0, 0, false
	}

	total := r.bitPos
	return total, byteCeil(total), true
}

func byteCeil(bits int) int {
	return (bits + 7) / 8
}
