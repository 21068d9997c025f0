// Package codec provides read-only, post-decode diagnostics over an emitted
// transport stream: structural validation via go-astits, and codec-support
// detection via mediacommon. Neither touches the decode path itself — both
// run strictly after a successful decode and attach findings to the job
// record.
package codec

import (
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts/codecs"
)

// mediacommonSupportedCodecs tracks, at init time, which MPEG-TS codec
// types the linked mediacommon build actually implements, so the support
// table below degrades gracefully instead of hard-coding assumptions about
// a specific mediacommon release.
var mediacommonSupportedCodecs = struct {
	H264, H265, MPEG1, MPEG4 bool
	AAC, AC3, EAC3, MP3      bool
}{}

func init() {
	mediacommonSupportedCodecs.H264 = !isUnsupportedCodec(&mpegts.CodecH264{})
	mediacommonSupportedCodecs.H265 = !isUnsupportedCodec(&mpegts.CodecH265{})
	mediacommonSupportedCodecs.MPEG1 = !isUnsupportedCodec(&mpegts.CodecMPEG1Video{})
	mediacommonSupportedCodecs.MPEG4 = !isUnsupportedCodec(&mpegts.CodecMPEG4Video{})
	mediacommonSupportedCodecs.AAC = !isUnsupportedCodec(&mpegts.CodecMPEG4Audio{})
	mediacommonSupportedCodecs.AC3 = !isUnsupportedCodec(&mpegts.CodecAC3{})
	mediacommonSupportedCodecs.EAC3 = !isUnsupportedCodec(&codecs.EAC3{})
	mediacommonSupportedCodecs.MP3 = !isUnsupportedCodec(&mpegts.CodecMPEG1Audio{})
}

func isUnsupportedCodec(c mpegts.Codec) bool {
	_, isUnsupported := c.(*mpegts.CodecUnsupported)
	return isUnsupported
}

// StreamTypeDemuxable reports whether mediacommon can independently parse
// access units for an MPEG-TS stream_type byte from the container header's
// stream descriptors (spec.md §6's stream-type codes, not our own
// StreamType enum, since mediacommon keys off the wire byte directly).
func StreamTypeDemuxable(streamTypeCode byte) bool {
	switch streamTypeCode {
	case 0x1B: // H.264
		return mediacommonSupportedCodecs.H264
	case 0x24: // H.265 (not in spec.md's table, included for forward compatibility)
		return mediacommonSupportedCodecs.H265
	case 0x01, 0x02: // MPEG-1/2 video
		return mediacommonSupportedCodecs.MPEG1
	case 0x10: // MPEG-4 video
		return mediacommonSupportedCodecs.MPEG4
	case 0x0F: // AAC (ADTS)
		return mediacommonSupportedCodecs.AAC
	case 0x81: // AC-3
		return mediacommonSupportedCodecs.AC3
	case 0x87: // E-AC-3
		return mediacommonSupportedCodecs.EAC3
	case 0x03, 0x04: // MPEG audio
		return mediacommonSupportedCodecs.MP3
	default:
		return false
	}
}
