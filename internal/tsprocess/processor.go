// Package tsprocess implements the transport-stream reassembly and
// selective-decryption engine: the per-PID state machine that buffers
// packets until a PES header boundary is known, decrypts only the
// post-header bytes of scrambled packets, and writes cleartext 188-byte
// frames to an output sink.
package tsprocess

import (
	"io"
	"log/slog"

	"github.com/jmylchreest/dvrtsdecode/internal/decodeerrors"
	"github.com/jmylchreest/dvrtsdecode/internal/mpegscan"
	"github.com/jmylchreest/dvrtsdecode/internal/tspacket"
	"github.com/jmylchreest/dvrtsdecode/internal/turing"
)

// blockPeriod is how many TS packets of a stream share one Turing block
// number before it advances.
const blockPeriod = 16

// maxPendingPackets bounds the per-PID pending queue; a PES header that has
// not resolved within this many packets is treated as malformed.
const maxPendingPackets = 10

type pidPhase int

const (
	phaseIdle pidPhase = iota
	phaseBuffering
)

// pidState is the per-PID bookkeeping the processor maintains across packets.
type pidState struct {
	phase   pidPhase
	pending []*tspacket.Packet

	turingState    *turing.State
	packetsInBlock int
}

// Stats holds the packet counters accumulated across ProcessPacket calls, for
// callers that want counters without parsing log lines.
type Stats struct {
	PacketsIn  int
	PacketsOut int
	Rejected   int
}

// Processor is the per-job reassembly/decryption engine. It is not safe for
// concurrent use by more than one goroutine; the decode pipeline drives it
// synchronously from the consumer side of the ring buffer.
type Processor struct {
	sink     io.Writer
	keys     map[byte]turing.Key
	logger   *slog.Logger
	onReject func(pid uint16, scratch []byte)

	pids  map[uint16]*pidState
	stats Stats
}

// Option configures optional Processor behaviour.
type Option func(*Processor)

// WithRejectHook registers fn to be called with a copy of a PID's buffered
// payload whenever its packet group is rejected, before the buffer is
// discarded. Used to feed diagnostics dumps without coupling this package
// to the diagnostics package.
func WithRejectHook(fn func(pid uint16, scratch []byte)) Option {
	return func(p *Processor) {
		p.onReject = fn
	}
}

// New creates a Processor writing cleartext frames to sink. keys maps a
// container stream id to its derived Turing key, which BindKey attaches to a
// PID; a scrambled packet with bytes to decrypt on a PID with no bound key
// is reported as a DecryptFailure rather than guessed at.
func New(sink io.Writer, keys map[byte]turing.Key, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		sink:   sink,
		keys:   keys,
		logger: logger,
		pids:   make(map[uint16]*pidState),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stats returns a snapshot of the packet counters accumulated so far.
func (p *Processor) Stats() Stats {
	return p.stats
}

// ProcessPacket feeds one transport-stream packet through the state
// machine. ok is false when the packet group containing pkt had to be
// rejected (an unrecognised start code, a malformed header sum, or a
// decrypt failure); the caller should treat that as the scenario-4/"process
// returns false" outcome and stop, per the no-partial-recovery policy.
func (p *Processor) ProcessPacket(pkt *tspacket.Packet) (ok bool, err error) {
	p.stats.PacketsIn++

	state := p.streamState(pkt.PID)

	switch state.phase {
	case phaseIdle:
		if !pkt.PayloadStart {
			// No prior buffering context: either a genuine continuation of
			// a stream whose start this file doesn't contain, or a PID with
			// no PES framing at all. Flush it standalone with no header.
			pkt.PESHeaderOffset = 0
			return p.flushSingle(state, pkt)
		}
		state.pending = append(state.pending, pkt)
		state.phase = phaseBuffering
		return p.recomputeBuffering(pkt.PID, state)

	case phaseBuffering:
		state.pending = append(state.pending, pkt)
		return p.recomputeBuffering(pkt.PID, state)
	}

	return false, nil
}

func (p *Processor) streamState(pid uint16) *pidState {
	st, ok := p.pids[pid]
	if !ok {
		st = &pidState{}
		p.pids[pid] = st
	}
	return st
}

// recomputeBuffering implements the Buffering-state transition: concatenate
// queued payloads, scan them, and decide whether the PES header has
// resolved inside the just-appended packet.
func (p *Processor) recomputeBuffering(pid uint16, state *pidState) (bool, error) {
	if len(state.pending) > maxPendingPackets {
		p.logger.Warn("pes header did not resolve within pending packet limit", slog.Int("pending", len(state.pending)))
		p.rejectGroup(pid, state)
		return false, decodeerrors.New(decodeerrors.KindMalformedPacket, "tsprocess.recomputeBuffering", errHeaderTooLong)
	}

	scratch := make([]byte, 0, maxPendingPackets*tspacket.Size)
	for _, pkt := range state.pending {
		scratch = append(scratch, pkt.Payload()...)
	}

	lengths, scanOK := mpegscan.Scan(scratch)
	if !scanOK {
		p.logger.Warn("unrecognised start code, rejecting packet group")
		p.rejectGroup(pid, state)
		return false, decodeerrors.New(decodeerrors.KindUnknownStartCode, "tsprocess.recomputeBuffering", errUnknownStartCode)
	}

	totalBits := 0
	for _, bits := range lengths {
		totalBits += bits
	}
	headerBytes := totalBits / 8

	if headerBytes > len(scratch) {
		p.logger.Warn("summed pes header length exceeds scratch buffer", slog.Int("header_bytes", headerBytes), slog.Int("scratch_len", len(scratch)))
		p.rejectGroup(pid, state)
		return false, decodeerrors.New(decodeerrors.KindMalformedPacket, "tsprocess.recomputeBuffering", errHeaderExceedsScratch)
	}

	if headerBytes < len(scratch) {
		return p.flushGroup(state, headerBytes)
	}

	return true, nil
}

// rejectGroup discards the pending queue and returns the PID to Idle so the
// next payload_start packet can begin a fresh attempt. If a reject hook is
// registered, it is handed a copy of the buffered payload first.
func (p *Processor) rejectGroup(pid uint16, state *pidState) {
	p.stats.Rejected += len(state.pending)
	if p.onReject != nil && len(state.pending) > 0 {
		scratch := make([]byte, 0, len(state.pending)*tspacket.Size)
		for _, pkt := range state.pending {
			scratch = append(scratch, pkt.Payload()...)
		}
		p.onReject(pid, scratch)
	}
	state.pending = nil
	state.phase = phaseIdle
}

// flushSingle writes one packet with no buffered header context, used for
// the Idle/no-payload-start path.
func (p *Processor) flushSingle(state *pidState, pkt *tspacket.Packet) (bool, error) {
	if err := p.emit(state, pkt); err != nil {
		return false, err
	}
	p.advanceBlockTracking(state)
	return true, nil
}

// flushGroup implements the Flush transition: distribute headerBytes across
// the pending queue, then drain each packet to the sink in order.
func (p *Processor) flushGroup(state *pidState, headerBytes int) (bool, error) {
	remaining := headerBytes
	for _, pkt := range state.pending {
		payloadLen := pkt.PayloadLength()
		if remaining >= payloadLen {
			pkt.PESHeaderOffset = payloadLen
			remaining -= payloadLen
		} else {
			pkt.PESHeaderOffset = remaining
			remaining = 0
			break
		}
	}

	pending := state.pending
	state.pending = nil
	state.phase = phaseIdle

	for _, pkt := range pending {
		if err := p.emit(state, pkt); err != nil {
			return false, err
		}
		p.advanceBlockTracking(state)
	}
	return true, nil
}

// emit writes pkt to the sink, decrypting its post-header bytes first if it
// is scrambled.
func (p *Processor) emit(state *pidState, pkt *tspacket.Packet) error {
	if !pkt.IsScrambled() {
		if _, err := p.sink.Write(pkt.GetBytes()); err != nil {
			return decodeerrors.New(decodeerrors.KindSinkWriteFailure, "tsprocess.emit", err)
		}
		p.stats.PacketsOut++
		return nil
	}

	region := append([]byte(nil), pkt.Payload()[pkt.PESHeaderOffset:]...)

	if err := p.decryptRegion(state, region); err != nil {
		return err
	}

	pkt.ClearScrambled()
	out, err := pkt.GetScrambledBytes(region)
	if err != nil {
		return decodeerrors.New(decodeerrors.KindMalformedPacket, "tsprocess.emit", err)
	}
	if _, err := p.sink.Write(out); err != nil {
		return decodeerrors.New(decodeerrors.KindSinkWriteFailure, "tsprocess.emit", err)
	}
	p.stats.PacketsOut++
	return nil
}

// decryptRegion decrypts a scrambled byte range in place. When the range
// carries a do_header prefix it is trusted as the authoritative block
// number and passed through unmodified; shorter ranges fall back to the
// 16-packets-per-block counter.
func (p *Processor) decryptRegion(state *pidState, region []byte) error {
	if len(region) == 0 {
		return nil
	}

	if state.turingState == nil {
		return decodeerrors.New(decodeerrors.KindDecryptFailure, "tsprocess.decryptRegion", errNoKeyForStream)
	}

	const headerLen = 5
	if len(region) > headerLen {
		streamID, block, err := turing.DoHeader(region[:headerLen])
		if err == nil {
			_ = streamID
			state.turingState.SetBlock(block)
			state.turingState.DecryptBytes(region[headerLen:])
			return nil
		}
	}

	state.turingState.DecryptBytes(region)
	return nil
}

// advanceBlockTracking bumps the per-stream packet counter and rolls the
// Turing block number every blockPeriod packets.
func (p *Processor) advanceBlockTracking(state *pidState) {
	if state.turingState == nil {
		return
	}
	state.packetsInBlock++
	if state.packetsInBlock >= blockPeriod {
		state.turingState.AdvanceBlock()
		state.packetsInBlock = 0
	}
}

// BindKey associates pid with the Turing key registered for streamID in the
// processor's key table, starting its block counter at 0. Call this once
// per PID before its first packet, typically driven by the container's
// stream descriptor table.
func (p *Processor) BindKey(pid uint16, streamID byte) bool {
	key, ok := p.keys[streamID]
	if !ok {
		return false
	}
	state := p.streamState(pid)
	state.turingState = turing.NewState(key)
	return true
}

type processError string

func (e processError) Error() string { return string(e) }

const (
	errHeaderTooLong        = processError("pes header did not resolve within pending packet limit")
	errUnknownStartCode     = processError("mpeg scanner hit an unrecognised start code")
	errHeaderExceedsScratch = processError("summed pes header length exceeds buffered payload")
	errNoKeyForStream       = processError("no turing key bound for scrambled stream")
)
