// Package decodejob drives one end-to-end decode: read the container
// header, bind Turing keys, then pump 188-byte transport-stream packets
// from the source through the reassembly/decryption engine to the sink.
package decodejob

import (
	"errors"
	"io"
	"log/slog"

	"github.com/jmylchreest/dvrtsdecode/internal/container"
	"github.com/jmylchreest/dvrtsdecode/internal/decodeerrors"
	"github.com/jmylchreest/dvrtsdecode/internal/ringbuffer"
	"github.com/jmylchreest/dvrtsdecode/internal/tsio"
	"github.com/jmylchreest/dvrtsdecode/internal/tspacket"
	"github.com/jmylchreest/dvrtsdecode/internal/tsprocess"
)

// Result summarises a completed decode attempt.
type Result struct {
	OK          bool
	Stats       tsprocess.Stats
	Header      container.Header
	FailureKind decodeerrors.Kind
}

// runOptions collects the ring-buffer and processor options a RunOption
// may contribute, keeping Run's own signature stable as either grows.
type runOptions struct {
	ringbufferOpts []ringbuffer.Option
	processorOpts  []tsprocess.Option
}

// RunOption configures one Run call.
type RunOption func(*runOptions)

// WithRingBufferOptions forwards opts to the reader's producer/consumer
// ring buffer.
func WithRingBufferOptions(opts ...ringbuffer.Option) RunOption {
	return func(ro *runOptions) {
		ro.ringbufferOpts = append(ro.ringbufferOpts, opts...)
	}
}

// withProcessorHook registers a rejected-packet-group callback on the
// underlying tsprocess.Processor.
func withProcessorHook(fn func(pid uint16, scratch []byte)) RunOption {
	return func(ro *runOptions) {
		ro.processorOpts = append(ro.processorOpts, tsprocess.WithRejectHook(fn))
	}
}

// Run reads a container header from source, derives Turing keys for every
// described stream, and decodes the packet body to sink. It returns a
// Result with OK false on the first packet-group failure or read error,
// per the no-partial-recovery error policy: any bytes already written to
// sink before that point are left as-is.
func Run(source io.Reader, sink io.Writer, logger *slog.Logger, opts ...RunOption) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ro := &runOptions{}
	for _, opt := range opts {
		opt(ro)
	}

	pr := tsio.New(source, logger, ro.ringbufferOpts...)
	defer pr.Close()

	header, err := container.ParseHeader(pr)
	if err != nil {
		return Result{FailureKind: decodeerrors.KindUnexpectedEOF}, err
	}

	keys, err := container.BuildKeyTable(header)
	if err != nil {
		return Result{Header: header}, err
	}

	proc := tsprocess.New(sink, keys, logger, ro.processorOpts...)
	for _, sd := range header.Streams {
		proc.BindKey(uint16(sd.StreamID), sd.StreamID)
	}

	for {
		raw, eof, err := pr.ReadExactOrEOF(tspacket.Size)
		if err != nil {
			if errors.Is(err, ringbuffer.ErrShutdown) {
				return Result{Header: header, Stats: proc.Stats()}, err
			}
			logger.Error("truncated input mid-packet", slog.Uint64("position", pr.Position()))
			return Result{Header: header, Stats: proc.Stats(), FailureKind: decodeerrors.KindUnexpectedEOF}, err
		}
		if eof {
			return Result{OK: true, Header: header, Stats: proc.Stats()}, nil
		}

		pkt, err := tspacket.Parse(raw)
		if err != nil {
			logger.Error("malformed packet, aborting decode", slog.Uint64("position", pr.Position()))
			return Result{Header: header, Stats: proc.Stats(), FailureKind: decodeerrors.KindMalformedPacket}, err
		}

		ok, err := proc.ProcessPacket(pkt)
		if !ok {
			logger.Error("packet group rejected, aborting decode", slog.Any("error", err))
			kind := decodeerrors.KindMalformedPacket
			var de *decodeerrors.Error
			if errors.As(err, &de) {
				kind = de.Kind
			}
			return Result{Header: header, Stats: proc.Stats(), FailureKind: kind}, err
		}
	}
}
