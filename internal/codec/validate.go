package codec

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astits"
)

// ValidationReport summarises a read-only re-demux of a decoded transport
// stream: whether a PMT was found, the PIDs it described, and per-PID PES
// packet counts observed while scanning.
type ValidationReport struct {
	PMTFound     bool
	DescribedPIDs []uint16
	PESCounts    map[uint16]int
}

// Validate demuxes r (an emitted cleartext transport stream) purely for
// diagnostic cross-checking: it never alters or gates a decode's outcome.
// A demux error is returned as-is; callers treat it as advisory.
func Validate(ctx context.Context, r io.Reader) (ValidationReport, error) {
	report := ValidationReport{PESCounts: make(map[uint16]int)}

	dmx := astits.NewDemuxer(ctx, r)
	for {
		data, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) || errors.Is(err, io.EOF) {
				break
			}
			return report, fmt.Errorf("demuxing output stream: %w", err)
		}

		if data.PMT != nil {
			report.PMTFound = true
			for _, es := range data.PMT.ElementaryStreams {
				report.DescribedPIDs = append(report.DescribedPIDs, es.ElementaryPID)
			}
		}

		if data.PES != nil {
			report.PESCounts[data.PID]++
		}
	}

	return report, nil
}
