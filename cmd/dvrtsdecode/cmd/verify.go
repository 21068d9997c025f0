package cmd

import (
	"fmt"
	"os"

	"github.com/jmylchreest/dvrtsdecode/internal/codec"
	"github.com/jmylchreest/dvrtsdecode/internal/container"
	"github.com/jmylchreest/dvrtsdecode/internal/tsio"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <output.ts>",
	Short: "Structurally validate a decoded transport stream",
	Long: `Verify re-demuxes a decoded transport stream and reports whether a
PMT was found and which PIDs carry PES-framed data. This is a read-only
diagnostic: it never alters or gates a decode's outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("source", "", "original container file, to additionally report per-stream codec demuxability")
}

func runVerify(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer f.Close()

	report, err := codec.Validate(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("validating %s: %w", args[0], err)
	}

	fmt.Printf("pmt_found=%v described_pids=%v\n", report.PMTFound, report.DescribedPIDs)
	for pid, count := range report.PESCounts {
		fmt.Printf("pid=0x%04x pes_packets=%d\n", pid, count)
	}

	if source, _ := cmd.Flags().GetString("source"); source != "" {
		if err := reportCodecSupport(source); err != nil {
			return err
		}
	}
	return nil
}

func reportCodecSupport(sourcePath string) error {
	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("opening source %s: %w", sourcePath, err)
	}
	defer src.Close()

	pr := tsio.New(src, nil)
	defer pr.Close()

	header, err := container.ParseHeader(pr)
	if err != nil {
		return fmt.Errorf("parsing container header: %w", err)
	}

	for _, sd := range header.Streams {
		fmt.Printf("stream_id=%d type=%s demuxable=%v\n",
			sd.StreamID, sd.StreamType, codec.StreamTypeDemuxable(sd.StreamTypeCode))
	}
	return nil
}
