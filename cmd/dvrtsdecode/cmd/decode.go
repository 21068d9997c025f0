package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmylchreest/dvrtsdecode/internal/decodejob"
	"github.com/jmylchreest/dvrtsdecode/internal/ringbuffer"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode one container file into a transport stream",
	Long: `Decode reads a DVR container file from --source, derives Turing keys
from its header, and writes a cleartext MPEG transport stream to --dest.

The decode stops at the first packet-group rejection or truncated read;
bytes already written to --dest before that point are left as-is.`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().String("source", "", "path to the DVR container file (required)")
	decodeCmd.Flags().String("dest", "", "path to write the cleartext transport stream (required)")
	decodeCmd.MarkFlagRequired("source")
	decodeCmd.MarkFlagRequired("dest")
}

func runDecode(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	source, _ := cmd.Flags().GetString("source")
	dest, _ := cmd.Flags().GetString("dest")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	src, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("opening source %s: %w", source, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating destination %s: %w", dest, err)
	}
	defer out.Close()

	ringOpts := decodejob.WithRingBufferOptions(
		ringbuffer.WithMaxCapacity(int(cfg.Decode.RingBufferCapacity)),
		ringbuffer.WithMaxPull(int(cfg.Decode.RingBufferMaxPull)),
		ringbuffer.WithCompactionRatio(cfg.Decode.RingBufferCompactionRatio),
		ringbuffer.WithLogger(logger),
	)
	rejectOpt := decodejob.WithRejectDiagnostics(cfg.Diagnostics, filepath.Base(source), logger)

	result, err := decodejob.Run(src, out, logger, ringOpts, rejectOpt)
	if err != nil {
		logger.Error("decode failed",
			slog.String("source", source),
			slog.String("dest", dest),
			slog.String("failure_kind", result.FailureKind.String()),
			slog.Any("error", err),
		)
		return err
	}

	logger.Info("decode complete",
		slog.String("source", source),
		slog.String("dest", dest),
		slog.Int("packets_in", result.Stats.PacketsIn),
		slog.Int("packets_out", result.Stats.PacketsOut),
		slog.Int("rejected", result.Stats.Rejected),
	)
	return nil
}
