package cmd

import (
	"fmt"
	"log/slog"

	"github.com/jmylchreest/dvrtsdecode/internal/database"
	"github.com/jmylchreest/dvrtsdecode/internal/historyexport"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and export decode job history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent decode job history records",
	RunE:  runHistoryList,
}

var historyExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export decode job history as brotli-compressed NDJSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

var historyImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Print decode job history from a brotli-compressed NDJSON export",
	Long: `Import reads a history export produced by "history export" and prints
each record; it does not re-insert records into the database, since decode
job IDs are meant to stay unique to the run that produced them.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryImport,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyImportCmd)

	historyListCmd.Flags().Int("limit", 50, "maximum number of records to list")
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	jobs, err := database.NewJobRepository(db).List(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("listing decode jobs: %w", err)
	}

	for _, job := range jobs {
		fmt.Printf("%s\t%s\t%s\t%s\tin=%d out=%d rejected=%d\n",
			job.ID, job.Status, job.SourcePath, job.SinkDescriptor,
			job.PacketsIn, job.PacketsOut, job.Rejected)
	}
	return nil
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	const exportLimit = 1_000_000 // practical ceiling; List treats <=0 as "default 50", not "all"
	jobs, err := database.NewJobRepository(db).List(cmd.Context(), exportLimit)
	if err != nil {
		return fmt.Errorf("listing decode jobs: %w", err)
	}

	if err := historyexport.Export(args[0], jobs); err != nil {
		return fmt.Errorf("exporting decode job history: %w", err)
	}

	logger.Info("decode job history exported", slog.String("path", args[0]), slog.Int("count", len(jobs)))
	return nil
}

func runHistoryImport(_ *cobra.Command, args []string) error {
	jobs, err := historyexport.Import(args[0])
	if err != nil {
		return fmt.Errorf("importing decode job history: %w", err)
	}

	for _, job := range jobs {
		fmt.Printf("%s\t%s\t%s\t%s\tin=%d out=%d rejected=%d\n",
			job.ID, job.Status, job.SourcePath, job.SinkDescriptor,
			job.PacketsIn, job.PacketsOut, job.Rejected)
	}
	return nil
}
