package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qepting91/wikisync/internal/config"
)

var (
	cfg        *config.Config
	logger     *slog.Logger
	outDir     string
	ledgerPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "wikisync",
	Short: "Incrementally mirror wiki categories into local JSON files",
	Long: `wikisync enumerates every page of one or more wiki categories, records each
page's last revision time, and extracts the raw wiki text of pages that changed
since the last full extraction.

Configuration comes from WIKISYNC_* environment variables or a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("out") {
			loaded.OutDir = outDir
		}
		if cmd.Flags().Changed("ledger") {
			loaded.LedgerPath = ledgerPath
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", config.DefaultOutDir, "directory for the JSON output files")
	rootCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "SQLite run ledger path (empty disables)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every title")
}
