package cmd

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/qepting91/wikisync/internal/dashboard"
	"github.com/qepting91/wikisync/internal/ledger"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard <category> [category...]",
	Short: "Serve charts describing the extracted data",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		categories, err := gatherCategories(nil, args, "")
		if err != nil {
			return err
		}
		titlesPath, textPath := OutputPaths(cfg.OutDir, categories)

		var ledgerDB *sql.DB
		if cfg.LedgerPath != "" {
			if ledgerDB, err = ledger.Open(cfg.LedgerPath); err != nil {
				return err
			}
			defer ledgerDB.Close()
		}

		logger.Info("Starting Dashboard", "port", cfg.Port)
		return dashboard.StartServer(cmd.Context(), dashboard.Sources{
			TitlesPath: titlesPath,
			TextPath:   textPath,
			Cutoff:     cfg.Cutoff,
			Ledger:     ledgerDB,
		}, cfg.Port, logger)
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
