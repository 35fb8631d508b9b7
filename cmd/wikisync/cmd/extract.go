package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qepting91/wikisync/internal/catalog"
	"github.com/qepting91/wikisync/internal/collector"
	"github.com/qepting91/wikisync/internal/config"
	"github.com/qepting91/wikisync/internal/domain"
	"github.com/qepting91/wikisync/internal/ingest"
	"github.com/qepting91/wikisync/internal/ledger"
	"github.com/qepting91/wikisync/internal/synchronizer"
)

var (
	categoryFlags  []string
	categoriesFile string
	loadTitles     bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [category...]",
	Short: "Extract page titles and wiki text for categories",
	Long: `Extract page titles and wiki text for one or more categories.

Output files are named after the first category, lower-cased.

Examples:
  wikisync extract -c Items -c Pets
  wikisync extract Items Pets
  wikisync extract --categories-file categories.csv --load-titles`,
	RunE: func(cmd *cobra.Command, args []string) error {
		categories, err := gatherCategories(categoryFlags, args, categoriesFile)
		if err != nil {
			return err
		}

		client, err := collector.NewCollector(*cfg)
		if err != nil {
			return err
		}
		logger.Info("Collector initialized", "mode", cfg.Mode, "api", cfg.APIURL)

		var ledgerDB *sql.DB
		if cfg.LedgerPath != "" {
			if ledgerDB, err = ledger.Open(cfg.LedgerPath); err != nil {
				return err
			}
			defer ledgerDB.Close()
		}

		_, err = runExtract(cmd.Context(), *cfg, client, ledgerDB, categories, loadTitles, logger)
		return err
	},
}

// OutputPaths returns the catalog and content store paths for categories.
func OutputPaths(dir string, categories []string) (titles, text string) {
	primary := strings.ToLower(categories[0])
	return filepath.Join(dir, "extract_page_titles_"+primary+".json"),
		filepath.Join(dir, "extract_page_text_"+primary+".json")
}

func gatherCategories(flags, args []string, file string) ([]string, error) {
	var categories []string
	categories = append(categories, flags...)
	categories = append(categories, args...)
	if file != "" {
		fromFile, err := ingest.LoadCategories(file)
		if err != nil {
			return nil, fmt.Errorf("load categories file: %w", err)
		}
		categories = append(categories, fromFile...)
	}

	var valid []string
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if !ingest.ValidCategory(c) {
			return nil, fmt.Errorf("invalid category name %q", c)
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("at least one category is required")
	}
	return valid, nil
}

func runExtract(ctx context.Context, cfg config.Config, client domain.WikiClient, ledgerDB *sql.DB,
	categories []string, reuseTitles bool, logger *slog.Logger) (synchronizer.Report, error) {
	titlesPath, textPath := OutputPaths(cfg.OutDir, categories)

	var titles domain.Catalog
	if reuseTitles {
		loaded, ok, err := catalog.Load(titlesPath)
		if err != nil {
			return synchronizer.Report{}, err
		}
		if !ok {
			return synchronizer.Report{}, fmt.Errorf("asked to load page titles but %s does not exist", titlesPath)
		}
		titles = loaded
		logger.Info("Loaded page titles", "path", titlesPath, "titles", len(titles))
	} else {
		logger.Info("Starting wiki page titles extraction", "categories", categories)
		built, err := catalog.New(client, logger).Build(ctx, categories)
		if err != nil {
			return synchronizer.Report{}, fmt.Errorf("build catalog: %w", err)
		}
		if err := catalog.Save(titlesPath, built); err != nil {
			return synchronizer.Report{}, err
		}
		titles = built
		logger.Info("Saved page titles", "path", titlesPath, "titles", len(titles))
	}

	opts := []synchronizer.Option{synchronizer.WithLogger(logger)}
	if ledgerDB != nil {
		l, err := ledger.StartRun(ctx, ledgerDB)
		if err != nil {
			return synchronizer.Report{}, err
		}
		logger.Info("Recording run", "run_id", l.RunID())
		opts = append(opts, synchronizer.WithRecorder(l))
	}

	return synchronizer.New(client, textPath, cfg.Cutoff, opts...).Run(ctx, titles)
}

func init() {
	extractCmd.Flags().StringSliceVarP(&categoryFlags, "categories", "c", nil, "categories to extract (repeatable or comma separated)")
	extractCmd.Flags().StringVar(&categoriesFile, "categories-file", "", "CSV file listing categories in its first column")
	extractCmd.Flags().BoolVar(&loadTitles, "load-titles", false, "reuse the saved page titles instead of enumerating categories")
	rootCmd.AddCommand(extractCmd)
}
