package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qepting91/wikisync/internal/catalog"
	"github.com/qepting91/wikisync/internal/collector"
	"github.com/qepting91/wikisync/internal/config"
	"github.com/qepting91/wikisync/internal/domain"
	"github.com/qepting91/wikisync/internal/ledger"
	"github.com/qepting91/wikisync/internal/synchronizer"
)

func testConfig(t *testing.T) config.Config {
	cfg, err := config.FromEnv(func(k string) string {
		if k == "WIKISYNC_MODE" {
			return "mock"
		}
		return ""
	})
	require.NoError(t, err)
	cfg.OutDir = t.TempDir()
	return *cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestOutputPaths(t *testing.T) {
	titles, text := OutputPaths("out", []string{"Items", "Pets"})
	assert.Equal(t, filepath.Join("out", "extract_page_titles_items.json"), titles)
	assert.Equal(t, filepath.Join("out", "extract_page_text_items.json"), text)
}

func TestGatherCategories(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cats.csv")
	require.NoError(t, os.WriteFile(file, []byte("category\nQuests\n"), 0o644))

	got, err := gatherCategories([]string{"Items"}, []string{"Pets"}, file)
	require.NoError(t, err)
	assert.Equal(t, []string{"Items", "Pets", "Quests"}, got)

	_, err = gatherCategories(nil, nil, "")
	assert.Error(t, err)

	_, err = gatherCategories([]string{"Bad|Name"}, nil, "")
	assert.Error(t, err)
}

func TestRunExtract_FullThenIncremental(t *testing.T) {
	cfg := testConfig(t)
	mc := collector.NewDemoClient()
	ctx := context.Background()

	db, err := ledger.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	first, err := runExtract(ctx, cfg, mc, db, []string{"Items"}, false, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, synchronizer.Report{Total: 3, Fetched: 3}, first)

	titlesPath, textPath := OutputPaths(cfg.OutDir, []string{"Items"})
	saved, ok, err := catalog.Load(titlesPath)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"Abyssal whip", "Bronze bar", "Dragon scimitar"}, saved.Titles())

	store, ok, err := synchronizer.LoadStore(textPath)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "{{Infobox Item|name=Bronze bar}}", store["Bronze bar"])

	// a page revised after the cutoff is refetched on every run
	mc.AddPage("Bronze bar", "{{Infobox Item|name=Bronze bar|update=yes}}", time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC))
	second, err := runExtract(ctx, cfg, mc, db, []string{"Items"}, true, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, synchronizer.Report{Total: 3, Skipped: 2, Fetched: 1}, second)

	store, _, err = synchronizer.LoadStore(textPath)
	require.NoError(t, err)
	assert.Equal(t, "{{Infobox Item|name=Bronze bar|update=yes}}", store["Bronze bar"])

	runID, err := ledger.LatestRun(ctx, db)
	require.NoError(t, err)
	summary, err := ledger.Summary(ctx, db, runID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{ledger.StatusSkipped: 2, ledger.StatusFetched: 1}, summary)
}

func TestRunExtract_LoadTitlesAbsent(t *testing.T) {
	cfg := testConfig(t)
	mc := collector.NewDemoClient()

	_, err := runExtract(context.Background(), cfg, mc, nil, []string{"Pets"}, true, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
	assert.Equal(t, 0, mc.Calls("categorymembers"))
}

func TestRunExtract_CatalogFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	mc := collector.NewDemoClient()
	mc.AddCategory("Broken", "Ghost page")

	_, err := runExtract(context.Background(), cfg, mc, nil, []string{"Broken"}, false, quietLogger())
	require.NoError(t, err, "missing pages are dropped, not fatal")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runExtract(ctx, cfg, mc, nil, []string{"Pets"}, false, quietLogger())
	assert.ErrorIs(t, err, domain.ErrNetwork)

	titlesPath, _ := OutputPaths(cfg.OutDir, []string{"Pets"})
	_, ok, err := catalog.Load(titlesPath)
	require.NoError(t, err)
	assert.False(t, ok, "no catalog is written when enumeration fails")
}
