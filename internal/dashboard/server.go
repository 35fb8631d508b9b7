package dashboard

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/qepting91/wikisync/internal/catalog"
	"github.com/qepting91/wikisync/internal/domain"
	"github.com/qepting91/wikisync/internal/ledger"
	"github.com/qepting91/wikisync/internal/synchronizer"
)

// Coverage labels.
const (
	CoverageCurrent    = "current"
	CoverageDue        = "due for refresh"
	CoverageNotStored  = "not extracted"
	CoverageStoredOnly = "stored, not in catalog"
)

// Sources locates the data the dashboard reports on. Ledger may be nil.
type Sources struct {
	TitlesPath string
	TextPath   string
	Cutoff     time.Time
	Ledger     *sql.DB
}

// Stats is everything the dashboard renders.
type Stats struct {
	RevisionsByYear map[int]int
	Coverage        map[string]int
	LastRun         map[string]int
}

// Collect reads the catalog, content store and ledger.
func Collect(ctx context.Context, src Sources) (Stats, error) {
	cat, _, err := catalog.Load(src.TitlesPath)
	if err != nil {
		return Stats{}, err
	}
	store, _, err := synchronizer.LoadStore(src.TextPath)
	if err != nil {
		return Stats{}, err
	}

	stats := Compute(cat, store, src.Cutoff)
	if src.Ledger != nil {
		runID, err := ledger.LatestRun(ctx, src.Ledger)
		if err != nil {
			return Stats{}, err
		}
		if runID != "" {
			if stats.LastRun, err = ledger.Summary(ctx, src.Ledger, runID); err != nil {
				return Stats{}, err
			}
		}
	}
	return stats, nil
}

// Compute derives revision and coverage counts. It classifies stored pages
// with the same rule the synchronizer applies.
func Compute(cat domain.Catalog, store domain.ContentStore, cutoff time.Time) Stats {
	stats := Stats{
		RevisionsByYear: make(map[int]int),
		Coverage:        make(map[string]int),
	}
	for title, revised := range cat {
		stats.RevisionsByYear[revised.Year()]++
		switch {
		case !hasTitle(store, title):
			stats.Coverage[CoverageNotStored]++
		case synchronizer.Decide(title, revised, store, cutoff) == domain.DecisionSkip:
			stats.Coverage[CoverageCurrent]++
		default:
			stats.Coverage[CoverageDue]++
		}
	}
	for title := range store {
		if _, ok := cat[title]; !ok {
			stats.Coverage[CoverageStoredOnly]++
		}
	}
	return stats
}

func hasTitle(store domain.ContentStore, title string) bool {
	_, ok := store[title]
	return ok
}

// Handler renders the report on every request.
func Handler(src Sources, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := Collect(r.Context(), src)
		if err != nil {
			logger.Error("Dashboard data failed", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		page := components.NewPage()
		page.AddCharts(revisionBar(stats), coveragePie(stats))
		if stats.LastRun != nil {
			page.AddCharts(runPie(stats))
		}
		if err := page.Render(w); err != nil {
			logger.Error("Dashboard render failed", "err", err)
		}
	})
}

// StartServer serves the dashboard on port until ctx is cancelled.
func StartServer(ctx context.Context, src Sources, port string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/", Handler(src, logger))
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Pages by last revision year
func revisionBar(stats Stats) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Pages by Last Revision Year"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	years := make([]int, 0, len(stats.RevisionsByYear))
	for y := range stats.RevisionsByYear {
		years = append(years, y)
	}
	sort.Ints(years)

	barX := make([]string, 0, len(years))
	barY := make([]opts.BarData, 0, len(years))
	for _, y := range years {
		barX = append(barX, strconv.Itoa(y))
		barY = append(barY, opts.BarData{Value: stats.RevisionsByYear[y]})
	}
	bar.SetXAxis(barX).AddSeries("Pages", barY)
	return bar
}

func coveragePie(stats Stats) *charts.Pie {
	return pieOf("Content Coverage", "Pages", stats.Coverage)
}

func runPie(stats Stats) *charts.Pie {
	return pieOf("Last Run Outcomes", "Titles", stats.LastRun)
}

func pieOf(title, series string, counts map[string]int) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	items := make([]opts.PieData, 0, len(keys))
	for _, k := range keys {
		items = append(items, opts.PieData{Name: k, Value: counts[k]})
	}
	pie.AddSeries(series, items)
	return pie
}
