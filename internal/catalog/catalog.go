// Package catalog builds and persists the title to last-revision mapping for a
// set of wiki categories.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qepting91/wikisync/internal/domain"
	"github.com/qepting91/wikisync/internal/storage"
)

const (
	// MemberPageSize is the category listing page size.
	MemberPageSize = 500
	// RevisionBatchSize is the number of titles per revisions query.
	RevisionBatchSize = 50
)

// TitleCatalog enumerates category members and annotates them with revision times.
type TitleCatalog struct {
	client domain.WikiClient
	logger *slog.Logger
}

// New returns a TitleCatalog backed by client. A nil logger uses slog.Default().
func New(client domain.WikiClient, logger *slog.Logger) *TitleCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &TitleCatalog{client: client, logger: logger}
}

// Build enumerates categories and annotates the result.
func (tc *TitleCatalog) Build(ctx context.Context, categories []string) (domain.Catalog, error) {
	titles, err := tc.EnumerateTitles(ctx, categories)
	if err != nil {
		return nil, err
	}
	tc.logger.Info("Enumerated page titles", "categories", len(categories), "titles", len(titles))

	annotated, err := tc.AnnotateWithRevisions(ctx, titles)
	if err != nil {
		return nil, err
	}
	tc.logger.Info("Annotated page titles", "titles", len(annotated), "dropped", len(titles)-len(annotated))
	return annotated, nil
}

// EnumerateTitles returns every page title under categories, following
// subcategories. Values are zero placeholders until annotated.
func (tc *TitleCatalog) EnumerateTitles(ctx context.Context, categories []string) (domain.Catalog, error) {
	out := make(domain.Catalog)
	visited := make(map[string]bool)
	for _, c := range categories {
		if err := tc.walk(ctx, domain.NormalizeCategory(c), visited, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (tc *TitleCatalog) walk(ctx context.Context, category string, visited map[string]bool, out domain.Catalog) error {
	if category == "" || visited[category] {
		return nil
	}
	visited[category] = true

	var subcategories []string
	cont := ""
	for {
		page, err := tc.client.CategoryMembers(ctx, category, cont, MemberPageSize)
		if err != nil {
			return fmt.Errorf("list members of %q: %w", category, err)
		}
		for _, m := range page.Members {
			if m.IsCategory() {
				subcategories = append(subcategories, domain.NormalizeCategory(m.Title))
				continue
			}
			out[m.Title] = time.Time{}
		}
		if page.Continue == "" {
			break
		}
		if page.Continue == cont {
			return &domain.UnexpectedResponseError{Reason: fmt.Sprintf("continuation for %q did not advance", category)}
		}
		cont = page.Continue
	}
	tc.logger.Debug("Listed category", "category", category, "subcategories", len(subcategories))

	for _, sub := range subcategories {
		if err := tc.walk(ctx, sub, visited, out); err != nil {
			return err
		}
	}
	return nil
}

// AnnotateWithRevisions returns a new catalog holding the last revision time of
// every title in titles. Pages the wiki reports as missing are dropped.
func (tc *TitleCatalog) AnnotateWithRevisions(ctx context.Context, titles domain.Catalog) (domain.Catalog, error) {
	sorted := titles.Titles()
	out := make(domain.Catalog, len(sorted))

	for start := 0; start < len(sorted); start += RevisionBatchSize {
		end := start + RevisionBatchSize
		if end > len(sorted) {
			end = len(sorted)
		}
		batch := sorted[start:end]

		revs, err := tc.client.Revisions(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("revisions for titles %d-%d: %w", start+1, end, err)
		}

		for _, title := range batch {
			rev, ok := revs[title]
			if !ok {
				return nil, &domain.UnexpectedResponseError{Reason: fmt.Sprintf("no revision info for %q", title)}
			}
			if rev.Missing {
				tc.logger.Info("Dropping missing page", "title", title)
				continue
			}
			if !rev.HasRevision {
				return nil, &domain.UnexpectedResponseError{Reason: fmt.Sprintf("no revisions reported for %q", title)}
			}
			out[title] = rev.LastRevisedAt.UTC()
		}
	}
	return out, nil
}

// Load reads a saved catalog. The boolean is false when no file exists.
func Load(path string) (domain.Catalog, bool, error) {
	var c domain.Catalog
	ok, err := storage.ReadJSON(path, &c)
	if err != nil || !ok {
		return nil, ok, err
	}
	if c == nil {
		// a literal null
		return nil, false, &domain.UnexpectedResponseError{Reason: path + " holds null instead of a catalog"}
	}
	return c, true, nil
}

// Save writes the catalog as a flat JSON object sorted by title.
func Save(path string, c domain.Catalog) error {
	if c == nil {
		c = domain.Catalog{}
	}
	return storage.WriteJSON(path, c)
}
