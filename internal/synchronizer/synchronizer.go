// Package synchronizer keeps a local content store current with a catalog of
// page revisions, fetching only pages that may have changed.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/qepting91/wikisync/internal/domain"
	"github.com/qepting91/wikisync/internal/storage"
)

// Recorder receives the outcome of every title processed by a run.
type Recorder interface {
	Record(ctx context.Context, o domain.Outcome) error
}

// Report summarizes a run.
type Report struct {
	Total    int
	Skipped  int
	Fetched  int
	NotFound int
	Failed   int
}

// Synchronizer fetches wiki text for catalog titles into a JSON content store.
type Synchronizer struct {
	client    domain.WikiClient
	storePath string
	cutoff    time.Time
	logger    *slog.Logger
	recorder  Recorder
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = l
	}
}

// WithRecorder records every per-title outcome.
func WithRecorder(r Recorder) Option {
	return func(s *Synchronizer) {
		s.recorder = r
	}
}

// New returns a Synchronizer writing to storePath. Pages stored already and
// last revised before cutoff are not fetched again.
func New(client domain.WikiClient, storePath string, cutoff time.Time, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		client:    client,
		storePath: storePath,
		cutoff:    cutoff,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Decide returns SKIP when title is stored and was last revised before cutoff,
// FETCH otherwise. The content's own fetch time is not consulted.
func Decide(title string, lastRevisedAt time.Time, store domain.ContentStore, cutoff time.Time) domain.Decision {
	if _, ok := store[title]; ok && lastRevisedAt.Before(cutoff) {
		return domain.DecisionSkip
	}
	return domain.DecisionFetch
}

// LoadStore reads the content store. The boolean is false when no file exists.
func LoadStore(path string) (domain.ContentStore, bool, error) {
	var store domain.ContentStore
	ok, err := storage.ReadJSON(path, &store)
	if err != nil || !ok {
		return nil, ok, err
	}
	if store == nil {
		return nil, false, &domain.UnexpectedResponseError{Reason: path + " holds null instead of a content store"}
	}
	return store, true, nil
}

// MergeAndPersist sets title to text in the store at path and rewrites the file.
func MergeAndPersist(path, title, text string) error {
	store, ok, err := LoadStore(path)
	if err != nil {
		return err
	}
	if !ok {
		store = make(domain.ContentStore)
	}
	store[title] = text
	return storage.WriteJSON(path, store)
}

// FetchContent returns the current wiki markup of title.
func (s *Synchronizer) FetchContent(ctx context.Context, title string) (string, error) {
	return s.client.WikiText(ctx, title)
}

// Run processes every catalog title in order. Per-title fetch errors are
// logged and counted; only persistence failures and cancellation stop the run.
func (s *Synchronizer) Run(ctx context.Context, catalog domain.Catalog) (Report, error) {
	store, _, err := LoadStore(s.storePath)
	if err != nil {
		return Report{}, fmt.Errorf("load content store: %w", err)
	}
	if store == nil {
		store = make(domain.ContentStore)
	}

	titles := catalog.Titles()
	report := Report{Total: len(titles)}
	s.logger.Info("Starting wiki text extraction", "titles", report.Total, "stored", len(store), "cutoff", s.cutoff.Format(domain.TimestampLayout))

	for i, title := range titles {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("run interrupted after %d of %d titles: %w", i, report.Total, err)
		}

		outcome := domain.Outcome{
			Title:         title,
			LastRevisedAt: catalog[title],
			Decision:      Decide(title, catalog[title], store, s.cutoff),
		}
		s.logger.Debug("Processing", "progress", fmt.Sprintf("%d of %d", i+1, report.Total), "title", title, "decision", outcome.Decision)

		if outcome.Decision == domain.DecisionSkip {
			report.Skipped++
			s.record(ctx, outcome)
			continue
		}

		text, err := s.FetchContent(ctx, title)
		if err != nil {
			outcome.Err = err
			s.record(ctx, outcome)
			if errors.Is(err, domain.ErrPageNotFound) {
				report.NotFound++
				s.logger.Warn("Page no longer exists", "title", title)
			} else {
				report.Failed++
				s.logger.Error("Fetch failed", "title", title, "err", err)
			}
			continue
		}

		if err := MergeAndPersist(s.storePath, title, text); err != nil {
			return report, fmt.Errorf("persist %q: %w", title, err)
		}
		store[title] = text
		report.Fetched++
		outcome.Decision = domain.DecisionDone
		s.record(ctx, outcome)
		s.logger.Info("Extracted page", "progress", fmt.Sprintf("%d of %d", i+1, report.Total), "title", title)
	}

	s.logger.Info("Wiki text extraction complete",
		"fetched", report.Fetched, "skipped", report.Skipped, "not_found", report.NotFound, "failed", report.Failed)
	return report, nil
}

func (s *Synchronizer) record(ctx context.Context, o domain.Outcome) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, o); err != nil {
		s.logger.Warn("Failed to record outcome", "title", o.Title, "err", err)
	}
}
