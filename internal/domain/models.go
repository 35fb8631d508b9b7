package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// TimestampLayout is the MediaWiki revision timestamp format.
const TimestampLayout = "2006-01-02T15:04:05Z"

// CategoryPrefix marks titles in the category namespace.
const CategoryPrefix = "Category:"

// CategoryNamespace is the MediaWiki namespace id for categories.
const CategoryNamespace = 14

// Catalog maps a page title to its last revision time.
type Catalog map[string]time.Time

// Titles returns the catalog titles in lexicographic order.
func (c Catalog) Titles() []string {
	titles := make([]string, 0, len(c))
	for t := range c {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return titles
}

func (c Catalog) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(c))
	for title, ts := range c {
		flat[title] = ts.UTC().Format(TimestampLayout)
	}
	return json.Marshal(flat)
}

func (c *Catalog) UnmarshalJSON(data []byte) error {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return &UnexpectedResponseError{Reason: "catalog is not a flat title/timestamp object", Err: err}
	}
	if flat == nil {
		return &UnexpectedResponseError{Reason: "catalog is null"}
	}
	out := make(Catalog, len(flat))
	for title, raw := range flat {
		ts, err := ParseTimestamp(raw)
		if err != nil {
			return &UnexpectedResponseError{Reason: fmt.Sprintf("bad timestamp for %q", title), Err: err}
		}
		out[title] = ts
	}
	*c = out
	return nil
}

// ParseTimestamp parses a YYYY-MM-DDTHH:MM:SSZ timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// ContentStore maps a page title to its raw wiki markup.
type ContentStore map[string]string

// Member is one entry of a category listing.
type Member struct {
	PageID    int    `json:"pageid"`
	Namespace int    `json:"ns"`
	Title     string `json:"title"`
}

// IsCategory reports whether the member is a subcategory.
func (m Member) IsCategory() bool {
	return m.Namespace == CategoryNamespace || strings.HasPrefix(m.Title, CategoryPrefix)
}

// MemberPage is one page of a category listing. An empty Continue marks the end.
type MemberPage struct {
	Members  []Member
	Continue string
}

// Revision holds what the revisions endpoint reports for one requested title.
type Revision struct {
	PageID        int
	Missing       bool
	LastRevisedAt time.Time
	HasRevision   bool
}

// WikiClient defines the remote API the catalog and synchronizer consume.
type WikiClient interface {
	CategoryMembers(ctx context.Context, category, cont string, limit int) (MemberPage, error)
	Revisions(ctx context.Context, titles []string) (map[string]Revision, error)
	WikiText(ctx context.Context, title string) (string, error)
}

// NormalizeCategory strips the namespace prefix and applies MediaWiki title rules.
func NormalizeCategory(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, CategoryPrefix)
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// Decision is the per-title synchronization state.
type Decision string

const (
	DecisionSkip  Decision = "SKIP"
	DecisionFetch Decision = "FETCH"
	DecisionDone  Decision = "DONE"
)

// Outcome is what happened to a single title during a run.
type Outcome struct {
	Title         string
	LastRevisedAt time.Time
	Decision      Decision
	Err           error
}
