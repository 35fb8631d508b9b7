package collector

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/qepting91/wikisync/internal/domain"
)

// MockPage is a page held by MockClient.
type MockPage struct {
	Text      string
	RevisedAt time.Time
}

// MockClient implements domain.WikiClient over an in-memory wiki.
type MockClient struct {
	mu         sync.Mutex
	categories map[string][]string
	pages      map[string]MockPage
	calls      map[string]int
}

func NewMockClient() *MockClient {
	return &MockClient{
		categories: make(map[string][]string),
		pages:      make(map[string]MockPage),
		calls:      make(map[string]int),
	}
}

// NewDemoClient returns a mock wiki with a few categories, including a cycle.
func NewDemoClient() *MockClient {
	mc := NewMockClient()
	day := func(s string) time.Time {
		ts, _ := domain.ParseTimestamp(s + "T00:00:00Z")
		return ts
	}
	mc.AddCategory("Items", "Abyssal whip", "Bronze bar", "Category:Weapons")
	mc.AddCategory("Weapons", "Abyssal whip", "Dragon scimitar", "Category:Items")
	mc.AddCategory("Pets", "Pet rock", "Baby mole")
	mc.AddPage("Abyssal whip", "{{Infobox Item|name=Abyssal whip}}", day("2018-11-02"))
	mc.AddPage("Bronze bar", "{{Infobox Item|name=Bronze bar}}", day("2019-03-14"))
	mc.AddPage("Dragon scimitar", "{{Infobox Item|name=Dragon scimitar}}", day("2019-01-05"))
	mc.AddPage("Pet rock", "{{Infobox Pet|name=Pet rock}}", day("2017-06-21"))
	mc.AddPage("Baby mole", "{{Infobox Pet|name=Baby mole}}", day("2019-02-10"))
	return mc
}

// AddCategory sets the members of a category. Subcategories use the Category: prefix.
func (mc *MockClient) AddCategory(name string, members ...string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.categories[domain.NormalizeCategory(name)] = append([]string(nil), members...)
}

// AddPage creates or replaces a page.
func (mc *MockClient) AddPage(title, text string, revisedAt time.Time) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.pages[title] = MockPage{Text: text, RevisedAt: revisedAt}
}

// DeletePage removes a page while leaving category listings untouched.
func (mc *MockClient) DeletePage(title string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.pages, title)
}

// Calls returns how many times an operation was invoked.
func (mc *MockClient) Calls(op string) int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.calls[op]
}

func (mc *MockClient) CategoryMembers(ctx context.Context, category, cont string, limit int) (domain.MemberPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.MemberPage{}, &domain.NetworkError{Op: "categorymembers", Err: err}
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.calls["categorymembers"]++

	members := mc.categories[domain.NormalizeCategory(category)]
	start := 0
	if cont != "" {
		n, err := strconv.Atoi(cont)
		if err != nil || n < 0 || n > len(members) {
			return domain.MemberPage{}, &domain.UnexpectedResponseError{Reason: fmt.Sprintf("bad continuation %q", cont)}
		}
		start = n
	}
	end := start + limit
	if limit <= 0 || end > len(members) {
		end = len(members)
	}

	page := domain.MemberPage{Members: make([]domain.Member, 0, end-start)}
	for i, title := range members[start:end] {
		m := domain.Member{PageID: start + i + 1, Title: title}
		if strings.HasPrefix(title, domain.CategoryPrefix) {
			m.Namespace = domain.CategoryNamespace
		}
		page.Members = append(page.Members, m)
	}
	if end < len(members) {
		page.Continue = strconv.Itoa(end)
	}
	return page, nil
}

func (mc *MockClient) Revisions(ctx context.Context, titles []string) (map[string]domain.Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.NetworkError{Op: "revisions", Err: err}
	}
	if len(titles) > MaxTitlesPerQuery {
		return nil, fmt.Errorf("at most %d titles per revisions query, got %d", MaxTitlesPerQuery, len(titles))
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.calls["revisions"]++

	sorted := append([]string(nil), titles...)
	sort.Strings(sorted)
	out := make(map[string]domain.Revision, len(titles))
	for i, t := range sorted {
		p, ok := mc.pages[t]
		if !ok {
			out[t] = domain.Revision{PageID: -(i + 1), Missing: true}
			continue
		}
		out[t] = domain.Revision{PageID: i + 1, LastRevisedAt: p.RevisedAt, HasRevision: true}
	}
	return out, nil
}

func (mc *MockClient) WikiText(ctx context.Context, title string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.NetworkError{Op: "parse", Err: err}
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.calls["parse"]++

	p, ok := mc.pages[title]
	if !ok {
		return "", &domain.PageNotFoundError{Title: title}
	}
	return p.Text, nil
}
