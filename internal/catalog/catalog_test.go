package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qepting91/wikisync/internal/collector"
	"github.com/qepting91/wikisync/internal/domain"
)

func day(s string) time.Time {
	ts, err := domain.ParseTimestamp(s + "T00:00:00Z")
	if err != nil {
		panic(err)
	}
	return ts
}

// stubClient wraps a MockClient and lets a test override single operations.
type stubClient struct {
	*collector.MockClient
	members   func(category, cont string) (domain.MemberPage, error)
	revisions func(titles []string) (map[string]domain.Revision, error)
}

func (s *stubClient) CategoryMembers(ctx context.Context, category, cont string, limit int) (domain.MemberPage, error) {
	if s.members != nil {
		return s.members(category, cont)
	}
	return s.MockClient.CategoryMembers(ctx, category, cont, limit)
}

func (s *stubClient) Revisions(ctx context.Context, titles []string) (map[string]domain.Revision, error) {
	if s.revisions != nil {
		return s.revisions(titles)
	}
	return s.MockClient.Revisions(ctx, titles)
}

func TestEnumerateTitles_Subcategories(t *testing.T) {
	mc := collector.NewMockClient()
	mc.AddCategory("Items", "Bronze bar", "Category:Weapons", "Abyssal whip")
	mc.AddCategory("Weapons", "Abyssal whip", "Dragon scimitar", "Category:Melee weapons")
	mc.AddCategory("Melee weapons", "Granite maul")

	titles, err := New(mc, nil).EnumerateTitles(context.Background(), []string{"Items"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Abyssal whip", "Bronze bar", "Dragon scimitar", "Granite maul"}, titles.Titles())
	for _, ts := range titles {
		assert.True(t, ts.IsZero())
	}
}

func TestEnumerateTitles_Cycle(t *testing.T) {
	mc := collector.NewMockClient()
	mc.AddCategory("A", "Page 1", "Category:B")
	mc.AddCategory("B", "Page 2", "Category:C")
	mc.AddCategory("C", "Page 3", "Category:A", "Category:C")

	titles, err := New(mc, nil).EnumerateTitles(context.Background(), []string{"A", "Category:B", "c"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Page 1", "Page 2", "Page 3"}, titles.Titles())
	assert.Equal(t, 3, mc.Calls("categorymembers"), "each category is listed once")
}

func TestEnumerateTitles_Pagination(t *testing.T) {
	mc := collector.NewMockClient()
	members := make([]string, 0, 1203)
	for i := 0; i < 1203; i++ {
		members = append(members, fmt.Sprintf("Page %04d", i))
	}
	mc.AddCategory("Big", members...)

	titles, err := New(mc, nil).EnumerateTitles(context.Background(), []string{"Big"})
	require.NoError(t, err)
	assert.Len(t, titles, 1203)
	assert.Equal(t, 3, mc.Calls("categorymembers"))
}

func TestEnumerateTitles_ErrorsAreFatal(t *testing.T) {
	netErr := &domain.NetworkError{Op: "categorymembers", Err: errors.New("connection reset")}
	client := &stubClient{
		MockClient: collector.NewMockClient(),
		members: func(category, cont string) (domain.MemberPage, error) {
			if category == "Weapons" {
				return domain.MemberPage{}, netErr
			}
			return domain.MemberPage{Members: []domain.Member{
				{Title: "Bronze bar"}, {Namespace: domain.CategoryNamespace, Title: "Category:Weapons"},
			}}, nil
		},
	}

	titles, err := New(client, nil).EnumerateTitles(context.Background(), []string{"Items", "Pets"})
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Nil(t, titles)
}

func TestEnumerateTitles_StuckContinuation(t *testing.T) {
	client := &stubClient{
		MockClient: collector.NewMockClient(),
		members: func(category, cont string) (domain.MemberPage, error) {
			return domain.MemberPage{Members: []domain.Member{{Title: "Loop"}}, Continue: "same"}, nil
		},
	}

	_, err := New(client, nil).EnumerateTitles(context.Background(), []string{"Items"})
	assert.ErrorIs(t, err, domain.ErrUnexpectedResponse)
}

func TestAnnotateWithRevisions(t *testing.T) {
	mc := collector.NewMockClient()
	titles := domain.Catalog{}
	for i := 0; i < 120; i++ {
		title := fmt.Sprintf("Page %03d", i)
		titles[title] = time.Time{}
		if i != 7 {
			mc.AddPage(title, "text", day("2019-02-01"))
		}
	}

	annotated, err := New(mc, nil).AnnotateWithRevisions(context.Background(), titles)
	require.NoError(t, err)

	assert.Len(t, annotated, 119)
	assert.NotContains(t, annotated, "Page 007")
	assert.Equal(t, day("2019-02-01"), annotated["Page 000"])
	assert.Equal(t, 3, mc.Calls("revisions"), "titles are sent in batches of 50")
	assert.Len(t, titles, 120, "input is not modified")
}

func TestAnnotateWithRevisions_ContractViolations(t *testing.T) {
	tests := []struct {
		name string
		revs map[string]domain.Revision
	}{
		{"title absent from response", map[string]domain.Revision{}},
		{"page without revisions", map[string]domain.Revision{"Page A": {PageID: 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubClient{
				MockClient: collector.NewMockClient(),
				revisions: func([]string) (map[string]domain.Revision, error) {
					return tt.revs, nil
				},
			}
			_, err := New(client, nil).AnnotateWithRevisions(context.Background(), domain.Catalog{"Page A": {}})
			assert.ErrorIs(t, err, domain.ErrUnexpectedResponse)
		})
	}
}

func TestBuild(t *testing.T) {
	mc := collector.NewDemoClient()

	c, err := New(mc, nil).Build(context.Background(), []string{"Items"})
	require.NoError(t, err)

	assert.Equal(t, domain.Catalog{
		"Abyssal whip":    day("2018-11-02"),
		"Bronze bar":      day("2019-03-14"),
		"Dragon scimitar": day("2019-01-05"),
	}, c)
}

func TestLoad_Absent(t *testing.T) {
	c, ok, err := Load(filepath.Join(t.TempDir(), "extract_page_titles_items.json"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, c)
}

func TestLoad_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titles.json")
	require.NoError(t, Save(path, domain.Catalog{}))

	c, ok, err := Load(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, c)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titles.json")
	in := domain.Catalog{
		"Page B": day("2019-01-01"),
		"Page A": day("2019-02-01"),
	}
	require.NoError(t, Save(path, in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"Page A\": \"2019-02-01T00:00:00Z\",\n  \"Page B\": \"2019-01-01T00:00:00Z\"\n}\n", string(raw))

	loaded, ok, err := Load(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, loaded)

	require.NoError(t, Save(path, loaded))
	again, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titles.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"Page A":"yesterday"}`), 0o644))

	_, _, err := Load(path)
	assert.ErrorIs(t, err, domain.ErrUnexpectedResponse)
}
