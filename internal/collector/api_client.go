package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/qepting91/wikisync/internal/domain"
)

// MaxTitlesPerQuery is the MediaWiki limit on titles per query for normal clients.
const MaxTitlesPerQuery = 50

// maxBodySize caps a single API response.
const maxBodySize = 32 * 1024 * 1024

// APIClient talks to a MediaWiki Action API endpoint.
type APIClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userAgent  string
}

// NewAPIClient builds a client that waits interval between requests.
// A zero interval disables pacing.
func NewAPIClient(baseURL, userAgent string, timeout, interval time.Duration) (*APIClient, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", baseURL, err)
	}
	if strings.TrimSpace(userAgent) == "" {
		return nil, fmt.Errorf("user agent is required")
	}

	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &APIClient{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		baseURL:    baseURL,
		userAgent:  userAgent,
	}, nil
}

// CategoryMembers lists one page of members of a category.
// API documentation: https://www.mediawiki.org/wiki/API:Categorymembers
func (ac *APIClient) CategoryMembers(ctx context.Context, category, cont string, limit int) (domain.MemberPage, error) {
	params := url.Values{
		"action":  []string{"query"},
		"list":    []string{"categorymembers"},
		"cmtitle": []string{domain.CategoryPrefix + domain.NormalizeCategory(category)},
		"cmlimit": []string{strconv.Itoa(limit)},
		"cmprop":  []string{"ids|title"},
	}
	if cont != "" {
		params.Set("cmcontinue", cont)
	}

	var response struct {
		Continue *struct {
			CMContinue string `json:"cmcontinue"`
		} `json:"continue"`
		Query *struct {
			CategoryMembers *[]domain.Member `json:"categorymembers"`
		} `json:"query"`
	}

	if err := ac.makeRequest(ctx, "categorymembers", params, &response); err != nil {
		return domain.MemberPage{}, err
	}
	if response.Query == nil || response.Query.CategoryMembers == nil {
		return domain.MemberPage{}, &domain.UnexpectedResponseError{
			Reason: fmt.Sprintf("categorymembers for %q has no query.categorymembers", category),
		}
	}

	page := domain.MemberPage{Members: *response.Query.CategoryMembers}
	for _, m := range page.Members {
		if m.Title == "" {
			return domain.MemberPage{}, &domain.UnexpectedResponseError{
				Reason: fmt.Sprintf("categorymembers for %q returned a member without title", category),
			}
		}
	}
	if response.Continue != nil {
		page.Continue = response.Continue.CMContinue
	}
	return page, nil
}

// Revisions reports the latest revision of each title, keyed by the title as requested.
// API documentation: https://www.mediawiki.org/wiki/API:Revisions
func (ac *APIClient) Revisions(ctx context.Context, titles []string) (map[string]domain.Revision, error) {
	if len(titles) == 0 {
		return map[string]domain.Revision{}, nil
	}
	if len(titles) > MaxTitlesPerQuery {
		return nil, fmt.Errorf("at most %d titles per revisions query, got %d", MaxTitlesPerQuery, len(titles))
	}

	params := url.Values{
		"action": []string{"query"},
		"prop":   []string{"revisions"},
		"rvprop": []string{"timestamp"},
		"titles": []string{strings.Join(titles, "|")},
	}

	var response struct {
		Query *struct {
			Normalized []struct {
				From string `json:"from"`
				To   string `json:"to"`
			} `json:"normalized"`
			Pages map[string]struct {
				PageID    int             `json:"pageid"`
				Title     string          `json:"title"`
				Missing   json.RawMessage `json:"missing"`
				Invalid   json.RawMessage `json:"invalid"`
				Revisions []struct {
					Timestamp string `json:"timestamp"`
				} `json:"revisions"`
			} `json:"pages"`
		} `json:"query"`
	}

	if err := ac.makeRequest(ctx, "revisions", params, &response); err != nil {
		return nil, err
	}
	if response.Query == nil || response.Query.Pages == nil {
		return nil, &domain.UnexpectedResponseError{Reason: "revisions response has no query.pages"}
	}

	// the API reports pages under their normalized title
	requested := make(map[string]string, len(titles))
	for _, t := range titles {
		requested[t] = t
	}
	for _, n := range response.Query.Normalized {
		if orig, ok := requested[n.From]; ok {
			requested[n.To] = orig
		}
	}

	out := make(map[string]domain.Revision, len(response.Query.Pages))
	for key, p := range response.Query.Pages {
		orig, ok := requested[p.Title]
		if !ok {
			return nil, &domain.UnexpectedResponseError{Reason: fmt.Sprintf("revisions returned unrequested title %q", p.Title)}
		}

		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, &domain.UnexpectedResponseError{Reason: fmt.Sprintf("page key %q is not an id", key), Err: err}
		}

		rev := domain.Revision{PageID: p.PageID}
		if id < 0 || len(p.Missing) > 0 || len(p.Invalid) > 0 {
			rev.Missing = true
			rev.PageID = id
			out[orig] = rev
			continue
		}
		if len(p.Revisions) > 0 {
			ts, err := domain.ParseTimestamp(p.Revisions[0].Timestamp)
			if err != nil {
				return nil, &domain.UnexpectedResponseError{Reason: fmt.Sprintf("bad revision timestamp for %q", p.Title), Err: err}
			}
			rev.LastRevisedAt = ts
			rev.HasRevision = true
		}
		out[orig] = rev
	}
	return out, nil
}

// WikiText returns the raw markup of the current revision of title.
// API documentation: https://www.mediawiki.org/wiki/API:Parsing_wikitext
func (ac *APIClient) WikiText(ctx context.Context, title string) (string, error) {
	params := url.Values{
		"action":        []string{"parse"},
		"prop":          []string{"wikitext"},
		"page":          []string{title},
		"formatversion": []string{"2"},
	}

	var response struct {
		Parse *struct {
			Title    string  `json:"title"`
			PageID   int     `json:"pageid"`
			WikiText *string `json:"wikitext"`
		} `json:"parse"`
	}

	err := ac.makeRequest(ctx, "parse", params, &response)
	var apiErr *domain.APIError
	if errors.As(err, &apiErr) && apiErr.Code == "missingtitle" {
		return "", &domain.PageNotFoundError{Title: title}
	}
	if err != nil {
		return "", err
	}
	if response.Parse == nil || response.Parse.WikiText == nil {
		return "", &domain.UnexpectedResponseError{Reason: fmt.Sprintf("parse response for %q has no wikitext", title)}
	}
	return *response.Parse.WikiText, nil
}

// makeRequest sends a GET with params and decodes the JSON body into result.
func (ac *APIClient) makeRequest(ctx context.Context, op string, params url.Values, result interface{}) error {
	if err := ac.limiter.Wait(ctx); err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}

	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ac.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", ac.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := ac.httpClient.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &domain.NetworkError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.UnexpectedResponseError{Reason: fmt.Sprintf("%s returned status %d", op, resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &domain.NetworkError{Op: op, Err: fmt.Errorf("read response body: %w", err)}
	}

	var envelope struct {
		Error *domain.APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &domain.UnexpectedResponseError{Reason: op + " body is not JSON", Err: err}
	}
	if envelope.Error != nil {
		return &domain.UnexpectedResponseError{Reason: op + " failed", Err: envelope.Error}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &domain.UnexpectedResponseError{Reason: op + " body has unexpected shape", Err: err}
	}
	return nil
}
