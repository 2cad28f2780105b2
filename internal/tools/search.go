package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atelier-ai/atelier/internal/log"
)

// SearchEntry is one result returned by the search backend.
type SearchEntry struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
	Source  string `json:"source"`
}

// SearchClient queries a SearXNG instance over its JSON API.
type SearchClient struct {
	baseURL string
	httpc   *http.Client
	logger  log.Logger
}

// NewSearchClient creates a client for the given SearXNG base URL.
func NewSearchClient(baseURL string, logger log.Logger) *SearchClient {
	return &SearchClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type searxngResponse struct {
	Results []struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		URL     string `json:"url"`
		Engine  string `json:"engine"`
	} `json:"results"`
}

// Search runs a query and returns at most maxResults entries.
func (c *SearchClient) Search(ctx context.Context, query string, maxResults int) ([]SearchEntry, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search backend returned status %d", resp.StatusCode)
	}

	var body searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	entries := make([]SearchEntry, 0, maxResults)
	for _, r := range body.Results {
		if len(entries) >= maxResults {
			break
		}
		entries = append(entries, SearchEntry{
			Title:   r.Title,
			Snippet: r.Content,
			URL:     r.URL,
			Source:  r.Engine,
		})
	}

	c.logger.Info("search completed", "query", query, "results", len(entries))
	return entries, nil
}

// FormatSearchResults renders entries into the numbered text block the model
// and the result reviewer both consume.
func FormatSearchResults(entries []SearchEntry) string {
	if len(entries) == 0 {
		return "🔍 Web search results:\n\nNo results found.\n"
	}

	var b strings.Builder
	b.WriteString("🔍 Web search results:\n\n")
	for i, e := range entries {
		source := e.Source
		if source == "" {
			source = "unknown"
		}
		fmt.Fprintf(&b, "[%d] %s\n📝 %s\n", i+1, e.Title, e.Snippet)
		if e.URL != "" {
			fmt.Fprintf(&b, "🔗 %s\n", e.URL)
		}
		fmt.Fprintf(&b, "📍 Source: %s\n\n", source)
	}
	return b.String()
}

// WebSearchInput is the argument set of the web_search tool.
type WebSearchInput struct {
	Query      string `json:"query" jsonschema:"the search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of results, default 5"`
}

// NewWebSearchTool creates the general web search tool.
func NewWebSearchTool(client *SearchClient) (Tool, error) {
	return New("web_search",
		"Search the web for information. Returns numbered results with titles, snippets, URLs and sources.",
		KindSearch,
		func(ctx context.Context, in WebSearchInput) (string, error) {
			if strings.TrimSpace(in.Query) == "" {
				return "", fmt.Errorf("query must not be empty")
			}
			max := in.MaxResults
			if max <= 0 || max > 20 {
				max = 5
			}
			entries, err := client.Search(ctx, in.Query, max)
			if err != nil {
				return "", err
			}
			return FormatSearchResults(entries), nil
		})
}

// RecentNewsInput is the argument set of the search_recent_news tool.
type RecentNewsInput struct {
	Topic string `json:"topic" jsonschema:"the news topic to search for"`
	Days  int    `json:"days,omitempty" jsonschema:"how many days back to look, default 7"`
}

// NewRecentNewsTool creates the recency-biased news search tool. The query
// is anchored to a date window so stale articles rank lower.
func NewRecentNewsTool(client *SearchClient, now func() time.Time) (Tool, error) {
	return New("search_recent_news",
		"Search for recent news on a topic within the last N days.",
		KindSearch,
		func(ctx context.Context, in RecentNewsInput) (string, error) {
			if strings.TrimSpace(in.Topic) == "" {
				return "", fmt.Errorf("topic must not be empty")
			}
			days := in.Days
			if days <= 0 || days > 90 {
				days = 7
			}
			cutoff := now().AddDate(0, 0, -days)
			query := fmt.Sprintf("%s after:%s", in.Topic, cutoff.Format("2006-01-02"))
			entries, err := client.Search(ctx, query, 10)
			if err != nil {
				return "", err
			}
			return FormatSearchResults(entries), nil
		})
}
