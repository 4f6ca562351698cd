package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultSearchURL is the HTML search endpoint used when WebBackend.Endpoint is empty.
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

// WebBackend fetches an HTML results page and summarizes the top results.
type WebBackend struct {
	Endpoint   string
	Client     *http.Client
	MaxResults int
	UserAgent  string

	// CSS selectors for one result and its parts.
	ResultSelector  string
	TitleSelector   string
	SnippetSelector string
}

// NewWebBackend returns a WebBackend with selectors for the default endpoint.
func NewWebBackend(endpoint string, timeout time.Duration) *WebBackend {
	if endpoint == "" {
		endpoint = DefaultSearchURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebBackend{
		Endpoint:        endpoint,
		Client:          &http.Client{Timeout: timeout},
		MaxResults:      3,
		UserAgent:       "saathi/1.0",
		ResultSelector:  ".result",
		TitleSelector:   ".result__a",
		SnippetSelector: ".result__snippet",
	}
}

type searchResult struct {
	Title   string
	Snippet string
}

func (b *WebBackend) Search(ctx context.Context, query string) (string, error) {
	u, err := url.Parse(b.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search endpoint returned %s", resp.Status)
	}

	results, err := b.parse(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}
	return summarize(query, results), nil
}

func (b *WebBackend) parse(r io.Reader) ([]searchResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	limit := b.MaxResults
	if limit <= 0 {
		limit = 3
	}
	var results []searchResult
	doc.Find(b.ResultSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		res := searchResult{
			Title:   collapse(s.Find(b.TitleSelector).First().Text()),
			Snippet: collapse(s.Find(b.SnippetSelector).First().Text()),
		}
		if res.Title == "" && res.Snippet == "" {
			return true
		}
		results = append(results, res)
		return len(results) < limit
	})
	return results, nil
}

func summarize(query string, results []searchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("Search results for %q: no results found.", query)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for %q:", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, r.Title)
		if r.Snippet != "" {
			sb.WriteString(" - ")
			sb.WriteString(r.Snippet)
		}
	}
	return sb.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
