// Package search finds corroborating coverage for a claim on a short list
// of trusted news outlets.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// TrustedOutlets are the only domains surfaced as sources. Results from
// anywhere else are dropped.
var TrustedOutlets = []string{"reuters.com", "bbc.com", "apnews.com"}

// MaxSources caps how many links a single analysis reports.
const MaxSources = 5

// Source is a corroborating link shown next to a verdict.
type Source struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Searcher looks up coverage of a claim. Implementations return at most
// MaxSources results, already filtered to trusted outlets.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Source, error)
}

// PlaceholderSearcher returns no sources. It stands in when no search
// endpoint is configured.
type PlaceholderSearcher struct{}

func (PlaceholderSearcher) Search(ctx context.Context, query string) ([]Source, error) {
	return nil, nil
}

// Client queries a JSON search endpoint with a site-restricted query and
// keeps only results hosted on trusted outlets.
type Client struct {
	URL        string
	HTTPClient *http.Client
}

// NewClient returns a searcher backed by the given endpoint.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{URL: endpoint, HTTPClient: httpClient}
}

type searchResponse struct {
	Results []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"results"`
}

// Search issues GET {URL}?q={site query}&limit={MaxSources} and maps the
// results. The site query restricts matching to the trusted outlets so the
// backend does most of the filtering; the hostname check here is the
// backstop.
func (c *Client) Search(ctx context.Context, query string) ([]Source, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("search: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", SiteQuery(query))
	q.Set("limit", strconv.Itoa(MaxSources))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: HTTP %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("search: decode response: %w", err)
	}

	sources := make([]Source, 0, MaxSources)
	for _, r := range payload.Results {
		host := trustedHost(r.URL)
		if host == "" {
			continue
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = r.URL
		}
		sources = append(sources, Source{Title: title, URL: r.URL, Source: host})
		if len(sources) == MaxSources {
			break
		}
	}
	return sources, nil
}

// SiteQuery prefixes the claim with site: operators for the trusted outlets.
func SiteQuery(query string) string {
	parts := make([]string, len(TrustedOutlets))
	for i, outlet := range TrustedOutlets {
		parts[i] = "site:" + outlet
	}
	return strings.Join(parts, " OR ") + " " + query
}

// trustedHost returns the hostname when rawURL belongs to a trusted outlet,
// or "" otherwise.
func trustedHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for _, outlet := range TrustedOutlets {
		if host == outlet || strings.HasSuffix(host, "."+outlet) {
			return host
		}
	}
	return ""
}
