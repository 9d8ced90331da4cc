// Package factcheck looks claims up in the Google Fact Check Tools API.
// A match against a known debunked claim outranks the classifier verdict.
package factcheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"
)

const (
	// DefaultEndpoint is the claims:search endpoint of the Fact Check Tools API.
	DefaultEndpoint = "https://factchecktools.googleapis.com/v1alpha1/claims:search"

	// maxQueryRunes keeps the search query inside the API's useful window.
	maxQueryRunes = 200
)

// falseRatings are the textual ratings that mark a claim as debunked.
// Publishers phrase ratings freely, so this is a substring match.
var falseRatings = []string{"False", "Pants on Fire", "Incorrect"}

// Result is the first claim review returned for a query.
type Result struct {
	Publisher string `json:"publisher"`
	Rating    string `json:"rating"`
	URL       string `json:"url"`
	Claim     string `json:"claim"`
}

// Summary renders the line shown to users alongside the verdict.
func (r *Result) Summary() string {
	return fmt.Sprintf("Verified by %s as: %s", r.Publisher, r.Rating)
}

// KnownFalse reports whether the rating debunks the claim outright.
func (r *Result) KnownFalse() bool {
	if r == nil {
		return false
	}
	for _, word := range falseRatings {
		if strings.Contains(r.Rating, word) {
			return true
		}
	}
	return false
}

// Checker answers whether a claim has been reviewed by fact checkers.
// A nil Result with a nil error means no review was found.
type Checker interface {
	Check(ctx context.Context, text string) (*Result, error)
}

// Client queries the Google Fact Check Tools API. A client with an empty
// API key never matches anything, so the zero value is a safe no-op.
type Client struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient returns a client for the public claims:search endpoint.
func NewClient(apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{APIKey: apiKey, Endpoint: DefaultEndpoint, HTTPClient: httpClient}
}

type searchResponse struct {
	Claims []struct {
		Text        string `json:"text"`
		ClaimReview []struct {
			Publisher struct {
				Name string `json:"name"`
			} `json:"publisher"`
			URL           string `json:"url"`
			TextualRating string `json:"textualRating"`
		} `json:"claimReview"`
	} `json:"claims"`
}

// Check searches the claim database for reviews of the given text. The raw
// text is trimmed to a short query with punctuation removed, since the API
// matches phrases rather than documents.
func (c *Client) Check(ctx context.Context, text string) (*Result, error) {
	if c == nil || strings.TrimSpace(c.APIKey) == "" {
		return nil, nil
	}
	query := CleanQuery(text)
	if query == "" {
		return nil, nil
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("fact check: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("key", c.APIKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fact check: build request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fact check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fact check: HTTP %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("fact check: decode response: %w", err)
	}
	if len(payload.Claims) == 0 {
		return nil, nil
	}
	claim := payload.Claims[0]
	if len(claim.ClaimReview) == 0 {
		return nil, nil
	}
	review := claim.ClaimReview[0]
	result := &Result{
		Publisher: review.Publisher.Name,
		Rating:    review.TextualRating,
		URL:       review.URL,
		Claim:     claim.Text,
	}
	if result.Publisher == "" {
		result.Publisher = "Fact Checker"
	}
	if result.Rating == "" {
		result.Rating = "Unknown"
	}
	return result, nil
}

// CleanQuery truncates the text and strips punctuation, leaving only
// letters, digits, underscores and spaces.
func CleanQuery(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > maxQueryRunes {
		runes = runes[:maxQueryRunes]
	}
	var sb strings.Builder
	for _, r := range runes {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}
