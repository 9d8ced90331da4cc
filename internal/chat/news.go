package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	newsAPIURL      = "https://newsapi.org/v2/top-headlines"
	maxHeadlines    = 5
	newsFetchLimit  = 10 * time.Second
	descriptionClip = 150
)

// NewsClient fetches top headlines to ground news-intent conversations.
// Without an API key it is inert and every fetch returns an empty block.
type NewsClient struct {
	APIKey     string
	URL        string
	HTTPClient *http.Client
}

// NewNewsClient returns a headline fetcher. httpClient may be nil.
func NewNewsClient(apiKey string, httpClient *http.Client) *NewsClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: newsFetchLimit}
	}
	return &NewsClient{APIKey: strings.TrimSpace(apiKey), URL: newsAPIURL, HTTPClient: httpClient}
}

type newsResponse struct {
	Articles []newsArticle `json:"articles"`
}

type newsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

// Headlines fetches the current top stories and formats them as a markdown
// block for the prompt. The user's message doubles as the topic filter unless
// it is one of the generic "what's the news" phrasings.
func (c *NewsClient) Headlines(ctx context.Context, query string) (string, error) {
	if c.APIKey == "" {
		return "", nil
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("chat: parse news endpoint: %w", err)
	}
	params := u.Query()
	params.Set("sortBy", "publishedAt")
	params.Set("language", "en")
	params.Set("pageSize", strconv.Itoa(maxHeadlines))
	params.Set("apiKey", c.APIKey)
	if topic := strings.ToLower(strings.TrimSpace(query)); topic != "" && topic != "today" && topic != "news" && topic != "latest" {
		params.Set("q", query)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("chat: build news request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat: fetch news: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat: news HTTP %d", resp.StatusCode)
	}

	var payload newsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("chat: decode news response: %w", err)
	}
	if len(payload.Articles) == 0 {
		return "", nil
	}
	return formatHeadlines(payload.Articles), nil
}

func formatHeadlines(articles []newsArticle) string {
	var b strings.Builder
	b.WriteString("**📰 Today's Top News Headlines:**\n\n")
	for i, a := range articles {
		if i == maxHeadlines {
			break
		}
		title := a.Title
		if title == "" {
			title = "N/A"
		}
		source := a.Source.Name
		if source == "" {
			source = "Unknown"
		}
		fmt.Fprintf(&b, "%d. **%s**\n", i+1, title)
		fmt.Fprintf(&b, "   Source: %s | %s\n", source, datePart(a.PublishedAt))
		if a.Description != "" {
			fmt.Fprintf(&b, "   %s...\n", clip(a.Description, descriptionClip))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// datePart keeps the YYYY-MM-DD prefix of an RFC3339 timestamp.
func datePart(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}
