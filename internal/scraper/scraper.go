package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	// DefaultTimeout bounds the whole fetch including body download.
	DefaultTimeout = 10 * time.Second
	// MaxFetchBytes caps how much of a page is downloaded.
	MaxFetchBytes = 2_000_000
	// MaxTextLength is the cap on extracted text, counted in runes.
	MaxTextLength = 5000
	// MinTextLength is the minimum amount of text worth analyzing.
	MinTextLength = 50

	userAgent = "VeriGlowBot/1.0"
)

var (
	ErrScheme      = errors.New("only http and https URLs are allowed")
	ErrTooLarge    = errors.New("page exceeds download limit")
	ErrThinContent = errors.New("not enough text extracted")
)

// FetchError wraps transport and status failures so callers can tell remote
// problems apart from bad input.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }

// Scraper extracts article text from web pages. The zero value is not usable;
// call New.
type Scraper struct {
	Client   *http.Client
	MaxBytes int64
	MaxText  int
	MinText  int
}

func New() *Scraper {
	return &Scraper{
		Client:   &http.Client{Timeout: DefaultTimeout},
		MaxBytes: MaxFetchBytes,
		MaxText:  MaxTextLength,
		MinText:  MinTextLength,
	}
}

// Extract fetches the URL and returns the text of its paragraph elements
// joined with spaces, truncated to MaxText runes.
func (s *Scraper) Extract(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "", ErrScheme
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	maxBytes := s.MaxBytes
	if maxBytes <= 0 {
		maxBytes = MaxFetchBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	// Read one byte past the cap to detect oversized pages.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	if int64(len(body)) > maxBytes {
		return "", ErrTooLarge
	}

	text := truncateRunes(paragraphText(body), s.maxText())
	if utf8.RuneCountInString(text) < s.minText() {
		return "", ErrThinContent
	}
	return text, nil
}

func (s *Scraper) maxText() int {
	if s.MaxText <= 0 {
		return MaxTextLength
	}
	return s.MaxText
}

func (s *Scraper) minText() int {
	if s.MinText <= 0 {
		return MinTextLength
	}
	return s.MinText
}

// paragraphText joins the visible text of every <p> element. Script and style
// children never appear inside <p> after parsing, so plain text collection is
// enough.
func paragraphText(raw []byte) string {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "p" {
			if text := nodeText(n); text != "" {
				parts = append(parts, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(parts, " ")
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
