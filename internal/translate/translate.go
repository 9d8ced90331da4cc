// Package translate normalizes submissions to English before analysis.
// The classifier and the red flag heuristics are trained on English text,
// so everything else gets routed through a translation endpoint first.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"veriglow-backend/internal/shared/telemetry"
)

const (
	// LangEnglish is the only language the pipeline analyzes natively.
	LangEnglish = "en"
	// LangUnknown marks text the detector could not place.
	LangUnknown = "unknown"

	// englishThreshold is the stopword ratio above which text counts as
	// English. Detection is heuristic; a wrong guess costs one translation
	// call and the original text is kept on failure.
	englishThreshold = 0.15

	// minDetectWords is the floor below which detection gives up and
	// assumes English.
	minDetectWords = 4
)

// englishStopwords holds high-frequency English function words. Matching a
// decent share of them is a strong signal the text is already English.
var englishStopwords = wordSet(
	"the", "a", "an", "is", "are", "was", "were", "be", "been", "being",
	"to", "of", "and", "in", "that", "it", "on", "for", "with", "as",
	"this", "but", "at", "by", "from", "or", "have", "has", "had", "not",
	"they", "their", "there", "you", "your", "we", "our", "he", "she",
	"his", "her", "its", "what", "which", "who", "will", "would", "can",
	"could", "should", "about", "into", "than", "then", "them", "these",
	"some", "more", "when", "where", "how", "all", "also", "after",
)

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// DetectLanguage guesses whether text is English by the share of English
// stopwords among its words. It returns LangEnglish or LangUnknown.
func DetectLanguage(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) < minDetectWords {
		return LangEnglish
	}
	hits := 0
	for _, w := range words {
		if englishStopwords[strings.Trim(w, ".,!?;:'\"()[]")] {
			hits++
		}
	}
	if float64(hits)/float64(len(words)) >= englishThreshold {
		return LangEnglish
	}
	return LangUnknown
}

// Translator converts text to English.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Client posts to a LibreTranslate-compatible endpoint.
type Client struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient returns a translator for the given endpoint.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{URL: endpoint, HTTPClient: httpClient}
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

// Translate sends the text with source auto-detection and target English.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(translateRequest{Q: text, Source: "auto", Target: LangEnglish, APIKey: c.APIKey})
	if err != nil {
		return "", fmt.Errorf("translate: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("translate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate: HTTP %d", resp.StatusCode)
	}

	var payload translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("translate: decode response: %w", err)
	}
	if payload.Error != "" {
		return "", fmt.Errorf("translate: %s", payload.Error)
	}
	if strings.TrimSpace(payload.TranslatedText) == "" {
		return "", fmt.Errorf("translate: empty response")
	}
	return payload.TranslatedText, nil
}

// Outcome is the result of routing text through detection and translation.
type Outcome struct {
	// Text is what the pipeline should analyze.
	Text string
	// Translated holds the English rendering when translation happened.
	Translated string
	// Language is the detected source language.
	Language string
}

// ToEnglish detects the language and translates when the text does not look
// English and a translator is configured. Translation failures keep the
// original text.
func ToEnglish(ctx context.Context, tr Translator, text string) Outcome {
	out := Outcome{Text: text, Language: DetectLanguage(text)}
	if out.Language == LangEnglish || tr == nil {
		return out
	}
	translated, err := tr.Translate(ctx, text)
	if err != nil {
		telemetry.Warn("translate.failed", map[string]any{"error": err.Error()})
		return out
	}
	out.Text = translated
	out.Translated = translated
	return out
}
