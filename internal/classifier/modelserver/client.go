package modelserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"veriglow-backend/internal/classifier"
)

const (
	defaultTimeout = 30 * time.Second
	healthTimeout  = 2 * time.Second
)

// ErrTimeout marks calls that exceeded the model server deadline.
var ErrTimeout = errors.New("model server timeout")

// Client classifies text through an Ollama-compatible generate endpoint.
type Client struct {
	baseURL    string
	model      string
	version    string
	httpClient *http.Client
}

var _ classifier.Classifier = (*Client)(nil)

// NewClient builds a client for the server at baseURL. version names the
// backend in failover status and tracker records; it defaults to the model
// name.
func NewClient(baseURL, model, version string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if strings.TrimSpace(version) == "" {
		version = model
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		version:    version,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Version identifies this backend.
func (c *Client) Version() string { return c.version }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

type verdictPayload struct {
	Label     string  `json:"label"`
	ScoreReal float64 `json:"score_real"`
	ScoreFake float64 `json:"score_fake"`
}

func (c *Client) Classify(ctx context.Context, text string) (classifier.Prediction, error) {
	raw, err := c.generate(ctx, classifyPrompt(text))
	if err != nil {
		return classifier.Prediction{}, err
	}

	verdict, perr := parseVerdict(raw)
	if perr != nil {
		// One repair pass for malformed output.
		raw, err = c.generate(ctx, fixPrompt(raw))
		if err != nil {
			return classifier.Prediction{}, err
		}
		if verdict, perr = parseVerdict(raw); perr != nil {
			return classifier.Prediction{}, perr
		}
	}

	return classifier.Normalize(classifier.Prediction{
		Label:        verdict.Label,
		ScoreReal:    verdict.ScoreReal,
		ScoreFake:    verdict.ScoreFake,
		ModelVersion: c.version,
	}), nil
}

// Healthy reports whether the server answers its tags endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("generate: %w", ErrTimeout)
		}
		return "", fmt.Errorf("generate: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("generate: read: %w", err)
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("generate: decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return "", fmt.Errorf("generate: %s", out.Error)
		}
		return "", fmt.Errorf("generate: HTTP %d", resp.StatusCode)
	}
	return out.Response, nil
}

func parseVerdict(raw string) (verdictPayload, error) {
	var v verdictPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return verdictPayload{}, fmt.Errorf("model output is not valid JSON: %w", err)
	}
	v.Label = strings.ToLower(strings.TrimSpace(v.Label))
	if v.Label != classifier.LabelReal && v.Label != classifier.LabelFake {
		return verdictPayload{}, fmt.Errorf("model output has unknown label %q", v.Label)
	}
	return v, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func classifyPrompt(text string) string {
	return `You are a fake news detector. Classify the news text below as real or fake reporting.

Respond with only a JSON object of this exact shape:
{"label":"real","score_real":0.93,"score_fake":0.07}
"label" must be "real" or "fake"; the scores are probabilities that sum to 1.

Text:
` + text
}

func fixPrompt(raw string) string {
	return `The previous reply was not the required JSON object. Reply again with only a JSON object of this exact shape:
{"label":"real","score_real":0.93,"score_fake":0.07}

Previous reply:
` + raw
}
