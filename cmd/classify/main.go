package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"veriglow-backend/internal/analyses"
	"veriglow-backend/internal/classifier"
	"veriglow-backend/internal/classifier/modelserver"
	"veriglow-backend/internal/extract"
	"veriglow-backend/internal/scraper"
	"veriglow-backend/internal/shared/config"
)

// verdictReport is the offline rendition of an analysis: the classifier
// outputs without the account, quota, and history plumbing around them.
type verdictReport struct {
	Verdict      string   `json:"verdict"`
	Confidence   float64  `json:"confidence"`
	ScoreReal    float64  `json:"score_real"`
	ScoreFake    float64  `json:"score_fake"`
	Explanation  []string `json:"explanation"`
	RedFlags     []string `json:"red_flags"`
	ModelVersion string   `json:"model_version"`
	TextLength   int      `json:"text_length"`
}

func main() {
	cfg := config.Load()

	filePath := flag.String("file", "", "Path to an article file (pdf, docx or txt)")
	text := flag.String("text", "", "Article text passed inline")
	pageURL := flag.String("url", "", "Article URL to scrape")
	backend := flag.String("backend", "server", "Classifier backend (server or heuristic)")
	model := flag.String("model", cfg.ModelName, "Model name for the server backend")
	outPath := flag.String("out", "", "Path to write raw JSON output (optional)")
	flag.Parse()

	article, err := resolveText(*filePath, *text, *pageURL)
	if err != nil {
		exitErr(err.Error())
	}

	clf, err := buildClassifier(cfg, *backend, *model)
	if err != nil {
		exitErr(err.Error())
	}

	pred, err := clf.Classify(context.Background(), article)
	if err != nil {
		exitErr(fmt.Sprintf("classify: %v", err))
	}
	pred = classifier.Normalize(pred)

	flags := classifier.RedFlags(article)
	confidence := pred.Confidence() * 100
	verdict := analyses.VerdictQuestionable
	if pred.Real() {
		verdict = analyses.VerdictAuthentic
	}

	report := verdictReport{
		Verdict:      verdict,
		Confidence:   confidence,
		ScoreReal:    pred.ScoreReal,
		ScoreFake:    pred.ScoreFake,
		Explanation:  classifier.Explain(article, pred.Real(), confidence, flags, false),
		RedFlags:     flags,
		ModelVersion: pred.ModelVersion,
		TextLength:   len(article),
	}

	raw, err := json.Marshal(report)
	if err != nil {
		exitErr(fmt.Sprintf("encode report: %v", err))
	}

	pretty, err := prettyJSON(raw)
	if err != nil {
		exitErr(fmt.Sprintf("format json: %v", err))
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, pretty, 0o644); err != nil {
			exitErr(fmt.Sprintf("write output: %v", err))
		}
	}

	if _, err := os.Stdout.Write(pretty); err != nil {
		exitErr(fmt.Sprintf("write stdout: %v", err))
	}
	if len(pretty) == 0 || pretty[len(pretty)-1] != '\n' {
		_, _ = os.Stdout.Write([]byte("\n"))
	}
}

func resolveText(filePath, text, pageURL string) (string, error) {
	provided := 0
	for _, v := range []string{filePath, text, pageURL} {
		if strings.TrimSpace(v) != "" {
			provided++
		}
	}
	if provided != 1 {
		return "", fmt.Errorf("exactly one of -file, -text or -url is required")
	}

	switch {
	case strings.TrimSpace(text) != "":
		return text, nil
	case strings.TrimSpace(pageURL) != "":
		article, err := scraper.New().Extract(context.Background(), pageURL)
		if err != nil {
			return "", fmt.Errorf("scrape article: %v", err)
		}
		return article, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("read article: %v", err)
	}
	if strings.EqualFold(filepath.Ext(filePath), ".txt") {
		return string(data), nil
	}

	mimeType, err := mimeFromExt(filePath)
	if err != nil {
		return "", err
	}
	article, err := extract.ExtractTextFromBytes(context.Background(), data, mimeType, filepath.Base(filePath))
	if err != nil {
		return "", fmt.Errorf("extract article text: %v", err)
	}
	return article, nil
}

func buildClassifier(cfg config.Config, backend, model string) (classifier.Classifier, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "server":
		return modelserver.NewClient(cfg.ModelServerURL, model, "", cfg.ModelTimeout), nil
	case "heuristic":
		return classifier.Heuristic{}, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

func mimeFromExt(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf", nil
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document", nil
	default:
		return "", fmt.Errorf("unsupported article file type: %s", filepath.Ext(path))
	}
}

func prettyJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
