// Package chat implements the VeriGlow assistant: a conversational endpoint
// backed by an Ollama-compatible model server, with optional live-news
// grounding for questions about current events.
package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"veriglow-backend/internal/shared/telemetry"
)

// MaxMessageChars caps a single chat message.
const MaxMessageChars = 10000

// Intents drive which extra context is folded into the prompt.
const (
	IntentNews      = "news"
	IntentAppHelp   = "app_help"
	IntentFactCheck = "factcheck"
	IntentGeneral   = "general"
)

var (
	newsKeywords = []string{
		"news", "latest", "today", "current", "trending", "happening",
		"breaking", "headlines", "events", "world", "politics", "sports",
		"technology", "business", "entertainment",
	}
	appKeywords = []string{
		"how", "use", "work", "tutorial", "guide", "help", "feature",
		"explain", "verdict", "score", "accuracy", "confidence", "analyze",
		"history", "login", "save", "privacy", "security", "algorithm",
	}
	factCheckKeywords = []string{
		"verify", "check", "true", "false", "claim", "fact check",
		"misinformation", "disinformation", "fake", "credible",
		"misleading", "bias", "source",
	}
)

// DetectIntent classifies a message by keyword containment. News wins over
// app help wins over fact-checking; anything else is general conversation.
func DetectIntent(message string) string {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, newsKeywords):
		return IntentNews
	case containsAny(lower, appKeywords):
		return IntentAppHelp
	case containsAny(lower, factCheckKeywords):
		return IntentFactCheck
	}
	return IntentGeneral
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Service turns user messages into assistant replies. It never surfaces
// errors to the caller; every failure degrades to a reply string the UI can
// show as-is.
type Service struct {
	Gen  Generator
	News *NewsClient
}

// NewService wires the assistant. news may be nil when no headline source is
// configured.
func NewService(gen Generator, news *NewsClient) *Service {
	return &Service{Gen: gen, News: news}
}

// Reply validates the message, assembles the prompt for its intent, and asks
// the model server for a completion.
func (s *Service) Reply(ctx context.Context, message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		return "Please enter a message to continue our conversation."
	}
	if utf8.RuneCountInString(message) > MaxMessageChars {
		return "Your message is too long. Please keep it under 10,000 characters."
	}

	intent := DetectIntent(message)
	reply, err := s.Gen.Generate(ctx, s.buildPrompt(ctx, message, intent))
	if err != nil {
		telemetry.Error("chat.generate_failed", map[string]any{
			"intent": intent,
			"error":  err.Error(),
		})
		return fmt.Sprintf("Sorry, something went wrong: %s. Please try again.", clip(err.Error(), 100))
	}
	if strings.TrimSpace(reply) == "" {
		return "I couldn't generate a response. Please try again."
	}
	return reply
}

func (s *Service) buildPrompt(ctx context.Context, message, intent string) string {
	var extra string
	switch intent {
	case IntentNews:
		if s.News != nil {
			headlines, err := s.News.Headlines(ctx, message)
			if err != nil {
				telemetry.Warn("chat.news_fetch_failed", map[string]any{"error": err.Error()})
			} else if headlines != "" {
				extra = "\n\nHere is current news context to reference:\n" + headlines
			}
		}
	case IntentAppHelp:
		extra = "\n\nUser is asking about VeriGlow features. Provide detailed, step-by-step explanations."
	case IntentFactCheck:
		extra = "\n\nUser is asking about fact-checking. Provide tips on how VeriGlow helps verify information."
	}
	return systemPrompt + "\n\nUser Message: " + message + extra + "\n\nRespond helpfully and accurately:"
}

// clip truncates s to max runes without splitting a character.
func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
