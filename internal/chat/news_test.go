package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestHeadlinesQueryParams(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"articles":[]}`))
	}))
	defer srv.Close()

	client := NewNewsClient("test-key", srv.Client())
	client.URL = srv.URL

	if _, err := client.Headlines(context.Background(), "climate policy"); err != nil {
		t.Fatalf("headlines: %v", err)
	}
	if got.Get("q") != "climate policy" {
		t.Fatalf("q = %q", got.Get("q"))
	}
	if got.Get("language") != "en" || got.Get("pageSize") != "5" || got.Get("sortBy") != "publishedAt" {
		t.Fatalf("params = %v", got)
	}
	if got.Get("apiKey") != "test-key" {
		t.Fatalf("apiKey = %q", got.Get("apiKey"))
	}

	if _, err := client.Headlines(context.Background(), " Today "); err != nil {
		t.Fatalf("headlines: %v", err)
	}
	if got.Has("q") {
		t.Fatalf("generic query should not set a topic, q = %q", got.Get("q"))
	}
}

func TestHeadlinesFormatsArticles(t *testing.T) {
	longDesc := strings.Repeat("d", 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"articles":[
			{"title":"Quake hits coastal region","description":"` + longDesc + `","publishedAt":"2026-08-25T09:30:00Z","source":{"name":"Reuters"}},
			{"title":"","description":"","publishedAt":"short","source":{"name":""}}
		]}`))
	}))
	defer srv.Close()

	client := NewNewsClient("test-key", srv.Client())
	client.URL = srv.URL

	block, err := client.Headlines(context.Background(), "earthquake")
	if err != nil {
		t.Fatalf("headlines: %v", err)
	}

	want := "**📰 Today's Top News Headlines:**\n\n" +
		"1. **Quake hits coastal region**\n" +
		"   Source: Reuters | 2026-08-25\n" +
		"   " + strings.Repeat("d", descriptionClip) + "...\n\n" +
		"2. **N/A**\n" +
		"   Source: Unknown | short\n\n"
	if block != want {
		t.Fatalf("block = %q, want %q", block, want)
	}
}

func TestHeadlinesKeylessIsInert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("keyless client should not call the API")
	}))
	defer srv.Close()

	client := NewNewsClient("  ", srv.Client())
	client.URL = srv.URL

	block, err := client.Headlines(context.Background(), "anything")
	if err != nil || block != "" {
		t.Fatalf("keyless headlines = %q, %v", block, err)
	}
}

func TestHeadlinesEmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"articles":[]}`))
	}))
	defer srv.Close()

	client := NewNewsClient("test-key", srv.Client())
	client.URL = srv.URL

	block, err := client.Headlines(context.Background(), "quiet day")
	if err != nil || block != "" {
		t.Fatalf("empty feed headlines = %q, %v", block, err)
	}
}
