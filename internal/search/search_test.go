package search_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"veriglow-backend/internal/search"
)

func searchPayload(urls ...string) string {
	results := make([]map[string]string, len(urls))
	for i, u := range urls {
		results[i] = map[string]string{"title": "", "url": u}
	}
	raw, _ := json.Marshal(map[string]any{"results": results})
	return string(raw)
}

func TestSearchFiltersUntrustedHosts(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(searchPayload(
			"https://www.reuters.com/world/story-1",
			"https://totally-legit-news.example/story",
			"https://www.bbc.com/news/story-2",
			"https://apnews.com/article/story-3",
		)))
	}))
	defer srv.Close()

	client := search.NewClient(srv.URL, srv.Client())
	sources, err := client.Search(context.Background(), "election results")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !strings.HasPrefix(gotQuery, "site:reuters.com OR site:bbc.com OR site:apnews.com ") {
		t.Fatalf("query = %q", gotQuery)
	}
	if len(sources) != 3 {
		t.Fatalf("got %d sources, want 3", len(sources))
	}
	wantHosts := []string{"www.reuters.com", "www.bbc.com", "apnews.com"}
	for i, s := range sources {
		if s.Source != wantHosts[i] {
			t.Errorf("source[%d].Source = %q, want %q", i, s.Source, wantHosts[i])
		}
		if s.Title != s.URL {
			t.Errorf("source[%d] missing title fallback: %+v", i, s)
		}
	}
}

func TestSearchCapsResults(t *testing.T) {
	urls := make([]string, 8)
	for i := range urls {
		urls[i] = "https://www.bbc.com/news/story"
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(searchPayload(urls...)))
	}))
	defer srv.Close()

	client := search.NewClient(srv.URL, srv.Client())
	sources, err := client.Search(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(sources) != search.MaxSources {
		t.Fatalf("got %d sources, want %d", len(sources), search.MaxSources)
	}
}

func TestSearchSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := search.NewClient(srv.URL, srv.Client())
	if _, err := client.Search(context.Background(), "anything"); err == nil {
		t.Fatal("expected an error for HTTP 502")
	}
}

func TestPlaceholderSearcher(t *testing.T) {
	sources, err := search.PlaceholderSearcher{}.Search(context.Background(), "anything")
	if err != nil || sources != nil {
		t.Fatalf("Search = %v, %v", sources, err)
	}
}
