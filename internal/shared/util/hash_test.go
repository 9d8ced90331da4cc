package util

import "testing"

func TestHashUserKey(t *testing.T) {
	id := "google:118273645501"
	got := HashUserKey(id)
	if got != HashUserKey(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestHashTextDistinguishesArticles(t *testing.T) {
	a := HashText("The council approved the water project on Monday.")
	b := HashText("The council rejected the water project on Monday.")
	if a == b {
		t.Fatal("expected different hashes for different text")
	}
	if a != HashText("The council approved the water project on Monday.") {
		t.Fatal("expected stable hash for identical text")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(a))
	}
}
