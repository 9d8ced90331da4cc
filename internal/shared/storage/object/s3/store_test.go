package s3

import "testing"

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "3f2a/article.pdf", want: "3f2a/article.pdf"},
		{name: "simple prefix", prefix: "veriglow", key: "3f2a/article.pdf", want: "veriglow/3f2a/article.pdf"},
		{name: "prefix trailing slash", prefix: "veriglow/", key: "3f2a/article.pdf", want: "veriglow/3f2a/article.pdf"},
		{name: "prefix and key slashes", prefix: "/veriglow/", key: "/3f2a/article.pdf", want: "veriglow/3f2a/article.pdf"},
		{name: "export key", prefix: "prod", key: "exports/3f2a/20260301T120000Z.json", want: "prod/exports/3f2a/20260301T120000Z.json"},
		{name: "purge prefix keeps trailing slash", prefix: "prod", key: "3f2a/", want: "prod/3f2a/"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}
