package translate_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"veriglow-backend/internal/translate"
)

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{
			name: "english prose",
			text: "The committee said that the report was based on interviews with more than a dozen officials.",
			want: translate.LangEnglish,
		},
		{
			name: "spanish prose",
			text: "El presidente anunció nuevas medidas económicas durante su discurso ante el congreso nacional.",
			want: translate.LangUnknown,
		},
		{
			name: "short text defaults to english",
			text: "Breaking news",
			want: translate.LangEnglish,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := translate.DetectLanguage(tc.text); got != tc.want {
				t.Fatalf("DetectLanguage(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestClientTranslate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["source"] != "auto" || req["target"] != "en" {
			t.Fatalf("request = %v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"translatedText": "The president announced new measures."})
	}))
	defer srv.Close()

	client := translate.NewClient(srv.URL, srv.Client())
	got, err := client.Translate(context.Background(), "El presidente anunció nuevas medidas.")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "The president announced new measures." {
		t.Fatalf("Translate = %q", got)
	}
}

type stubTranslator struct {
	out string
	err error
}

func (s *stubTranslator) Translate(ctx context.Context, text string) (string, error) {
	return s.out, s.err
}

func TestToEnglishSkipsEnglishText(t *testing.T) {
	tr := &stubTranslator{out: "should not be used"}
	text := "The quick brown fox jumps over the lazy dog near the river bank."
	out := translate.ToEnglish(context.Background(), tr, text)
	if out.Text != text || out.Translated != "" {
		t.Fatalf("Outcome = %+v", out)
	}
	if out.Language != translate.LangEnglish {
		t.Fatalf("Language = %q", out.Language)
	}
}

func TestToEnglishTranslatesForeignText(t *testing.T) {
	tr := &stubTranslator{out: "The government approved the new budget yesterday."}
	out := translate.ToEnglish(context.Background(), tr, "El gobierno aprobó ayer el nuevo presupuesto general del estado.")
	if out.Text != tr.out || out.Translated != tr.out {
		t.Fatalf("Outcome = %+v", out)
	}
	if out.Language != translate.LangUnknown {
		t.Fatalf("Language = %q", out.Language)
	}
}

func TestToEnglishKeepsOriginalOnFailure(t *testing.T) {
	tr := &stubTranslator{err: errors.New("endpoint down")}
	text := "El gobierno aprobó ayer el nuevo presupuesto general del estado."
	out := translate.ToEnglish(context.Background(), tr, text)
	if out.Text != text || out.Translated != "" {
		t.Fatalf("Outcome = %+v", out)
	}
}

func TestToEnglishWithoutTranslator(t *testing.T) {
	text := "El gobierno aprobó ayer el nuevo presupuesto general del estado."
	out := translate.ToEnglish(context.Background(), nil, text)
	if out.Text != text || out.Translated != "" {
		t.Fatalf("Outcome = %+v", out)
	}
}
