package crawler

import (
	"errors"
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

// TestSameOrigin tests the scope filter.
func TestSameOrigin(t *testing.T) {
	t.Parallel()

	seed := mustParse(t, "http://example.test/")

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{name: "same host different path", candidate: "http://example.test/a.html", want: true},
		{name: "host is case-insensitive", candidate: "http://EXAMPLE.test/x", want: true},
		{name: "different host", candidate: "http://other.test/b.html", want: false},
		{name: "subdomain is another origin", candidate: "http://www.example.test/", want: false},
		{name: "different scheme", candidate: "https://example.test/", want: false},
		{name: "different port", candidate: "http://example.test:8080/", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SameOrigin(seed, mustParse(t, tt.candidate)); got != tt.want {
				t.Errorf("SameOrigin(%s) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}

	t.Run("nil is never in scope", func(t *testing.T) {
		t.Parallel()
		if SameOrigin(seed, nil) || SameOrigin(nil, seed) {
			t.Error("expected false for nil URL")
		}
	})
}

// TestNormalizeAddress tests seed parsing and normalization.
func TestNormalizeAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "adds root path", raw: "http://example.test", want: "http://example.test/"},
		{name: "lowercases host and scheme", raw: "HTTP://Example.TEST/Path", want: "http://example.test/Path"},
		{name: "drops fragment", raw: "http://example.test/a#top", want: "http://example.test/a"},
		{name: "keeps query", raw: "http://example.test/a?b=1", want: "http://example.test/a?b=1"},
		{name: "assumes http without scheme", raw: "example.test/docs", want: "http://example.test/docs"},
		{name: "trims whitespace", raw: "  https://example.test/  ", want: "https://example.test/"},
		{name: "rejects ftp", raw: "ftp://example.test/", wantErr: true},
		{name: "rejects empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeAddress(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSeed) {
					t.Errorf("expected ErrInvalidSeed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
