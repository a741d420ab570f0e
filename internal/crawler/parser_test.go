package crawler

import (
	"strings"
	"testing"
)

// TestParser tests HTML reference extraction.
func TestParser(t *testing.T) {
	t.Parallel()

	t.Run("extracts title", func(t *testing.T) {
		t.Parallel()

		parser, err := NewParser("http://example.test/page")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(`<html><head><title> Home </title></head></html>`))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if result.Title != "Home" {
			t.Errorf("expected title 'Home', got %q", result.Title)
		}
	})

	t.Run("extracts anchor link script and img references", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
			<link rel="stylesheet" href="/css/site.css">
			<script src="js/app.js"></script>
		</head><body>
			<a href="/about">About</a>
			<img src="http://example.test/logo.png">
			<a href="http://other.test/b.html">Other</a>
		</body></html>`

		parser, err := NewParser("http://example.test/docs/index.html")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		want := []string{
			"http://example.test/css/site.css",
			"http://example.test/docs/js/app.js",
			"http://example.test/about",
			"http://example.test/logo.png",
			"http://other.test/b.html",
		}
		if len(result.Links) != len(want) {
			t.Fatalf("expected %d links, got %d: %v", len(want), len(result.Links), result.Links)
		}
		for i := range want {
			if result.Links[i] != want[i] {
				t.Errorf("link %d: expected %q, got %q", i, want[i], result.Links[i])
			}
		}
	})

	t.Run("skips non fetchable references", func(t *testing.T) {
		t.Parallel()

		html := `<a href="javascript:void(0)">x</a>
			<a href="mailto:a@b.test">x</a>
			<a href="tel:123">x</a>
			<img src="data:image/png;base64,AAAA">
			<a href="#">x</a>
			<a>no href</a>`

		parser, err := NewParser("http://example.test/")
		if err != nil {
			t.Fatalf("failed to create parser: %v", err)
		}
		result, err := parser.Parse(strings.NewReader(html))
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if len(result.Links) != 0 {
			t.Errorf("expected no links, got %v", result.Links)
		}
	})

	t.Run("ignores unrelated elements", func(t *testing.T) {
		t.Parallel()

		html := `<iframe src="/frame"></iframe><form action="/login"></form><a href="/ok">ok</a>`
		links, err := ExtractLinks(strings.NewReader(html), mustParse(t, "http://example.test/"))
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		if len(links) != 1 || links[0] != "http://example.test/ok" {
			t.Errorf("expected only the anchor, got %v", links)
		}
	})

	t.Run("removes duplicate references", func(t *testing.T) {
		t.Parallel()

		html := `<a href="/a">1</a><a href="/a">2</a><a href="http://example.test/a">3</a>`
		links, err := ExtractLinks(strings.NewReader(html), mustParse(t, "http://example.test/"))
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		if len(links) != 1 {
			t.Errorf("expected 1 link, got %v", links)
		}
	})

	t.Run("href takes precedence over src", func(t *testing.T) {
		t.Parallel()

		links, err := ExtractLinks(strings.NewReader(`<link href="/h.css" src="/s.css">`), mustParse(t, "http://example.test/"))
		if err != nil {
			t.Fatalf("failed to extract: %v", err)
		}
		if len(links) != 1 || links[0] != "http://example.test/h.css" {
			t.Errorf("expected href reference, got %v", links)
		}
	})
}

// TestMatchPattern tests glob path filters.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{pattern: "/admin/*", path: "/admin/users", want: true},
		{pattern: "/admin/*", path: "/admin", want: true},
		{pattern: "/admin/*", path: "/administrator", want: false},
		{pattern: "*.pdf", path: "/docs/file.pdf", want: true},
		{pattern: "*.pdf", path: "/docs/file.html", want: false},
		{pattern: "/api/v?", path: "/api/v1", want: true},
		{pattern: "logout*", path: "/account/logout-now", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			t.Parallel()
			if got := matchPattern(tt.pattern, tt.path); got != tt.want {
				t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
			}
		})
	}

	t.Run("ignore wins over follow", func(t *testing.T) {
		t.Parallel()

		f := pathFilter{ignore: []string{"/docs/private/*"}, follow: []string{"/docs/*"}}
		if f.allows(mustParse(t, "http://a.test/docs/private/x")) {
			t.Error("expected ignored path to be rejected")
		}
		if !f.allows(mustParse(t, "http://a.test/docs/public")) {
			t.Error("expected followed path to be allowed")
		}
		if f.allows(mustParse(t, "http://a.test/blog")) {
			t.Error("expected path outside follow patterns to be rejected")
		}
	})
}
