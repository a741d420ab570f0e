package crawler

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
)

// TestHTTPFetcher tests the default fetcher.
func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("<p>hello</p>", 100)

	t.Run("returns content type and body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("User-Agent") != "test-agent" {
				t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(body))
		}))
		defer server.Close()

		f := NewHTTPFetcher(server.Client(), WithUserAgent("test-agent"))
		resp, err := f.Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if resp.ContentType != "text/html; charset=utf-8" {
			t.Errorf("unexpected content type %q", resp.ContentType)
		}
		if string(resp.Body) != body || resp.Size != int64(len(body)) {
			t.Errorf("unexpected body size %d", resp.Size)
		}
	})

	t.Run("decodes gzip bodies", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte(body))
		_ = gz.Close()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write(buf.Bytes())
		}))
		defer server.Close()

		resp, err := NewHTTPFetcher(server.Client()).Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if string(resp.Body) != body {
			t.Errorf("gzip body was not decoded")
		}
	})

	t.Run("decodes brotli bodies", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		br := brotli.NewWriter(&buf)
		_, _ = br.Write([]byte(body))
		_ = br.Close()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Encoding", "br")
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write(buf.Bytes())
		}))
		defer server.Close()

		resp, err := NewHTTPFetcher(server.Client()).Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if string(resp.Body) != body {
			t.Errorf("brotli body was not decoded")
		}
	})

	t.Run("counts bytes beyond the body limit", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write(bytes.Repeat([]byte("x"), 4096))
		}))
		defer server.Close()

		resp, err := NewHTTPFetcher(server.Client(), WithMaxBodySize(100)).Fetch(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if len(resp.Body) != 100 {
			t.Errorf("expected 100 kept bytes, got %d", len(resp.Body))
		}
		if resp.Size != 4096 {
			t.Errorf("expected size 4096, got %d", resp.Size)
		}
	})

	t.Run("status errors are still responses", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		resp, err := NewHTTPFetcher(server.Client()).Fetch(context.Background(), server.URL+"/missing")
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404, got %d", resp.StatusCode)
		}
	})
}
