package crawler

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// DefaultUserAgent is sent with crawl requests unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// defaultMaxBodySize caps how much of a body is kept in memory for parsing.
const defaultMaxBodySize = 10 * 1024 * 1024

// Response is the part of an HTTP response the engine needs.
type Response struct {
	// StatusCode is the HTTP status. Non-2xx responses are still records.
	StatusCode int

	// ContentType is the Content-Type header value.
	ContentType string

	// Body holds at most the fetcher's body limit of decoded content.
	Body []byte

	// Size is the full decoded body length, which may exceed len(Body).
	Size int64
}

// Fetcher retrieves one address. Implementations must honour ctx, which
// carries the per-fetch timeout.
type Fetcher interface {
	Fetch(ctx context.Context, address string) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, address string) (*Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, address string) (*Response, error) {
	return f(ctx, address)
}

// HTTPFetcher is the default Fetcher backed by an *http.Client.
// It asks for compressed bodies and decodes gzip, deflate and brotli itself,
// because the transports built by this module disable Go's implicit gzip.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
}

// HTTPFetcherOption configures an HTTPFetcher.
type HTTPFetcherOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize limits how many decoded bytes are kept for parsing.
// Bytes beyond the limit are still counted in Response.Size.
func WithMaxBodySize(n int64) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// NewHTTPFetcher creates a fetcher using client. A nil client means http.DefaultClient.
func NewHTTPFetcher(client *http.Client, opts ...HTTPFetcherOption) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &HTTPFetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a GET request and reads the decoded body.
func (f *HTTPFetcher) Fetch(ctx context.Context, address string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	reader, closeDecoder, err := decodeBody(resp)
	if err != nil {
		return nil, err
	}
	defer closeDecoder()

	var buf bytes.Buffer
	kept, err := io.Copy(&buf, io.LimitReader(reader, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	rest, err := io.Copy(io.Discard, reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        buf.Bytes(),
		Size:        kept + rest,
	}, nil
}

// decodeBody wraps the response body according to Content-Encoding.
func decodeBody(resp *http.Response) (io.Reader, func(), error) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, noop, fmt.Errorf("gzip decode: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case "br":
		return brotli.NewReader(resp.Body), noop, nil
	case "deflate":
		fl := flate.NewReader(resp.Body)
		return fl, func() { _ = fl.Close() }, nil
	default:
		return resp.Body, noop, nil
	}
}
