package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewClient tests the Client constructor.
func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("no proxy creates a direct client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !client.IsDirect() || client.ProxyAddress() != "" {
			t.Error("expected a direct client")
		}
	})

	t.Run("valid proxy address creates a proxied client", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(WithProxy("127.0.0.1:9050"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.IsDirect() {
			t.Error("expected a proxied client")
		}
		if client.ProxyAddress() != "127.0.0.1:9050" {
			t.Errorf("ProxyAddress() = %q", client.ProxyAddress())
		}
	})

	t.Run("invalid proxy address returns error", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient(WithProxy("127.0.0.1"))
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})
}

// TestIsValidProxyAddress tests the proxy address validation function.
func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		address  string
		expected bool
	}{
		{"valid IPv4 with port", "127.0.0.1:9050", true},
		{"valid localhost with port", "localhost:1080", true},
		{"valid IPv6 with port", "[::1]:9050", true},
		{"empty string", "", false},
		{"no port", "127.0.0.1", false},
		{"empty host", ":9050", false},
		{"empty port", "127.0.0.1:", false},
		{"port zero", "127.0.0.1:0", false},
		{"port too large", "127.0.0.1:65536", false},
		{"multiple colons", "127.0.0.1:9050:extra", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := isValidProxyAddress(tc.address); got != tc.expected {
				t.Errorf("isValidProxyAddress(%q) = %v, expected %v", tc.address, got, tc.expected)
			}
		})
	}
}

// TestHTTPClient tests HTTP client creation.
func TestHTTPClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient(WithProxy("127.0.0.1:9050"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	httpClient := client.HTTPClient(30 * time.Second)

	if httpClient.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, expected 30s", httpClient.Timeout)
	}
	if httpClient.Jar == nil {
		t.Error("expected a cookie jar")
	}
	transport, ok := httpClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", httpClient.Transport)
	}
	if transport.DialContext == nil {
		t.Error("expected the SOCKS5 dialer to be installed")
	}
	if !transport.DisableCompression {
		t.Error("expected transparent compression to be disabled")
	}
}

// TestHeaderInjection tests per-host cookie and header injection.
func TestHeaderInjection(t *testing.T) {
	t.Parallel()

	type seen struct {
		cookie string
		custom string
	}
	newServer := func(t *testing.T, got chan<- seen) *httptest.Server {
		t.Helper()
		return httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got <- seen{cookie: r.Header.Get("Cookie"), custom: r.Header.Get("X-Custom")}
		}))
	}

	t.Run("matching host receives credentials", func(t *testing.T) {
		t.Parallel()

		got := make(chan seen, 1)
		server := newServer(t, got)
		defer server.Close()

		client, err := NewClient(WithCredentials("127.0.0.1", Credentials{
			Cookie:  "session=abc",
			Headers: map[string]string{"X-Custom": "value"},
		}))
		if err != nil {
			t.Fatal(err)
		}
		resp, err := client.HTTPClient(5 * time.Second).Get(server.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		s := <-got
		if s.cookie != "session=abc" || s.custom != "value" {
			t.Errorf("unexpected headers %+v", s)
		}
	})

	t.Run("other hosts receive nothing", func(t *testing.T) {
		t.Parallel()

		got := make(chan seen, 1)
		server := newServer(t, got)
		defer server.Close()

		client, err := NewClient(WithCredentials("other.test", Credentials{Cookie: "session=abc"}))
		if err != nil {
			t.Fatal(err)
		}
		resp, err := client.HTTPClient(5 * time.Second).Get(server.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if s := <-got; s.cookie != "" {
			t.Errorf("credentials leaked to another host: %+v", s)
		}
	})

	t.Run("existing cookie is extended", func(t *testing.T) {
		t.Parallel()

		got := make(chan seen, 1)
		server := newServer(t, got)
		defer server.Close()

		client, err := NewClient(WithCredentials("127.0.0.1", Credentials{Cookie: "b=2"}))
		if err != nil {
			t.Fatal(err)
		}
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, server.URL, nil)
		req.Header.Set("Cookie", "a=1")
		resp, err := client.HTTPClient(5 * time.Second).Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if s := <-got; s.cookie != "a=1; b=2" {
			t.Errorf("unexpected cookie %q", s.cookie)
		}
		if req.Header.Get("Cookie") != "a=1" {
			t.Error("original request was modified")
		}
	})
}

// mockProxy accepts one connection, reads the greeting and writes reply.
func mockProxy(t *testing.T, reply []byte) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 3)
		_, _ = conn.Read(buf)
		_, _ = conn.Write(reply)
	}()
	return listener.Addr().String()
}

// TestCheckConnection tests the SOCKS5 handshake check.
func TestCheckConnection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply []byte
		want  ProxyStatus
	}{
		{"valid SOCKS5 proxy", []byte{0x05, 0x00}, ProxyStatusOK},
		{"HTTP server", []byte("HTTP/1.1 200 OK\r\n\r\n"), ProxyStatusWrongType},
		{"SOCKS5 requiring auth", []byte{0x05, 0xFF}, ProxyStatusWrongType},
		{"SOCKS4 reply", []byte{0x04, 0x00}, ProxyStatusWrongType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(WithProxy(mockProxy(t, tt.reply)))
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}
			if got := client.CheckConnection(context.Background()); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	t.Run("closed port cannot connect", func(t *testing.T) {
		t.Parallel()

		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatal(err)
		}
		addr := listener.Addr().String()
		listener.Close()

		client, err := NewClient(WithProxy(addr))
		if err != nil {
			t.Fatal(err)
		}
		if got := client.CheckConnection(context.Background()); got != ProxyStatusCannotConnect {
			t.Errorf("expected ProxyStatusCannotConnect, got %v", got)
		}
	})

	t.Run("direct client is always OK", func(t *testing.T) {
		t.Parallel()

		client, _ := NewClient()
		if got := client.CheckConnection(context.Background()); got != ProxyStatusOK {
			t.Errorf("expected ProxyStatusOK, got %v", got)
		}
	})
}

// TestProxyStatus tests ProxyStatus String and Error methods.
func TestProxyStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status   ProxyStatus
		text     string
		expected error
	}{
		{ProxyStatusOK, "OK", nil},
		{ProxyStatusWrongType, "wrong type (not SOCKS5)", ErrProxyNotSOCKS5},
		{ProxyStatusCannotConnect, "cannot connect", ErrProxyCannotConnect},
		{ProxyStatusTimeout, "timeout", ErrProxyTimeout},
	}

	for _, tc := range testCases {
		if tc.status.String() != tc.text {
			t.Errorf("ProxyStatus(%d).String() = %q, expected %q", tc.status, tc.status.String(), tc.text)
		}
		if err := tc.status.Error(); !errors.Is(err, tc.expected) {
			t.Errorf("ProxyStatus(%d).Error() = %v, expected %v", tc.status, err, tc.expected)
		}
	}

	if ProxyStatus(99).String() != "unknown" || ProxyStatus(99).Error() == nil {
		t.Error("unexpected handling of unknown status")
	}
}
