package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the SOCKS5 handshake of CheckConnection.
const checkProxyTimeout = 2 * time.Second

// maxRedirects stops redirect loops while allowing normal redirects.
const maxRedirects = 10

// Credentials are the cookie and headers injected into requests for one host.
type Credentials struct {
	Cookie  string
	Headers map[string]string
}

// Client creates HTTP clients that dial directly or through a SOCKS5 proxy.
type Client struct {
	// proxyAddress is the SOCKS5 proxy in "host:port" format, empty for direct.
	proxyAddress string

	// dialer is the SOCKS5 dialer, nil for direct connections.
	dialer proxy.Dialer

	// insecureTLS disables certificate verification.
	insecureTLS bool

	// credentials are keyed by lowercase host, with or without port.
	credentials map[string]Credentials
}

// Option configures a Client.
type Option func(*Client)

// WithProxy routes all connections through the SOCKS5 proxy at address.
func WithProxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithInsecureTLS disables TLS certificate verification. Onion services
// commonly use self-signed certificates.
func WithInsecureTLS(insecure bool) Option {
	return func(c *Client) {
		c.insecureTLS = insecure
	}
}

// WithCredentials injects cookie and headers into every request for host.
func WithCredentials(host string, creds Credentials) Option {
	return func(c *Client) {
		if creds.Cookie == "" && len(creds.Headers) == 0 {
			return
		}
		c.credentials[strings.ToLower(host)] = creds
	}
}

// NewClient creates a client. Without WithProxy connections are direct.
//
// The proxy address format is validated but the proxy is not contacted.
// Call CheckConnection to verify it.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{credentials: make(map[string]Credentials)}
	for _, opt := range opts {
		opt(c)
	}

	if c.proxyAddress == "" {
		return c, nil
	}
	if !isValidProxyAddress(c.proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	c.dialer = dialer
	return c, nil
}

// isValidProxyAddress checks for a non-empty host and a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address, empty for direct.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// IsDirect reports whether the client dials without a proxy.
func (c *Client) IsDirect() bool {
	return c.dialer == nil
}

// SOCKS5 protocol constants
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
)

// CheckConnection verifies that the proxy accepts a SOCKS5 handshake without
// authentication. A direct client always reports ProxyStatusOK.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	if c.IsDirect() {
		return ProxyStatusOK
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// version, one method, no authentication
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if reply[0] != socks5Version || reply[1] == socks5AuthNoAccept || reply[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// HTTPClient returns a new HTTP client. timeout bounds a whole request;
// zero means no overall limit, which downloads need.
//
// Compression is left to the caller: the crawler asks for compressed bodies
// itself and downloads must see the bytes exactly as served.
func (c *Client) HTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		DisableCompression:  true,
	}
	if c.dialer != nil {
		transport.Proxy = nil
		transport.DialContext = c.dialContext
	}
	if c.insecureTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // Opt-in for self-signed onion services
		}
	}

	var rt http.RoundTripper = transport
	if len(c.credentials) > 0 {
		rt = &headerInjectingTransport{base: transport, credentials: c.credentials}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: rt,
		Timeout:   timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// dialContext dials through the SOCKS5 proxy and honors ctx.
//
// Design decision: The x/net SOCKS5 dialer implements proxy.ContextDialer;
// the goroutine fallback covers dialers that do not.
func (c *Client) dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// headerInjectingTransport adds per-host cookies and headers to requests.
type headerInjectingTransport struct {
	base        http.RoundTripper
	credentials map[string]Credentials
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	creds, ok := t.lookup(req.URL)
	if !ok {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())
	if creds.Cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+creds.Cookie)
		} else {
			clone.Header.Set("Cookie", creds.Cookie)
		}
	}
	for key, value := range creds.Headers {
		clone.Header.Set(key, value)
	}
	return t.base.RoundTrip(clone)
}

// lookup matches "host:port" first, then the bare host name.
func (t *headerInjectingTransport) lookup(u *url.URL) (Credentials, bool) {
	if creds, ok := t.credentials[strings.ToLower(u.Host)]; ok {
		return creds, true
	}
	creds, ok := t.credentials[strings.ToLower(u.Hostname())]
	return creds, ok
}
