// Package transport builds the HTTP clients used by the crawler and the
// download manager.
//
// A client either dials directly or through a SOCKS5 proxy. The proxy can be
// an external one (--proxy) or an embedded Tor daemon started with tornago
// (--tor). Per-site cookies and headers from the config file are injected
// by a RoundTripper, only into requests for the host they belong to.
//
// Design decision: The transport is a separate package so that neither the
// crawler nor the download manager knows about proxies. Both accept an
// *http.Client (or a small interface it satisfies) and stay testable with
// httptest servers.
package transport
