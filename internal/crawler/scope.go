package crawler

import (
	"net/url"
	"strings"
)

// SameOrigin reports whether candidate belongs to the same origin as seed.
// The origin is the scheme plus the host, port included. Both are compared
// case-insensitively.
func SameOrigin(seed, candidate *url.URL) bool {
	if seed == nil || candidate == nil {
		return false
	}
	return strings.EqualFold(seed.Scheme, candidate.Scheme) &&
		strings.EqualFold(seed.Host, candidate.Host)
}

// normalizeAddress returns the canonical string form used for equality.
//
// The fragment never changes the fetched content, so it is dropped. Scheme
// and host are lowercased and an empty path becomes "/" so that
// "http://a.test" and "http://a.test/" are the same address.
func normalizeAddress(u *url.URL) string {
	n := *u
	n.Fragment = ""
	n.RawFragment = ""
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	if n.Path == "" && n.Opaque == "" {
		n.Path = "/"
	}
	return n.String()
}

// parseSeed validates and normalizes the seed address.
// A seed typed without a scheme is assumed to be plain http.
func parseSeed(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, ErrInvalidSeed
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil, ErrInvalidSeed
	}
	normalized, err := url.Parse(normalizeAddress(u))
	if err != nil {
		return nil, ErrInvalidSeed
	}
	return normalized, nil
}

// NormalizeAddress parses raw and returns its canonical form.
// It is exported for callers that want to look addresses up in a Session.
func NormalizeAddress(raw string) (string, error) {
	u, err := parseSeed(raw)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}
