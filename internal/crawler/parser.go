package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// linkElements are the elements whose references are followed.
// The original order of preference is kept: href first, then src.
var linkElements = map[string]bool{
	"a":      true,
	"link":   true,
	"script": true,
	"img":    true,
}

// skippedSchemes are reference prefixes that never point at a fetchable resource.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:"}

// Parser extracts references from HTML documents.
//
// Design decision: We use golang.org/x/net/html rather than regular
// expressions because it tolerates the malformed markup found on real
// sites and gives us the element tree for free.
type Parser struct {
	// baseURL is the address of the document, used to resolve relative references.
	baseURL *url.URL
}

// ParseResult is what one pass over a document produced.
type ParseResult struct {
	// Title is the text of the <title> element.
	Title string

	// Links are the resolved references in document order, duplicates removed.
	Links []string
}

// NewParser creates a parser that resolves references against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse walks the document and collects references from a, link, script
// and img elements.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{Links: make([]string, 0)}
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode && result.Title == "" {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case linkElements[n.Data]:
				ref := getAttr(n, "href")
				if ref == "" {
					ref = getAttr(n, "src")
				}
				if resolved := p.resolveURL(ref); resolved != "" && !seen[resolved] {
					seen[resolved] = true
					result.Links = append(result.Links, resolved)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// resolveURL resolves href against the base URL.
// It returns "" for references that cannot be fetched.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range skippedSchemes {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(u).String()
}

// ExtractLinks parses an HTML body and returns the resolved references it
// contains. It is the link extraction primitive used by the engine.
func ExtractLinks(body io.Reader, base *url.URL) ([]string, error) {
	p := &Parser{baseURL: base}
	result, err := p.Parse(body)
	if err != nil {
		return nil, err
	}
	return result.Links, nil
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
