package crawler

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLExtractor lists the href values of anchor elements.
//
// Design decision: We use golang.org/x/net/html rather than regular
// expressions because it follows the HTML5 parsing algorithm, so malformed
// markup is repaired the way browsers do and every parseable anchor is
// still found. Parsing fails only when reading the body fails.
type HTMLExtractor struct{}

// ExtractHrefs returns the raw href attribute of every <a> element in
// document order. Values are not trimmed, resolved or filtered; anchors
// without an href are skipped.
func (HTMLExtractor) ExtractHrefs(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	hrefs := make([]string, 0)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := getAttr(n, "href"); ok {
				hrefs = append(hrefs, href)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return hrefs, nil
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Namespace == "" && attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// IsAbsoluteLink reports whether href begins with "http://" or "https://".
// Relative paths, fragments, mailto: and every other form are not followed,
// and nothing is resolved against the page URL.
func IsAbsoluteLink(href string) bool {
	return strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://")
}

// Candidates filters hrefs to absolute links and drops repeats within the
// list, keeping first-seen order. The same URL on another page is a
// separate candidate there.
func Candidates(hrefs []string) []string {
	seen := make(map[string]struct{}, len(hrefs))
	out := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		if !IsAbsoluteLink(href) {
			continue
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}
		out = append(out, href)
	}
	return out
}
