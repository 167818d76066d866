// Package htmlutil provides small traversal helpers over the
// golang.org/x/net/html node tree used by every extractor.
package htmlutil

import (
	"strings"

	"golang.org/x/net/html"
)

// Parse parses an HTML document from a string.
func Parse(raw string) (*html.Node, error) {
	return html.Parse(strings.NewReader(raw))
}

// Render serializes a node back to HTML text.
func Render(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

// Find returns the first element with the given tag name satisfying
// the optional predicate, depth first.
func Find(n *html.Node, tag string, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if found != nil {
			return
		}
		if node.Type == html.ElementNode && node.Data == tag {
			if pred == nil || pred(node) {
				found = node
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return found
}

// FindAll returns every element with the given tag name satisfying the
// optional predicate, in document order.
func FindAll(n *html.Node, tag string, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == tag {
			if pred == nil || pred(node) {
				out = append(out, node)
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return out
}

// Attr returns the value of an attribute, or "" when absent.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasClass reports whether the element's class attribute contains the
// given class token.
func HasClass(n *html.Node, class string) bool {
	for _, token := range strings.Fields(Attr(n, "class")) {
		if token == class {
			return true
		}
	}
	return false
}

// Text returns the concatenated, whitespace-collapsed text content of
// a subtree.
func Text(n *html.Node) string {
	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// TableHeaders returns the header cell texts of a table element. It
// prefers th cells under thead, falling back to the first row.
func TableHeaders(table *html.Node) []string {
	scope := table
	if thead := Find(table, "thead", nil); thead != nil {
		scope = thead
	}
	row := Find(scope, "tr", nil)
	if row == nil {
		return nil
	}
	var headers []string
	for _, cell := range FindAll(row, "th", nil) {
		headers = append(headers, Text(cell))
	}
	if len(headers) == 0 {
		for _, cell := range FindAll(row, "td", nil) {
			headers = append(headers, Text(cell))
		}
	}
	return headers
}

// TableRows returns the data rows of a table, skipping the header row.
// Each row is the ordered list of td cell nodes.
func TableRows(table *html.Node) [][]*html.Node {
	var rows [][]*html.Node
	body := table
	if tbody := Find(table, "tbody", nil); tbody != nil {
		body = tbody
	}
	for _, tr := range FindAll(body, "tr", nil) {
		cells := FindAll(tr, "td", nil)
		if len(cells) == 0 {
			continue
		}
		rows = append(rows, cells)
	}
	return rows
}
