// Package htmltext extracts the plain text of an HTML document for tagging.
package htmltext

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blocks end a line of text
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Title: true, atom.Blockquote: true, atom.Section: true, atom.Article: true,
}

// skipped elements contribute no text
var skipped = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
}

// Extract returns the text nodes of the document read from r. Block
// elements are separated by newlines.
func Extract(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blocks[n.DataAtom] {
			if s := buf.String(); s != "" && !strings.HasSuffix(s, "\n") {
				buf.WriteByte('\n')
			}
		}
	}
	walk(doc)

	return strings.TrimSpace(buf.String()), nil
}

// String is Extract for in-memory markup. Input that cannot be parsed is
// returned unchanged.
func String(s string) string {
	text, err := Extract(strings.NewReader(s))
	if err != nil {
		return s
	}
	return text
}
