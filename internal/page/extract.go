package page

import (
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// articleSelectors are tried in order; the first match with more than
// substantialLength characters wins.
var articleSelectors = []string{
	"article",
	`[role="main"]`,
	".article-content",
	".post-content",
	".entry-content",
	".content",
	"main",
	".story-body",
	".article-body",
}

// noiseSelectors are removed before reading an element's text.
var noiseSelectors = []string{
	"script", "style", "noscript", "nav", "header", "footer", "aside",
	".nav", ".navigation", ".sidebar", ".ads", ".advertisement",
}

const (
	substantialLength = 100
	paragraphMinimum  = 50
)

var whitespace = regexp.MustCompile(`\s+`)

// CleanText collapses whitespace runs into single spaces, trims and
// NFC-normalizes s.
func CleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(whitespace.ReplaceAllString(s, " ")))
}

// ExtractArticle returns the readable article text of the document: the
// first substantial article container, else the longer paragraphs, else the
// whole body.
func (d *Document) ExtractArticle() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var text string
	for _, sel := range articleSelectors {
		if el := querySelector(d.root, sel); el != nil {
			text = readableText(el)
			if len(text) > substantialLength {
				break
			}
		}
	}

	if len(text) < substantialLength {
		var paras []string
		for _, p := range querySelectorAll(d.root, "p") {
			if t := strings.TrimSpace(readableText(p)); len(t) > paragraphMinimum {
				paras = append(paras, t)
			}
		}
		text = strings.Join(paras, " ")
	}

	if len(text) < substantialLength {
		if body := querySelector(d.root, "body"); body != nil {
			text = readableText(body)
		}
	}

	return CleanText(text)
}

// readableText concatenates the text below n, skipping noise and hidden
// elements.
func readableText(n *xhtml.Node) string {
	var b strings.Builder
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		switch n.Type {
		case xhtml.TextNode:
			b.WriteString(n.Data)
			return
		case xhtml.ElementNode:
			if isInlineHidden(n) || n.DataAtom == atom.Template {
				return
			}
			for _, sel := range noiseSelectors {
				if matches(n, sel) {
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// matches supports the selector forms used above: "tag", ".class" and
// `[attr="value"]`.
func matches(n *xhtml.Node, sel string) bool {
	if n.Type != xhtml.ElementNode {
		return false
	}
	switch {
	case strings.HasPrefix(sel, "."):
		want := sel[1:]
		for _, c := range strings.Fields(attr(n, "class")) {
			if c == want {
				return true
			}
		}
		return false
	case strings.HasPrefix(sel, "[") && strings.HasSuffix(sel, "]"):
		key, val, _ := strings.Cut(sel[1:len(sel)-1], "=")
		got, ok := hasAttr(n, key)
		return ok && got == strings.Trim(val, `"'`)
	default:
		return n.Data == sel
	}
}

func querySelector(root *xhtml.Node, sel string) *xhtml.Node {
	var found *xhtml.Node
	var walk func(*xhtml.Node) bool
	walk = func(n *xhtml.Node) bool {
		if matches(n, sel) {
			found = n
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(root)
	return found
}

func querySelectorAll(root *xhtml.Node, sel string) []*xhtml.Node {
	var out []*xhtml.Node
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if matches(n, sel) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}
