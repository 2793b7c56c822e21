package page

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Kind is the source format of a document.
type Kind int

const (
	KindHTML Kind = iota
	KindMarkdown
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindHTML:
		return "html"
	case KindMarkdown:
		return "markdown"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// DetectKind guesses the format from a file name, falling back to sniffing
// the content.
func DetectKind(name string, data []byte) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xhtml":
		return KindHTML
	case ".md", ".markdown", ".mdown", ".mkd":
		return KindMarkdown
	case ".txt", ".text":
		return KindText
	}

	head := strings.ToLower(strings.TrimSpace(string(data[:min(len(data), 512)])))
	if strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html") {
		return KindHTML
	}
	return KindMarkdown
}

// TextNode is one visible run of text in document order.
type TextNode struct {
	ID    int
	Text  string
	Block int

	node *xhtml.Node
}

// Document is a parsed page.
type Document struct {
	root  *xhtml.Node
	kind  Kind
	nodes []*TextNode

	// blockTags holds the tag of each block, indexed by TextNode.Block.
	blockTags []string

	mu         sync.RWMutex
	generation int
	marks      map[MarkID]Mark
	nextMark   MarkID
	focus      int
	progress   float64
	showProg   bool
}

// Parse reads a document of the given kind.
func Parse(r io.Reader, kind Kind) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var markup []byte
	switch kind {
	case KindHTML:
		markup = src
	case KindMarkdown:
		var buf bytes.Buffer
		if err := goldmark.Convert(src, &buf); err != nil {
			return nil, fmt.Errorf("render markdown: %w", err)
		}
		markup = buf.Bytes()
	case KindText:
		markup = textToHTML(string(src))
	default:
		return nil, fmt.Errorf("unknown document kind %d", kind)
	}

	root, err := xhtml.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	d := &Document{
		root:  root,
		kind:  kind,
		marks: make(map[MarkID]Mark),
		focus: -1,
	}
	d.index()
	return d, nil
}

// ParseString is Parse for in-memory sources.
func ParseString(s string, kind Kind) (*Document, error) {
	return Parse(strings.NewReader(s), kind)
}

// textToHTML turns blank-line separated paragraphs into <p> elements. Line
// breaks inside a paragraph are folded to spaces.
func textToHTML(s string) []byte {
	var b bytes.Buffer
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, para := range strings.Split(s, "\n\n") {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(para))
		b.WriteString("</p>\n")
	}
	return b.Bytes()
}

// Kind returns the source format.
func (d *Document) Kind() Kind { return d.kind }

// Nodes returns the visible text nodes in document order.
func (d *Document) Nodes() []TextNode {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]TextNode, len(d.nodes))
	for i, n := range d.nodes {
		out[i] = *n
	}
	return out
}

// Text returns all visible text, one node per line.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	parts := make([]string, len(d.nodes))
	for i, n := range d.nodes {
		parts[i] = n.Text
	}
	return strings.Join(parts, "\n")
}

// Replace changes the text of a node. Any Range located before the change
// becomes invalid.
func (d *Document) Replace(nodeID int, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if nodeID < 0 || nodeID >= len(d.nodes) {
		return fmt.Errorf("no text node %d", nodeID)
	}
	n := d.nodes[nodeID]
	n.Text = text
	n.node.Data = text
	d.generation++

	for id, m := range d.marks {
		if m.Node == nodeID {
			delete(d.marks, id)
		}
	}
	return nil
}

// Generation counts mutations of the document text.
func (d *Document) Generation() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.generation
}

var hiddenContainers = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Iframe:   true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Pre: true,
	atom.Blockquote: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Td: true, atom.Th: true,
	atom.Dt: true, atom.Dd: true, atom.Figcaption: true, atom.Article: true,
	atom.Section: true, atom.Main: true, atom.Body: true, atom.Header: true,
	atom.Footer: true, atom.Nav: true, atom.Aside: true,
}

// index collects visible text nodes and groups them by their nearest block
// element.
func (d *Document) index() {
	blockIDs := make(map[*xhtml.Node]int)

	var walk func(n *xhtml.Node, block *xhtml.Node)
	walk = func(n *xhtml.Node, block *xhtml.Node) {
		switch n.Type {
		case xhtml.ElementNode:
			if hiddenContainers[n.DataAtom] || isInlineHidden(n) {
				return
			}
			if blockElements[n.DataAtom] {
				block = n
			}
		case xhtml.TextNode:
			if strings.TrimSpace(n.Data) == "" {
				return
			}
			id, ok := blockIDs[block]
			if !ok {
				id = len(d.blockTags)
				blockIDs[block] = id
				tag := "p"
				if block != nil {
					tag = block.Data
				}
				d.blockTags = append(d.blockTags, tag)
			}
			d.nodes = append(d.nodes, &TextNode{
				ID:    len(d.nodes),
				Text:  n.Data,
				Block: id,
				node:  n,
			})
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, block)
		}
	}
	walk(d.root, nil)
}

func attr(n *xhtml.Node, key string) string {
	v, _ := hasAttr(n, key)
	return v
}

func isInlineHidden(n *xhtml.Node) bool {
	if _, ok := hasAttr(n, "hidden"); ok {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(attr(n, "style")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func hasAttr(n *xhtml.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
