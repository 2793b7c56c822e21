// Package highlight keeps a mark on the page text of the chunk that is
// currently audible.
package highlight

import (
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/pageread/internal/page"
	"github.com/dgnsrekt/pageread/internal/session"
)

// searchPrefix is how many characters of a chunk are used to find it.
const searchPrefix = 100

// Cursor owns the single live set of highlight marks. A nil document makes
// every call a no-op.
type Cursor struct {
	doc    *page.Document
	logger *log.Logger

	mu    sync.Mutex
	marks []page.MarkID
}

// New returns a cursor for doc.
func New(doc *page.Document) *Cursor {
	return &Cursor{
		doc:    doc,
		logger: log.Default().WithPrefix("highlight"),
	}
}

// Document returns the page the cursor marks.
func (c *Cursor) Document() *page.Document {
	return c.doc
}

// Show clears the previous marks and highlights chunk idx of sess. It
// reports whether any text was marked; a miss is not an error.
func (c *Cursor) Show(sess *session.Session, idx int) bool {
	if c == nil || c.doc == nil || sess == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLocked()

	var found bool
	if sess.Selection {
		found = c.markSelection(sess)
	} else if text, ok := sess.ChunkText(idx); ok {
		found = c.markText(text)
	}

	if n := sess.Len(); n > 0 {
		c.doc.SetProgress(float64(idx) / float64(n))
	}
	return found
}

// markSelection marks every node segment of the saved selection range.
func (c *Cursor) markSelection(sess *session.Session) bool {
	if !sess.Range.Valid(c.doc) {
		c.logger.Debug("Selection range is no longer valid")
		return false
	}
	for _, seg := range sess.Range.Segments() {
		id, err := c.doc.AddMark(seg.Node, seg.Start, seg.End)
		if err != nil {
			c.logger.Debug("Could not highlight selected text", "err", err)
			continue
		}
		c.marks = append(c.marks, id)
	}
	if len(c.marks) == 0 {
		return false
	}
	c.doc.ScrollTo(sess.Range.StartNode)
	return true
}

// markText marks the first node containing the start of text.
func (c *Cursor) markText(text string) bool {
	prefix := text
	if utf8.RuneCountInString(prefix) > searchPrefix {
		prefix = string([]rune(prefix)[:searchPrefix])
	}
	length := utf8.RuneCountInString(text)

	for _, n := range c.doc.Nodes() {
		start, _, ok := page.Find(n.Text, prefix)
		if !ok {
			continue
		}
		end := start
		for i := 0; i < length && end < len(n.Text); i++ {
			_, size := utf8.DecodeRuneInString(n.Text[end:])
			end += size
		}
		id, err := c.doc.AddMark(n.ID, start, end)
		if err != nil {
			c.logger.Debug("Could not highlight text", "err", err)
			continue
		}
		c.marks = append(c.marks, id)
		c.doc.ScrollTo(n.ID)
		return true
	}
	return false
}

// Clear removes the marks and the progress bar.
func (c *Cursor) Clear() {
	if c == nil || c.doc == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
	c.doc.ClearProgress()
}

func (c *Cursor) clearLocked() {
	for _, id := range c.marks {
		c.doc.RemoveMark(id)
	}
	c.marks = nil
}
