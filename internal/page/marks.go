package page

import (
	"fmt"
	"sort"
)

// MarkID identifies a highlight mark.
type MarkID int

// Mark highlights bytes [Start, End) of a text node.
type Mark struct {
	Node  int
	Start int
	End   int
}

// Span is a piece of a rendered block.
type Span struct {
	Text   string
	Marked bool
}

// Block is a run of text nodes sharing a block element, ready to render.
type Block struct {
	ID      int
	Tag     string
	Spans   []Span
	Focused bool
}

// AddMark highlights part of a node.
func (d *Document) AddMark(node, start, end int) (MarkID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if node < 0 || node >= len(d.nodes) {
		return 0, fmt.Errorf("no text node %d", node)
	}
	if start < 0 || end > len(d.nodes[node].Text) || start >= end {
		return 0, fmt.Errorf("invalid mark [%d, %d) in node %d", start, end, node)
	}

	d.nextMark++
	d.marks[d.nextMark] = Mark{Node: node, Start: start, End: end}
	return d.nextMark, nil
}

// RemoveMark deletes a mark. Unknown ids are ignored.
func (d *Document) RemoveMark(id MarkID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.marks, id)
}

// Marks returns the live marks in document order.
func (d *Document) Marks() []Mark {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sortedMarks()
}

func (d *Document) sortedMarks() []Mark {
	out := make([]Mark, 0, len(d.marks))
	for _, m := range d.marks {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Node != out[j].Node {
			return out[i].Node < out[j].Node
		}
		return out[i].Start < out[j].Start
	})
	return out
}

// ScrollTo moves the view focus to a node.
func (d *Document) ScrollTo(node int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if node >= 0 && node < len(d.nodes) {
		d.focus = node
	}
}

// Focus returns the focused node, or -1.
func (d *Document) Focus() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.focus
}

// SetProgress shows the reading progress bar at fraction f.
func (d *Document) SetProgress(f float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress = max(0, min(f, 1))
	d.showProg = true
}

// ClearProgress removes the progress bar.
func (d *Document) ClearProgress() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress = 0
	d.showProg = false
}

// Progress returns the progress fraction and whether the bar is shown.
func (d *Document) Progress() (float64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.progress, d.showProg
}

// Blocks groups the text nodes into blocks and splits them at mark edges.
func (d *Document) Blocks() []Block {
	d.mu.RLock()
	defer d.mu.RUnlock()

	byNode := make(map[int][]Mark)
	for _, m := range d.sortedMarks() {
		byNode[m.Node] = append(byNode[m.Node], m)
	}

	var blocks []Block
	for _, n := range d.nodes {
		if len(blocks) == 0 || blocks[len(blocks)-1].ID != n.Block {
			blocks = append(blocks, Block{ID: n.Block, Tag: d.blockTags[n.Block]})
		}
		b := &blocks[len(blocks)-1]
		if n.ID == d.focus {
			b.Focused = true
		}
		if len(b.Spans) > 0 {
			b.Spans = append(b.Spans, Span{Text: " "})
		}
		b.Spans = append(b.Spans, splitMarks(n.Text, byNode[n.ID])...)
	}
	return blocks
}

func splitMarks(text string, marks []Mark) []Span {
	var spans []Span
	pos := 0
	for _, m := range marks {
		start := max(m.Start, pos)
		if start >= m.End {
			continue
		}
		if start > pos {
			spans = append(spans, Span{Text: text[pos:start]})
		}
		spans = append(spans, Span{Text: text[start:m.End], Marked: true})
		pos = m.End
	}
	if pos < len(text) {
		spans = append(spans, Span{Text: text[pos:]})
	}
	return spans
}
