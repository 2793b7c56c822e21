package page

import "strings"

// Range is a span of text across one or more nodes, as captured from a
// selection. It is a reference into the document and goes stale when the
// document text changes.
type Range struct {
	StartNode   int
	StartOffset int // byte offset in the start node
	EndNode     int
	EndOffset   int // byte offset in the end node, exclusive

	doc        *Document
	generation int
}

// Segment is the part of a single node covered by a Range.
type Segment struct {
	Node  int
	Start int
	End   int
}

// Locate finds text in the visible nodes, matching case- and
// whitespace-insensitively, possibly across node boundaries.
func (d *Document) Locate(text string) (*Range, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var b strings.Builder
	offsets := make([]int, len(d.nodes))
	for i, n := range d.nodes {
		if i > 0 {
			b.WriteByte('\n')
		}
		offsets[i] = b.Len()
		b.WriteString(n.Text)
	}

	start, end, ok := Find(b.String(), text)
	if !ok {
		return nil, false
	}

	r := &Range{doc: d, generation: d.generation}
	r.StartNode, r.StartOffset = d.position(offsets, start)
	// end follows a non-space rune, so end-1 is inside a node.
	r.EndNode, r.EndOffset = d.position(offsets, end-1)
	r.EndOffset++
	return r, true
}

// position maps an offset in the joined text to a node and an offset in it.
func (d *Document) position(offsets []int, off int) (node, rel int) {
	for i := len(offsets) - 1; i >= 0; i-- {
		if offsets[i] <= off {
			return i, off - offsets[i]
		}
	}
	return 0, off
}

// Valid reports whether the range still refers to d's current text.
func (r *Range) Valid(d *Document) bool {
	return r != nil && d != nil && r.doc == d && r.generation == d.Generation()
}

// Segments splits the range into per-node spans.
func (r *Range) Segments() []Segment {
	if r == nil || r.doc == nil {
		return nil
	}
	r.doc.mu.RLock()
	defer r.doc.mu.RUnlock()

	var segs []Segment
	for n := r.StartNode; n <= r.EndNode && n < len(r.doc.nodes); n++ {
		s := Segment{Node: n, Start: 0, End: len(r.doc.nodes[n].Text)}
		if n == r.StartNode {
			s.Start = r.StartOffset
		}
		if n == r.EndNode {
			s.End = min(r.EndOffset, s.End)
		}
		if s.Start < s.End {
			segs = append(segs, s)
		}
	}
	return segs
}
