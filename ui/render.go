package ui

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/dgnsrekt/pageread/internal/page"
)

var (
	markStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("226")).
			Foreground(lipgloss.Color("0")).
			Bold(true)

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	quoteStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}).Italic(true)
)

// rendered is a document laid out for the viewport.
type rendered struct {
	content string

	// focusLine is the first line of the focused block, or -1.
	focusLine int
}

// renderDocument word-wraps the document blocks to width and styles the
// highlight marks.
func renderDocument(doc *page.Document, width int) rendered {
	out := rendered{focusLine: -1}
	if doc == nil {
		return out
	}
	if width <= 0 {
		width = 80
	}

	var (
		b     strings.Builder
		lines int
	)
	for i, block := range doc.Blocks() {
		if i > 0 {
			b.WriteString("\n\n")
			lines += 2
		}
		if block.Focused && out.focusLine < 0 {
			out.focusLine = lines
		}

		text := wordwrap.String(renderSpans(block), width)
		b.WriteString(text)
		lines += strings.Count(text, "\n")
	}
	out.content = b.String()
	return out
}

func renderSpans(block page.Block) string {
	var b strings.Builder
	for _, span := range block.Spans {
		text := collapseSpace(span.Text)
		if span.Marked {
			b.WriteString(markStyle.Render(text))
			continue
		}
		b.WriteString(blockStyle(block.Tag, text))
	}
	return strings.TrimSpace(b.String())
}

// collapseSpace folds runs of whitespace into one space, keeping a space at
// either edge so adjacent spans stay separated.
func collapseSpace(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if s == "" {
			return ""
		}
		return " "
	}
	out := strings.Join(fields, " ")
	if strings.TrimLeftFunc(s, unicode.IsSpace) != s {
		out = " " + out
	}
	if strings.TrimRightFunc(s, unicode.IsSpace) != s {
		out += " "
	}
	return out
}

func blockStyle(tag, s string) string {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return headingStyle.Render(s)
	case "blockquote":
		return quoteStyle.Render(s)
	default:
		return s
	}
}
