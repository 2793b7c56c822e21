package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/pageread/internal/chunk"
)

// wordsPerMinute estimates listening time at speed 1.0.
const wordsPerMinute = 160

var (
	showChunks bool

	analyzeCmd = &cobra.Command{
		Use:     "analyze [SOURCE]",
		Short:   "Show how a page would be read",
		Long:    paragraph(fmt.Sprintf("\n%s the readable text of a page: characters, chunks and the estimated listening time.", keyword("Analyze"))),
		Example: paragraph("pageread analyze article.html\npageread analyze --chunks https://example.com/post"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, chunks, err := loadChunks(cmd, args)
			if err != nil {
				return err
			}
			return renderMarkdown(cmd.OutOrStdout(), analysisReport(text, chunks, viper.GetFloat64("api.speed"), showChunks))
		},
	}

	extractCmd = &cobra.Command{
		Use:     "extract [SOURCE]",
		Short:   "Print the readable text of a page",
		Example: paragraph("pageread extract article.html\npageread extract --chunks page.md"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, chunks, err := loadChunks(cmd, args)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !showChunks {
				_, err := fmt.Fprintln(w, text)
				return err //nolint:wrapcheck
			}
			for _, c := range chunks {
				if _, err := fmt.Fprintf(w, "%d\t%s\n", c.Index+1, c.Text); err != nil {
					return err //nolint:wrapcheck
				}
			}
			return nil
		},
	}
)

func loadChunks(cmd *cobra.Command, args []string) (string, []chunk.Chunk, error) {
	arg, err := resolveArg(args)
	if err != nil {
		return "", nil, err
	}
	src, err := sourceFromArg(cmd.Context(), arg)
	if err != nil {
		return "", nil, err
	}
	text := src.doc.ExtractArticle()
	return text, chunk.Build(text, viper.GetInt("reader.chunk_size")), nil
}

// analysisReport builds the markdown report for text.
func analysisReport(text string, chunks []chunk.Chunk, speed float64, listChunks bool) string {
	chars := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	if speed <= 0 {
		speed = 1
	}
	minutes := float64(words) / (wordsPerMinute * speed)

	var b strings.Builder
	b.WriteString("# Content analysis\n\n")
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Characters | %s |\n", humanize.Comma(int64(chars)))
	fmt.Fprintf(&b, "| Words | %s |\n", humanize.Comma(int64(words)))
	fmt.Fprintf(&b, "| Chunks | %d |\n", len(chunks))
	fmt.Fprintf(&b, "| Text size | %s |\n", humanize.Bytes(uint64(len(text))))
	fmt.Fprintf(&b, "| Listening time | about %s |\n", humanize.FtoaWithDigits(minutes, 1)+" min")

	if chars < 10 {
		b.WriteString("\nNo readable content found on this page.\n")
	}

	if listChunks && len(chunks) > 0 {
		b.WriteString("\n## Chunks\n\n")
		for _, c := range chunks {
			fmt.Fprintf(&b, "%d. %s\n", c.Index+1, truncate.StringWithTail(c.Text, 72, "…"))
		}
	}
	return b.String()
}

func renderMarkdown(w io.Writer, md string) error {
	styleOpt := glamour.WithAutoStyle()
	// We want to use a special no-TTY style, when stdout is not a terminal
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		styleOpt = glamour.WithStandardStyle(styles.NoTTYStyle)
	}
	wrap := int(width) //nolint:gosec
	if wrap == 0 {
		wrap = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		styleOpt,
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("unable to render markdown: %w", err)
	}
	if _, err := fmt.Fprint(w, out); err != nil {
		return fmt.Errorf("unable to write to writer: %w", err)
	}
	return nil
}

func init() {
	analyzeCmd.Flags().BoolVar(&showChunks, "chunks", false, "list the chunks")
	extractCmd.Flags().BoolVar(&showChunks, "chunks", false, "print one chunk per line")
}
