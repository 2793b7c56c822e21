package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxSize is the advisory chunk size used when none is configured.
const DefaultMaxSize = 500

// separator joins sentences inside a chunk. The terminators themselves are
// dropped by the split, so every joined sentence reads as a full stop.
const separator = ". "

var terminators = regexp.MustCompile(`[.!?]+`)

// Chunk is one ordered slice of the source text.
type Chunk struct {
	Index int
	Text  string
}

// Sentences splits text on runs of sentence terminators and returns the
// trimmed, non-empty fragments in order.
func Sentences(text string) []string {
	parts := terminators.Split(text, -1)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// Split greedily packs sentences into chunks of at most maxChunkSize
// characters. The bound is advisory: a sentence that is longer than
// maxChunkSize on its own becomes a chunk of its own and is never cut.
// A non-positive maxChunkSize falls back to DefaultMaxSize.
func Split(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxSize
	}

	var (
		chunks  []string
		current strings.Builder
		size    int // in runes
	)
	for _, sentence := range Sentences(text) {
		n := utf8.RuneCountInString(sentence)
		if size > 0 && size+n > maxChunkSize {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			current.WriteString(sentence)
			size = n
			continue
		}
		if size > 0 {
			current.WriteString(separator)
			size += len(separator)
		}
		current.WriteString(sentence)
		size += n
	}

	if last := strings.TrimSpace(current.String()); last != "" {
		chunks = append(chunks, last)
	}
	if chunks == nil {
		return []string{}
	}
	return chunks
}

// Build splits text like Split and attaches each chunk's position.
func Build(text string, maxChunkSize int) []Chunk {
	texts := Split(text, maxChunkSize)
	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Index: i, Text: t}
	}
	return chunks
}

// Texts returns the payloads of chunks in order.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
