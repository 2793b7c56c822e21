// Package session holds the state of one read request: its chunks, the
// playback cursor and, for selections, the saved page range.
package session

import (
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dgnsrekt/pageread/internal/chunk"
	"github.com/dgnsrekt/pageread/internal/page"
)

// Analysis summarizes a session for clients.
type Analysis struct {
	Chunks       int `json:"chunks"`
	CurrentChunk int `json:"currentChunk"`
	TotalChars   int `json:"totalChars"`
}

// Session is the unit of work for one read. A new read, a navigation or a
// stop replaces or resets it; its ID tags in-flight work so late results
// can be recognized.
type Session struct {
	ID        uuid.UUID
	Source    string
	Selection bool
	Range     *page.Range // saved selection, nil for page reads

	mu      sync.RWMutex
	chunks  []chunk.Chunk
	current int
}

// New creates a session over chunks with the cursor on the first chunk.
func New(source string, chunks []chunk.Chunk) *Session {
	return &Session{
		ID:     uuid.New(),
		Source: source,
		chunks: chunks,
	}
}

// NewSelection creates a session for selected text. r may be nil when the
// selection could not be located on the page.
func NewSelection(source string, chunks []chunk.Chunk, r *page.Range) *Session {
	s := New(source, chunks)
	s.Selection = true
	s.Range = r
	return s
}

// Chunks returns a copy of the chunk sequence.
func (s *Session) Chunks() []chunk.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]chunk.Chunk(nil), s.chunks...)
}

// Len returns the number of chunks.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Current returns the cursor.
func (s *Session) Current() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetCurrent moves the cursor to a chunk index.
func (s *Session) SetCurrent(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = i
}

// Clamp bounds i to [0, Len()-1], or 0 for an empty session.
func (s *Session) Clamp(i int) int {
	n := s.Len()
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// ChunkText returns the text of chunk i.
func (s *Session) ChunkText(i int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.chunks) {
		return "", false
	}
	return s.chunks[i].Text, true
}

// Reset clears the chunks and moves the cursor back to 0.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.current = 0
}

// Analysis reports chunk count, cursor and the summed chunk length in
// characters.
func (s *Session) Analysis() Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, c := range s.chunks {
		total += utf8.RuneCountInString(c.Text)
	}
	return Analysis{
		Chunks:       len(s.chunks),
		CurrentChunk: s.current,
		TotalChars:   total,
	}
}
