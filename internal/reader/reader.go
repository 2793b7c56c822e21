// Package reader turns control requests into reading sessions: it extracts
// text from the current page, chunks it and drives the playback engine.
package reader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/pageread/internal/chunk"
	"github.com/dgnsrekt/pageread/internal/highlight"
	"github.com/dgnsrekt/pageread/internal/page"
	"github.com/dgnsrekt/pageread/internal/playback"
	"github.com/dgnsrekt/pageread/internal/session"
	"github.com/dgnsrekt/pageread/internal/speech"
)

const (
	minPageText      = 10
	minSelectionText = 5
)

// SelectionSource supplies the user's current selection when a request
// does not carry one.
type SelectionSource interface {
	Selection() (string, error)
}

// Config holds the reader defaults.
type Config struct {
	ChunkSize       int
	AutoPlay        bool
	Highlight       bool
	IncludeSelected bool

	// HTTPClient fetches pages requested by URL.
	HTTPClient *http.Client

	Logger *log.Logger
}

// DefaultConfig returns the default reader configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize: chunk.DefaultMaxSize,
		AutoPlay:  true,
		Highlight: true,
	}
}

// Reader handles control requests against one current page.
type Reader struct {
	engine *playback.Engine
	sink   playback.EventSink
	cfg    Config
	logger *log.Logger

	// ctx outlives individual requests; background playback runs under it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	doc       *page.Document
	selection SelectionSource
}

// New creates a reader. sink receives events the reader emits itself; the
// engine has its own sink.
func New(engine *playback.Engine, sink playback.EventSink, cfg Config) *Reader {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunk.DefaultMaxSize
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default().WithPrefix("reader")
	}
	if sink == nil {
		sink = playback.Fanout{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Reader{
		engine: engine,
		sink:   sink,
		cfg:    cfg,
		logger: cfg.Logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetDocument replaces the current page.
func (r *Reader) SetDocument(doc *page.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doc = doc
}

// Document returns the current page.
func (r *Reader) Document() *page.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc
}

// SetSelectionSource sets where selections come from when a request has
// none.
func (r *Reader) SetSelectionSource(s SelectionSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selection = s
}

// Engine returns the playback engine.
func (r *Reader) Engine() *playback.Engine {
	return r.engine
}

// Close stops playback and waits for background work.
func (r *Reader) Close() {
	r.engine.Stop()
	r.cancel()
	r.wg.Wait()
}

// Handle processes one request.
func (r *Reader) Handle(ctx context.Context, req Request) Response {
	if err := r.loadPage(ctx, req); err != nil {
		r.logger.Error("Failed to load page", "err", err)
		return fail(err.Error())
	}

	switch req.Action {
	case ActionRead:
		return r.read(req)
	case ActionReadSelected:
		return r.readSelected(req)
	case ActionAnalyze:
		return r.analyze(req)
	case ActionExtract:
		return r.extract(req)
	case ActionNavigate:
		return r.navigate(req)
	case ActionPause:
		return r.pause()
	case ActionStop:
		r.engine.Stop()
		return Response{Success: true, Message: "Stopped"}
	default:
		return fail("Unknown action")
	}
}

func (r *Reader) loadPage(ctx context.Context, req Request) error {
	var (
		doc *page.Document
		err error
	)
	switch {
	case req.HTML != "":
		doc, err = page.ParseString(req.HTML, page.KindHTML)
	case req.Markdown != "":
		doc, err = page.ParseString(req.Markdown, page.KindMarkdown)
	case req.Text != "":
		doc, err = page.ParseString(req.Text, page.KindText)
	case req.URL != "":
		doc, err = page.Fetch(ctx, r.cfg.HTTPClient, req.URL)
	default:
		return nil
	}
	if err != nil {
		return err
	}

	// Playback highlights the old page; a new page ends it.
	r.engine.Stop()
	r.SetDocument(doc)
	return nil
}

func (r *Reader) read(req Request) Response {
	r.engine.Stop()

	doc := r.Document()
	var (
		text      string
		selection string
		selected  bool
	)
	if boolOr(req.IncludeSelected, r.cfg.IncludeSelected) {
		selection = r.selectedText(req)
	}
	if utf8.RuneCountInString(selection) > minSelectionText {
		text, selected = selection, true
	} else if doc != nil {
		text = doc.ExtractArticle()
	}

	n := utf8.RuneCountInString(text)
	if n < minPageText {
		return fail("No readable content found on this page")
	}

	chunks := chunk.Build(text, r.chunkSize(req))
	var sess *session.Session
	if selected {
		sess = session.NewSelection(text, chunks, r.locate(doc, text))
	} else {
		sess = session.New(text, chunks)
	}

	r.logger.Info("Reading page content", "chars", n, "chunks", len(chunks), "selection", selected)
	r.start(req, doc, sess)

	return Response{
		Success:         true,
		Message:         fmt.Sprintf("Found %d characters in %d chunks. Starting streaming playback...", n, len(chunks)),
		ContentAnalysis: &session.Analysis{Chunks: len(chunks), CurrentChunk: 0, TotalChars: n},
	}
}

func (r *Reader) readSelected(req Request) Response {
	r.engine.Stop()

	text := r.selectedText(req)
	n := utf8.RuneCountInString(text)
	if n < minSelectionText {
		return fail("No text selected or text too short. Please select some text first.")
	}

	doc := r.Document()
	sess := session.NewSelection(text, chunk.Build(text, r.chunkSize(req)), r.locate(doc, text))

	r.logger.Info("Reading selected text", "chars", n, "located", sess.Range != nil)
	r.start(req, doc, sess)

	return Response{
		Success: true,
		Message: fmt.Sprintf("Reading selected text (%d characters)...", n),
	}
}

func (r *Reader) analyze(req Request) Response {
	text, chunks := r.extractChunks(req)
	n := utf8.RuneCountInString(text)
	return Response{
		Success:         true,
		Message:         fmt.Sprintf("Content analyzed: %d characters in %d chunks", n, len(chunks)),
		ContentAnalysis: &session.Analysis{Chunks: len(chunks), TotalChars: n},
	}
}

func (r *Reader) extract(req Request) Response {
	text, chunks := r.extractChunks(req)
	n := utf8.RuneCountInString(text)
	analysis := session.Analysis{Chunks: len(chunks), TotalChars: n}

	r.sink.Emit(playback.Event{
		Action:    playback.ActionContentExtracted,
		CharCount: n,
		Analysis:  analysis,
	})
	return Response{
		Success:         true,
		Message:         fmt.Sprintf("Extracted %d characters", n),
		ContentAnalysis: &analysis,
	}
}

func (r *Reader) navigate(req Request) Response {
	sess, err := r.engine.Navigate(r.ctx, req.Direction)
	if err != nil {
		if errors.Is(err, playback.ErrNoSession) {
			return fail("No active reading session")
		}
		return fail(err.Error())
	}

	analysis := sess.Analysis()
	return Response{
		Success:         true,
		Message:         fmt.Sprintf("Navigated to chunk %d", analysis.CurrentChunk+1),
		ContentAnalysis: &analysis,
	}
}

func (r *Reader) pause() Response {
	paused, err := r.engine.TogglePause()
	if err != nil {
		return fail(err.Error())
	}
	if paused {
		return Response{Success: true, Message: "Paused"}
	}
	return Response{Success: true, Message: "Resumed"}
}

// start configures the engine for req and plays sess in the background.
func (r *Reader) start(req Request, doc *page.Document, sess *session.Session) {
	params := r.engine.Params()
	if req.Voice != "" {
		params.Voice = req.Voice
	}
	if req.Speed > 0 {
		params.Speed = req.Speed
	}
	if req.AudioFormat != "" {
		params.Format = speech.Format(req.AudioFormat)
	}
	r.engine.SetParams(params)

	if boolOr(req.HighlightText, r.cfg.Highlight) {
		r.engine.SetHighlighter(highlight.New(doc))
	} else {
		r.engine.SetHighlighter(nil)
	}

	// The session is live once Launch returns, so a stop handled next
	// always sees it.
	done := r.engine.Launch(r.ctx, sess, boolOr(req.AutoPlay, r.cfg.AutoPlay))
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := <-done; err != nil {
			r.logger.Error("Streaming playback failed", "session", sess.ID, "err", err)
		}
	}()
}

func (r *Reader) extractChunks(req Request) (string, []chunk.Chunk) {
	doc := r.Document()
	if doc == nil {
		return "", []chunk.Chunk{}
	}
	text := doc.ExtractArticle()
	return text, chunk.Build(text, r.chunkSize(req))
}

func (r *Reader) selectedText(req Request) string {
	if s := strings.TrimSpace(req.Selection); s != "" {
		return s
	}

	r.mu.Lock()
	src := r.selection
	r.mu.Unlock()
	if src == nil {
		return ""
	}

	s, err := src.Selection()
	if err != nil {
		r.logger.Debug("Could not read selection", "err", err)
		return ""
	}
	return strings.TrimSpace(s)
}

func (r *Reader) locate(doc *page.Document, text string) *page.Range {
	if doc == nil {
		return nil
	}
	rng, ok := doc.Locate(text)
	if !ok {
		return nil
	}
	return rng
}

func (r *Reader) chunkSize(req Request) int {
	if req.ChunkSize > 0 {
		return req.ChunkSize
	}
	return r.cfg.ChunkSize
}
