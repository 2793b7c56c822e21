package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/pageread/internal/audio"
	"github.com/dgnsrekt/pageread/internal/queue"
	"github.com/dgnsrekt/pageread/internal/session"
	"github.com/dgnsrekt/pageread/internal/speech"
)

var (
	// ErrNoSession is returned when navigating without chunks to move over.
	ErrNoSession = errors.New("no active reading session")

	// ErrNotPlaying is returned when pausing or resuming in the wrong state.
	ErrNotPlaying = errors.New("nothing is playing")
)

// Job is one synthesized chunk waiting to be played.
type Job struct {
	Index int
	Data  []byte
}

// Highlighter marks the page text of the audible chunk.
type Highlighter interface {
	Show(sess *session.Session, idx int) bool
	Clear()
}

type noHighlight struct{}

func (noHighlight) Show(*session.Session, int) bool { return false }
func (noHighlight) Clear()                           {}

// Config holds the engine configuration.
type Config struct {
	// Params are sent with every synthesis request.
	Params speech.Params

	// InterChunkDelay separates back-to-back chunks (defaults to 50ms).
	InterChunkDelay time.Duration

	// RetryDelay is waited after skipping an undecodable chunk (defaults
	// to 100ms).
	RetryDelay time.Duration

	Logger *log.Logger
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Params:          speech.Params{Voice: "af_heart", Speed: 1.0, Format: speech.FormatPCM},
		InterChunkDelay: 50 * time.Millisecond,
		RetryDelay:      100 * time.Millisecond,
	}
}

// Snapshot describes the engine for UIs.
type Snapshot struct {
	State     State
	SessionID string
	Current   int
	Chunks    int
	Queued    int
	Fetched   int
	Paused    bool
}

// Engine is the playback state machine. One session is live at a time;
// starting a read, navigating or stopping invalidates the previous one.
type Engine struct {
	synth   speech.Synthesizer
	decoder *audio.Decoder
	device  audio.Device
	sink    EventSink
	logger  *log.Logger

	interChunkDelay time.Duration
	retryDelay      time.Duration

	mu      sync.Mutex
	params  speech.Params
	cursor  Highlighter
	state   State
	run     *run
	pending []Event

	// suspended is set while Pause holds the device suspended.
	suspended bool
}

// run is the per-session work: its fetch loop, queue and driver.
type run struct {
	sess   *session.Session
	queue  *queue.Queue[Job]
	cursor Highlighter

	ctx         context.Context
	cancelFetch context.CancelFunc
	cancel      chan struct{}
	cancelOnce  sync.Once

	total   int
	fetched int
	driving bool
	source  audio.Source
}

func (r *run) stop() {
	r.cancelOnce.Do(func() {
		close(r.cancel)
		r.cancelFetch()
	})
}

func (r *run) canceled() bool {
	select {
	case <-r.cancel:
		return true
	default:
		return false
	}
}

// NewEngine creates a playback engine. A nil sink discards events.
func NewEngine(synth speech.Synthesizer, decoder *audio.Decoder, device audio.Device, sink EventSink, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.InterChunkDelay <= 0 {
		cfg.InterChunkDelay = def.InterChunkDelay
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.Params.Voice == "" {
		cfg.Params.Voice = def.Params.Voice
	}
	if cfg.Params.Speed <= 0 {
		cfg.Params.Speed = def.Params.Speed
	}
	if cfg.Params.Format == "" {
		cfg.Params.Format = def.Params.Format
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default().WithPrefix("engine")
	}
	if decoder == nil {
		decoder = audio.NewDecoder(0, 0)
	}
	if sink == nil {
		sink = discard{}
	}

	return &Engine{
		synth:           synth,
		decoder:         decoder,
		device:          device,
		sink:            sink,
		logger:          cfg.Logger,
		interChunkDelay: cfg.InterChunkDelay,
		retryDelay:      cfg.RetryDelay,
		params:          cfg.Params,
		cursor:          noHighlight{},
		state:           StateIdle,
	}
}

// SetHighlighter sets the cursor used by the next session. nil disables
// highlighting.
func (e *Engine) SetHighlighter(h Highlighter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h == nil {
		h = noHighlight{}
	}
	e.cursor = h
}

// SetParams changes the voice, speed and format for later requests.
func (e *Engine) SetParams(p speech.Params) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = p
}

// Params returns the synthesis parameters.
func (e *Engine) Params() speech.Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session returns the live session, or nil.
func (e *Engine) Session() *session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return nil
	}
	return e.run.sess
}

// Snapshot reports the engine state for display.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{State: e.state, Paused: e.state == StatePaused}
	if r := e.run; r != nil {
		s.SessionID = r.sess.ID.String()
		s.Current = r.sess.Current()
		s.Chunks = r.sess.Len()
		s.Queued = r.queue.Len()
		s.Fetched = r.fetched
	}
	return s
}

// Start reads every chunk of sess from the first. It runs the fetch loop
// on the calling goroutine and returns when all chunks are fetched, the
// session is superseded, or fetching fails. With autoPlay, playback begins
// as soon as the first chunk is queued.
func (e *Engine) Start(ctx context.Context, sess *session.Session, autoPlay bool) error {
	indices := chunkIndices(sess)
	r := e.begin(ctx, sess, len(indices))
	return e.fetch(r, indices, autoPlay)
}

// Launch makes sess the live session before it returns, superseding any
// previous one, and runs the fetch loop in the background. The channel
// receives the loop's result and is then closed.
func (e *Engine) Launch(ctx context.Context, sess *session.Session, autoPlay bool) <-chan error {
	indices := chunkIndices(sess)
	r := e.begin(ctx, sess, len(indices))

	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- e.fetch(r, indices, autoPlay)
	}()
	return done
}

func chunkIndices(sess *session.Session) []int {
	chunks := sess.Chunks()
	indices := make([]int, len(chunks))
	for i, c := range chunks {
		indices[i] = c.Index
	}
	return indices
}

// Play starts playing jobs that were fetched without auto-play.
func (e *Engine) Play() error {
	e.mu.Lock()
	r := e.run
	if r == nil || r.canceled() || r.driving {
		e.mu.Unlock()
		return ErrNotPlaying
	}
	r.driving = true
	e.setStateLocked(StatePlaying)
	e.unlockAndFlush()

	go e.drive(r)
	return nil
}

// Navigate stops playback and starts a new session on the chunk dir steps
// from the current one, clamped to the chunk range. Only the target chunk
// is synthesized; the fetch runs in the background.
func (e *Engine) Navigate(ctx context.Context, dir int) (*session.Session, error) {
	e.mu.Lock()
	if e.run == nil || e.run.sess.Len() == 0 {
		e.mu.Unlock()
		return nil, ErrNoSession
	}
	old := e.run.sess
	chunks := old.Chunks()
	target := old.Clamp(old.Current() + dir)
	e.mu.Unlock()

	e.Stop()

	next := session.New(old.Source, chunks)
	next.Selection = old.Selection
	next.Range = old.Range
	next.SetCurrent(target)

	r := e.begin(ctx, next, 1)
	go func() {
		_ = e.fetch(r, []int{target}, true)
	}()
	return next, nil
}

// Pause suspends the output device mid-chunk.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.state != StatePlaying {
		e.mu.Unlock()
		return ErrNotPlaying
	}
	if err := e.device.Suspend(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.suspended = true
	e.setStateLocked(StatePaused)
	e.unlockAndFlush()
	return nil
}

// Resume continues from where Pause suspended the device.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if e.state != StatePaused {
		e.mu.Unlock()
		return ErrNotPlaying
	}
	if err := e.device.Resume(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.suspended = false
	e.setStateLocked(StatePlaying)
	e.unlockAndFlush()
	return nil
}

// TogglePause pauses or resumes and reports whether playback is now paused.
func (e *Engine) TogglePause() (bool, error) {
	if e.State() == StatePaused {
		return false, e.Resume()
	}
	return true, e.Pause()
}

// Stop halts the active source, drops queued jobs, clears the highlight
// and resets the session. It is safe to call in any state.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.releaseDeviceLocked()
	if r := e.run; r != nil {
		e.haltLocked(r)
		r.sess.Reset()
		e.run = nil
	}
	e.cursor.Clear()
	e.setStateLocked(StateStopped)
	e.unlockAndFlush()
}

// begin registers a new run for sess, superseding any previous one.
func (e *Engine) begin(ctx context.Context, sess *session.Session, total int) *run {
	fetchCtx, cancel := context.WithCancel(ctx)
	r := &run{
		sess:        sess,
		queue:       queue.New[Job](),
		ctx:         fetchCtx,
		cancelFetch: cancel,
		cancel:      make(chan struct{}),
		total:       total,
	}

	e.mu.Lock()
	e.releaseDeviceLocked()
	if old := e.run; old != nil {
		e.haltLocked(old)
		old.sess.Reset()
		old.cursor.Clear()
	}
	r.cursor = e.cursor
	e.run = r
	e.setStateLocked(StateFetching)
	e.unlockAndFlush()

	e.logger.Debug("Session started", "session", sess.ID, "chunks", total)
	return r
}

// fetch synthesizes the given chunks in order and queues them.
func (e *Engine) fetch(r *run, indices []int, autoPlay bool) error {
	texts := make([]string, len(indices))
	for i, idx := range indices {
		text, ok := r.sess.ChunkText(idx)
		if !ok {
			return fmt.Errorf("chunk %d out of range", idx)
		}
		texts[i] = text
	}

	for i, idx := range indices {
		params := e.Params()
		start := time.Now()
		data, err := e.synth.Synthesize(r.ctx, texts[i], params)

		e.mu.Lock()
		if e.run != r || r.canceled() {
			e.mu.Unlock()
			e.logger.Debug("Discarding audio for superseded session", "session", r.sess.ID, "chunk", idx)
			return nil
		}
		if err != nil {
			e.failLocked(r, err)
			e.unlockAndFlush()
			return err
		}

		if err := r.queue.Push(Job{Index: idx, Data: data}); err != nil {
			e.unlockAndFlush()
			e.logger.Debug("Discarding audio for closed queue", "session", r.sess.ID, "chunk", idx, "err", err)
			return nil
		}
		r.fetched++
		startDriver := autoPlay && !r.driving
		if startDriver {
			r.driving = true
			e.setStateLocked(StatePlaying)
		}
		progress := int(math.Round(float64(i+1) / float64(len(indices)) * 100))
		e.pending = append(e.pending,
			Event{Action: ActionUpdateProgress, Progress: progress},
			Event{Action: ActionUpdateContentAnalysis, Analysis: r.sess.Analysis()})
		e.unlockAndFlush()

		e.logger.Debug("Chunk fetched", "chunk", idx, "progress", progress, "took", time.Since(start))
		if startDriver {
			go e.drive(r)
		}
	}

	e.mu.Lock()
	if e.run == r && !r.canceled() {
		r.queue.Close()
		if !r.driving {
			e.setStateLocked(StateIdle)
		}
	}
	e.unlockAndFlush()
	return nil
}

// drive plays queued jobs until the session ends.
func (e *Engine) drive(r *run) {
	for {
		job, ok := r.queue.Pop()
		if !ok {
			e.mu.Lock()
			if e.run != r || r.canceled() {
				e.mu.Unlock()
				return
			}
			if r.queue.Closed() && r.queue.Len() == 0 {
				e.finishLocked(r)
				e.unlockAndFlush()
				return
			}
			e.mu.Unlock()

			// Playback caught up with fetching.
			select {
			case <-r.queue.Ready():
				continue
			case <-r.cancel:
				return
			}
		}

		buf, err := e.decoder.Decode(job.Data)
		if err != nil {
			more, live := e.moreJobs(r)
			if !live {
				return
			}
			if more {
				e.logger.Warn("Skipping chunk that failed to decode", "chunk", job.Index, "err", err)
				if !e.sleep(r, e.retryDelay) {
					return
				}
				continue
			}
			e.mu.Lock()
			if e.run == r && !r.canceled() {
				e.failLocked(r, err)
			}
			e.unlockAndFlush()
			return
		}

		src, ok := e.play(r, job, buf)
		if !ok {
			return
		}

		select {
		case <-src.Done():
		case <-r.cancel:
			return
		}

		e.mu.Lock()
		if e.run != r || r.canceled() {
			e.mu.Unlock()
			return
		}
		r.source = nil
		more := r.queue.Len() > 0
		e.mu.Unlock()

		if more && !e.sleep(r, e.interChunkDelay) {
			return
		}
	}
}

// play starts job on the device and moves the cursor and highlight to it.
// The source is started under the engine lock so a concurrent stop can
// never leave a second source running.
func (e *Engine) play(r *run, job Job, buf *audio.Buffer) (audio.Source, bool) {
	e.mu.Lock()
	if e.run != r || r.canceled() {
		e.mu.Unlock()
		return nil, false
	}

	src, err := e.device.Start(buf)
	if err != nil {
		e.failLocked(r, fmt.Errorf("start audio: %w", err))
		e.unlockAndFlush()
		return nil, false
	}
	r.source = src
	r.sess.SetCurrent(job.Index)
	r.cursor.Show(r.sess, job.Index)
	if e.state != StatePaused {
		e.setStateLocked(StatePlaying)
	}

	text, _ := r.sess.ChunkText(job.Index)
	e.pending = append(e.pending, Event{Action: ActionHighlightChanged, Chunk: job.Index, Text: text})
	e.unlockAndFlush()

	e.logger.Debug("Playing chunk", "chunk", job.Index, "duration", buf.Duration())
	return src, true
}

// moreJobs waits until the queue holds a job or fetching is complete and
// reports whether another job will be played. live is false when the run
// was canceled while waiting.
func (e *Engine) moreJobs(r *run) (more, live bool) {
	for {
		if r.queue.Len() > 0 {
			return true, true
		}
		if r.queue.Closed() {
			return r.queue.Len() > 0, true
		}
		select {
		case <-r.queue.Ready():
		case <-r.cancel:
			return false, false
		}
	}
}

// sleep waits d unless the run is canceled first.
func (e *Engine) sleep(r *run, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.cancel:
		return false
	}
}

// haltLocked cancels r, stops its source, drops its queue and releases a
// paused device.
func (e *Engine) haltLocked(r *run) {
	r.stop()
	if r.source != nil {
		r.source.Stop()
		r.source = nil
	}
	r.queue.Clear()
	e.releaseDeviceLocked()
}

// releaseDeviceLocked resumes the device if Pause left it suspended,
// whatever state the engine has moved to since.
func (e *Engine) releaseDeviceLocked() {
	if !e.suspended {
		return
	}
	if err := e.device.Resume(); err != nil {
		e.logger.Warn("Failed to resume device", "err", err)
		return
	}
	e.suspended = false
}

func (e *Engine) failLocked(r *run, err error) {
	e.logger.Error("Playback failed", "session", r.sess.ID, "err", err)
	e.haltLocked(r)
	r.cursor.Clear()
	e.setStateLocked(StateErrored)
	e.pending = append(e.pending, Event{Action: ActionPlaybackError, Error: err.Error()})
}

func (e *Engine) finishLocked(r *run) {
	e.logger.Debug("Playback finished", "session", r.sess.ID)
	r.stop()
	e.releaseDeviceLocked()
	r.cursor.Clear()
	e.setStateLocked(StateFinished)
	e.pending = append(e.pending, Event{Action: ActionPlaybackFinished})
}

func (e *Engine) setStateLocked(to State) {
	if e.state == to {
		return
	}
	if !CanTransition(e.state, to) {
		e.logger.Warn("Unexpected state transition", "from", e.state, "to", to)
	}
	e.state = to
	e.pending = append(e.pending, Event{Action: ActionStateChanged, State: to})
}

// unlockAndFlush releases the engine lock and then emits queued events.
func (e *Engine) unlockAndFlush() {
	events := e.pending
	e.pending = nil
	e.mu.Unlock()

	for _, ev := range events {
		e.sink.Emit(ev)
	}
}
