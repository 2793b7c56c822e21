package playback

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/pageread/internal/audio"
	"github.com/dgnsrekt/pageread/internal/chunk"
	"github.com/dgnsrekt/pageread/internal/session"
	"github.com/dgnsrekt/pageread/internal/speech"
)

// fakeSynth returns 16-bit PCM silence for each text.
type fakeSynth struct {
	mu     sync.Mutex
	texts  []string
	fail   map[string]error
	bad    map[string]bool // texts that get undecodable audio
	gate   chan struct{}   // when set, each call waits for a value
	onCall func(text string)
}

func (s *fakeSynth) Synthesize(_ context.Context, text string, _ speech.Params) ([]byte, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	onCall, gate := s.onCall, s.gate
	err := s.fail[text]
	bad := s.bad[text]
	s.mu.Unlock()

	if onCall != nil {
		onCall(text)
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if bad {
		return make([]byte, 301), nil
	}
	return make([]byte, 400), nil
}

func (s *fakeSynth) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 1)}
}

func (r *recorder) Emit(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *recorder) of(action string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) waitFor(t *testing.T, action string, n int) []Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if evs := r.of(action); len(evs) >= n {
			return evs
		}
		select {
		case <-r.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for %d %s events", n, action)
		}
	}
}

type fakeCursor struct {
	mu     sync.Mutex
	shown  []int
	clears int
}

func (c *fakeCursor) Show(_ *session.Session, idx int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shown = append(c.shown, idx)
	return true
}

func (c *fakeCursor) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
}

func (c *fakeCursor) clearCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clears
}

func (c *fakeCursor) shows() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.shown...)
}

type harness struct {
	engine *Engine
	synth  *fakeSynth
	device *audio.MockDevice
	events *recorder
	cursor *fakeCursor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		synth:  &fakeSynth{fail: map[string]error{}, bad: map[string]bool{}},
		device: audio.NewMockDevice(),
		events: newRecorder(),
		cursor: &fakeCursor{},
	}
	h.engine = NewEngine(h.synth, audio.NewDecoder(22050, 1), h.device, h.events, Config{
		InterChunkDelay: time.Millisecond,
		RetryDelay:      time.Millisecond,
	})
	h.engine.SetHighlighter(h.cursor)
	t.Cleanup(h.engine.Stop)
	return h
}

func waitStarted(t *testing.T, dev *audio.MockDevice) {
	t.Helper()
	select {
	case <-dev.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("no source started")
	}
}

func fiveChunks() *session.Session {
	return session.New("", chunk.Build("One. Two. Three. Four. Five.", 3))
}

func TestStartPlaysChunksInOrder(t *testing.T) {
	h := newHarness(t)
	h.device.PlayDuration = 5 * time.Millisecond
	sess := fiveChunks()
	if sess.Len() != 5 {
		t.Fatalf("fixture has %d chunks", sess.Len())
	}

	if err := h.engine.Start(context.Background(), sess, true); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.events.waitFor(t, ActionPlaybackFinished, 1)

	var progress []int
	for _, ev := range h.events.of(ActionUpdateProgress) {
		progress = append(progress, ev.Progress)
	}
	want := []int{20, 40, 60, 80, 100}
	if len(progress) != len(want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Errorf("progress = %v, want %v", progress, want)
			break
		}
	}
	if n := len(h.events.of(ActionUpdateContentAnalysis)); n != 5 {
		t.Errorf("content analysis events = %d, want 5", n)
	}

	shown := h.cursor.shows()
	for i, idx := range shown {
		if idx != i {
			t.Fatalf("highlight order = %v", shown)
		}
	}
	if len(shown) != 5 {
		t.Errorf("highlighted %d chunks, want 5", len(shown))
	}
	if h.device.BusyErrors() != 0 {
		t.Errorf("device saw %d overlapping starts", h.device.BusyErrors())
	}
	if st := h.engine.State(); st != StateFinished {
		t.Errorf("State() = %v, want finished", st)
	}
	if sess.Current() != 4 {
		t.Errorf("cursor = %d, want 4", sess.Current())
	}
}

func TestSingleChunkScenario(t *testing.T) {
	h := newHarness(t)
	sess := session.New("A. B. C.", chunk.Build("A. B. C.", 100))
	if texts := chunk.Texts(sess.Chunks()); len(texts) != 1 || texts[0] != "A. B. C" {
		t.Fatalf("chunks = %q", texts)
	}

	h.synth.onCall = func(string) {
		if n := len(h.cursor.shows()); n != 0 {
			t.Errorf("highlight shown %d times before the fetch", n)
		}
	}

	if err := h.engine.Start(context.Background(), sess, true); err != nil {
		t.Fatal(err)
	}
	waitStarted(t, h.device)
	if got := h.synth.calls(); len(got) != 1 || got[0] != "A. B. C" {
		t.Errorf("fetches = %q", got)
	}

	h.device.End()
	h.events.waitFor(t, ActionPlaybackFinished, 1)
	time.Sleep(20 * time.Millisecond)
	if n := len(h.events.of(ActionPlaybackFinished)); n != 1 {
		t.Errorf("playbackFinished fired %d times", n)
	}
	if h.cursor.clearCount() == 0 {
		t.Error("highlight should be cleared on finish")
	}
}

func TestStopResetsSession(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, h *harness, sess *session.Session)
		want  State
	}{
		{
			name: "playing",
			setup: func(t *testing.T, h *harness, sess *session.Session) {
				_ = h.engine.Start(context.Background(), sess, true)
				waitStarted(t, h.device)
			},
			want: StatePlaying,
		},
		{
			name: "paused",
			setup: func(t *testing.T, h *harness, sess *session.Session) {
				_ = h.engine.Start(context.Background(), sess, true)
				waitStarted(t, h.device)
				if err := h.engine.Pause(); err != nil {
					t.Fatalf("Pause() error = %v", err)
				}
			},
			want: StatePaused,
		},
		{
			name: "errored",
			setup: func(t *testing.T, h *harness, sess *session.Session) {
				h.synth.fail["Two"] = &speech.NetworkError{StatusCode: 500, Status: "Internal Server Error", Body: "boom"}
				if err := h.engine.Start(context.Background(), sess, true); err == nil {
					t.Fatal("Start() should fail")
				}
			},
			want:    StateErrored,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			sess := fiveChunks()
			tt.setup(t, h, sess)

			if st := h.engine.State(); st != tt.want {
				t.Fatalf("State() before stop = %v, want %v", st, tt.want)
			}

			h.engine.Stop()
			if sess.Len() != 0 || sess.Current() != 0 {
				t.Errorf("session after stop: %d chunks, cursor %d", sess.Len(), sess.Current())
			}
			if h.engine.State() != StateStopped {
				t.Errorf("State() = %v, want stopped", h.engine.State())
			}
			if h.device.Active() {
				t.Error("a source is still playing after stop")
			}
			if h.device.Suspended() {
				t.Error("device should not stay suspended after stop")
			}
			if h.engine.Session() != nil {
				t.Error("Session() should be nil after stop")
			}

			h.engine.Stop()
			if h.engine.State() != StateStopped {
				t.Error("second Stop() should be harmless")
			}
		})
	}
}

func TestNavigateStopsBeforeFetching(t *testing.T) {
	h := newHarness(t)
	sess := session.New("", chunk.Build("First. Second. Third.", 5))

	if err := h.engine.Start(context.Background(), sess, true); err != nil {
		t.Fatal(err)
	}
	waitStarted(t, h.device)

	var mu sync.Mutex
	var activeDuringFetch []bool
	h.synth.mu.Lock()
	h.synth.onCall = func(string) {
		mu.Lock()
		activeDuringFetch = append(activeDuringFetch, h.device.Active())
		mu.Unlock()
	}
	h.synth.mu.Unlock()

	next, err := h.engine.Navigate(context.Background(), 1)
	if err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if next.Current() != 1 || next.Len() != 3 {
		t.Errorf("new session cursor = %d, chunks = %d", next.Current(), next.Len())
	}
	if sess.Len() != 0 {
		t.Error("old session should be reset")
	}
	waitStarted(t, h.device)

	mu.Lock()
	if len(activeDuringFetch) != 1 || activeDuringFetch[0] {
		t.Errorf("source active during navigation fetch: %v", activeDuringFetch)
	}
	mu.Unlock()

	calls := h.synth.calls()
	if last := calls[len(calls)-1]; last != "Second" {
		t.Errorf("navigation fetched %q, want Second", last)
	}
	if h.device.BusyErrors() != 0 {
		t.Errorf("device saw %d overlapping starts", h.device.BusyErrors())
	}
	shown := h.cursor.shows()
	if shown[len(shown)-1] != 1 {
		t.Errorf("highlight = %v, want chunk 1 last", shown)
	}

	tests := []struct {
		dir  int
		want int
	}{
		{dir: 10, want: 2},
		{dir: -10, want: 0},
	}
	for _, tt := range tests {
		next, err := h.engine.Navigate(context.Background(), tt.dir)
		if err != nil {
			t.Fatalf("Navigate(%d) error = %v", tt.dir, err)
		}
		if next.Current() != tt.want {
			t.Errorf("Navigate(%d) cursor = %d, want %d", tt.dir, next.Current(), tt.want)
		}
		waitStarted(t, h.device)
	}

	// Navigating a one-chunk window still finishes normally.
	h.device.End()
	h.events.waitFor(t, ActionPlaybackFinished, 1)
}

func TestNavigateWithoutSession(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.Navigate(context.Background(), 1); !errors.Is(err, ErrNoSession) {
		t.Errorf("Navigate() error = %v, want ErrNoSession", err)
	}
}

func TestPauseResume(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Pause(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("Pause() when idle = %v, want ErrNotPlaying", err)
	}
	if err := h.engine.Resume(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("Resume() when idle = %v, want ErrNotPlaying", err)
	}

	if err := h.engine.Start(context.Background(), fiveChunks(), true); err != nil {
		t.Fatal(err)
	}
	waitStarted(t, h.device)

	paused, err := h.engine.TogglePause()
	if err != nil || !paused {
		t.Fatalf("TogglePause() = %v, %v", paused, err)
	}
	if !h.device.Suspended() || !h.engine.Snapshot().Paused {
		t.Error("device should be suspended")
	}
	if !h.device.Active() {
		t.Error("pause must not stop the current source")
	}

	paused, err = h.engine.TogglePause()
	if err != nil || paused {
		t.Fatalf("TogglePause() = %v, %v", paused, err)
	}
	if h.device.Suspended() {
		t.Error("device should be resumed")
	}
	if h.engine.State() != StatePlaying {
		t.Errorf("State() = %v, want playing", h.engine.State())
	}
}

func TestDecodeFailureSkipsChunk(t *testing.T) {
	h := newHarness(t)
	h.device.PlayDuration = 2 * time.Millisecond
	h.synth.bad["Two"] = true
	sess := session.New("", chunk.Build("One. Two. Three.", 3))

	if err := h.engine.Start(context.Background(), sess, true); err != nil {
		t.Fatal(err)
	}
	h.events.waitFor(t, ActionPlaybackFinished, 1)

	shown := h.cursor.shows()
	if len(shown) != 2 || shown[0] != 0 || shown[1] != 2 {
		t.Errorf("highlighted chunks = %v, want [0 2]", shown)
	}
	if n := len(h.events.of(ActionPlaybackError)); n != 0 {
		t.Errorf("skipped chunk produced %d error events", n)
	}
}

func TestDecodeFailureOnLastChunkIsFatal(t *testing.T) {
	h := newHarness(t)
	h.synth.bad["Only"] = true

	if err := h.engine.Start(context.Background(), session.New("", chunk.Build("Only.", 100)), true); err != nil {
		t.Fatal(err)
	}
	evs := h.events.waitFor(t, ActionPlaybackError, 1)

	if !strings.Contains(evs[0].Error, "decode") {
		t.Errorf("error event = %q, want a decode failure", evs[0].Error)
	}
	if h.engine.State() != StateErrored {
		t.Errorf("State() = %v, want errored", h.engine.State())
	}
	if len(h.events.of(ActionPlaybackFinished)) != 0 {
		t.Error("failed playback must not report finished")
	}
	if h.device.Starts() != 0 {
		t.Error("nothing should have been played")
	}
}

func TestFetchFailureHaltsPlayback(t *testing.T) {
	h := newHarness(t)
	h.synth.fail["Three"] = &speech.NetworkError{StatusCode: 503, Status: "Service Unavailable", Body: "busy"}
	sess := fiveChunks()

	err := h.engine.Start(context.Background(), sess, true)
	var netErr *speech.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Start() error = %v, want *speech.NetworkError", err)
	}

	evs := h.events.waitFor(t, ActionPlaybackError, 1)
	if evs[0].Error != err.Error() {
		t.Errorf("event error = %q, want %q", evs[0].Error, err.Error())
	}
	if h.engine.State() != StateErrored {
		t.Errorf("State() = %v", h.engine.State())
	}
	if h.device.Active() {
		t.Error("active source should be halted")
	}
	if calls := h.synth.calls(); len(calls) != 3 {
		t.Errorf("fetches = %q, remaining chunks should not be requested", calls)
	}
	if q := h.engine.Snapshot().Queued; q != 0 {
		t.Errorf("queue holds %d jobs after failure", q)
	}
}

func TestLateFetchForStoppedSessionIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.synth.gate = make(chan struct{})
	called := make(chan struct{}, 1)
	h.synth.onCall = func(string) { called <- struct{}{} }

	done := make(chan error, 1)
	go func() {
		done <- h.engine.Start(context.Background(), fiveChunks(), true)
	}()

	<-called
	h.engine.Stop()
	close(h.synth.gate)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return")
	}

	if n := len(h.events.of(ActionUpdateProgress)); n != 0 {
		t.Errorf("stale fetch reported progress %d times", n)
	}
	if h.device.Starts() != 0 {
		t.Error("stale audio was played")
	}
	if h.engine.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", h.engine.State())
	}
}

func TestPlayAfterFetchingWithoutAutoPlay(t *testing.T) {
	h := newHarness(t)
	h.device.PlayDuration = 2 * time.Millisecond

	if err := h.engine.Start(context.Background(), session.New("", chunk.Build("One. Two.", 3)), false); err != nil {
		t.Fatal(err)
	}
	if h.engine.State() != StateIdle || h.device.Starts() != 0 {
		t.Fatalf("State() = %v, starts = %d", h.engine.State(), h.device.Starts())
	}
	if q := h.engine.Snapshot().Queued; q != 2 {
		t.Errorf("Queued = %d, want 2", q)
	}

	if err := h.engine.Play(); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	h.events.waitFor(t, ActionPlaybackFinished, 1)
	if h.device.Starts() != 2 {
		t.Errorf("Starts() = %d, want 2", h.device.Starts())
	}
	if err := h.engine.Play(); !errors.Is(err, ErrNotPlaying) {
		t.Errorf("Play() after finish = %v", err)
	}
}

func TestEventJSON(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{ev: Event{Action: ActionUpdateProgress, Progress: 0}, want: `{"action":"updateProgress","progress":0}`},
		{ev: Event{Action: ActionPlaybackFinished}, want: `{"action":"playbackFinished"}`},
		{ev: Event{Action: ActionPlaybackError, Error: "boom"}, want: `{"action":"playbackError","error":"boom"}`},
		{
			ev:   Event{Action: ActionUpdateContentAnalysis, Analysis: session.Analysis{Chunks: 2, CurrentChunk: 1, TotalChars: 10}},
			want: `{"action":"updateContentAnalysis","data":{"chunks":2,"currentChunk":1,"totalChars":10}}`,
		},
		{ev: Event{Action: ActionStateChanged, State: StatePaused}, want: `{"action":"stateChanged","state":"paused"}`},
	}

	for _, tt := range tests {
		got, err := json.Marshal(tt.ev)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != tt.want {
			t.Errorf("Marshal(%s) = %s, want %s", tt.ev.Action, got, tt.want)
		}
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{from: StateIdle, to: StateFetching, want: true},
		{from: StateFetching, to: StatePlaying, want: true},
		{from: StatePlaying, to: StatePaused, want: true},
		{from: StatePaused, to: StatePlaying, want: true},
		{from: StateErrored, to: StateStopped, want: true},
		{from: StateFinished, to: StatePlaying, want: false},
		{from: StateIdle, to: StatePaused, want: false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPausedDeviceReleasedWhenPlaybackEnds(t *testing.T) {
	tests := []struct {
		name    string
		// end moves a paused engine out of Paused without Resume.
		end     func(t *testing.T, h *harness, gate chan struct{})
		failTwo bool
		want    State
	}{
		{
			name:    "fetch error",
			failTwo: true,
			end: func(t *testing.T, h *harness, gate chan struct{}) {
				gate <- struct{}{}
				h.events.waitFor(t, ActionPlaybackError, 1)
			},
			want: StateErrored,
		},
		{
			name: "finished",
			end: func(t *testing.T, h *harness, gate chan struct{}) {
				gate <- struct{}{}
				h.events.waitFor(t, ActionUpdateProgress, 2)
				if !h.device.End() {
					t.Fatal("no source to end")
				}
				// Chunk "Two" starts while paused; end it too.
				waitStarted(t, h.device)
				if !h.device.End() {
					t.Fatal("no second source to end")
				}
				h.events.waitFor(t, ActionPlaybackFinished, 1)
			},
			want: StateFinished,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			gate := make(chan struct{})
			h.synth.gate = gate
			if tt.failTwo {
				h.synth.fail["Two"] = errors.New("service unavailable")
			}

			done := h.engine.Launch(context.Background(), session.New("", chunk.Build("One. Two.", 3)), true)
			gate <- struct{}{}
			waitStarted(t, h.device)
			if err := h.engine.Pause(); err != nil {
				t.Fatalf("Pause() error = %v", err)
			}

			tt.end(t, h, gate)
			<-done

			if st := h.engine.State(); st != tt.want {
				t.Fatalf("State() = %v, want %v", st, tt.want)
			}
			if h.device.Suspended() {
				t.Errorf("device still suspended in state %v", tt.want)
			}

			h.synth.mu.Lock()
			h.synth.gate = nil
			h.synth.mu.Unlock()
			if err := h.engine.Start(context.Background(), session.New("", chunk.Build("Again.", 100)), true); err != nil {
				t.Fatal(err)
			}
			waitStarted(t, h.device)
			if h.device.Suspended() {
				t.Error("new session plays on a suspended device")
			}
			if st := h.engine.State(); st != StatePlaying {
				t.Errorf("State() = %v, want playing", st)
			}
		})
	}
}

func TestLaunchRegistersSessionBeforeReturning(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.synth.gate = gate

	sess := fiveChunks()
	done := h.engine.Launch(context.Background(), sess, true)
	if h.engine.Session() != sess {
		t.Fatal("Session() should be the launched session")
	}
	if st := h.engine.State(); st != StateFetching {
		t.Errorf("State() = %v, want fetching", st)
	}

	h.engine.Stop()
	close(gate)
	if err := <-done; err != nil {
		t.Errorf("fetch result = %v, want nil for a stopped session", err)
	}

	if st := h.engine.State(); st != StateStopped {
		t.Errorf("State() = %v, want stopped", st)
	}
	if n := h.device.Starts(); n != 0 {
		t.Errorf("%d sources started after stop", n)
	}
}
