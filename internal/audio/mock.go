package audio

import (
	"sync"
	"time"
)

// MockDevice is an in-memory Device for tests. Sources end after
// PlayDuration, or only through End/Stop when PlayDuration is zero.
type MockDevice struct {
	PlayDuration time.Duration

	// OnStart is called with each started buffer.
	OnStart func(buf *Buffer)

	mu         sync.Mutex
	active     *mockSource
	closed     bool
	suspended  bool
	starts     int
	busyErrors int
	suspends   int
	resumes    int
	started    chan struct{}
}

// NewMockDevice returns a mock device whose sources end only when told to.
func NewMockDevice() *MockDevice {
	return &MockDevice{started: make(chan struct{}, 64)}
}

// Start records buf as the active source.
func (m *MockDevice) Start(buf *Buffer) (Source, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrDeviceClosed
	}
	if m.active != nil && !m.active.ended() {
		m.busyErrors++
		m.mu.Unlock()
		return nil, ErrDeviceBusy
	}

	src := &mockSource{dev: m, buf: buf, done: make(chan struct{})}
	m.active = src
	m.starts++
	onStart := m.OnStart
	d := m.PlayDuration
	m.mu.Unlock()

	if onStart != nil {
		onStart(buf)
	}
	if d > 0 {
		go src.run(d)
	}
	select {
	case m.started <- struct{}{}:
	default:
	}
	return src, nil
}

// Suspend pauses the clock of the mock device.
func (m *MockDevice) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = true
	m.suspends++
	return nil
}

// Resume restarts the clock of the mock device.
func (m *MockDevice) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = false
	m.resumes++
	return nil
}

// Close stops the active source and rejects further starts.
func (m *MockDevice) Close() error {
	m.mu.Lock()
	src := m.active
	m.closed = true
	m.mu.Unlock()

	if src != nil {
		src.Stop()
	}
	return nil
}

// End finishes the active source as if its audio ran out. It reports
// whether a source was playing.
func (m *MockDevice) End() bool {
	m.mu.Lock()
	src := m.active
	m.mu.Unlock()

	if src == nil || src.ended() {
		return false
	}
	src.finish()
	return true
}

// Started delivers one value per started source.
func (m *MockDevice) Started() <-chan struct{} {
	return m.started
}

// Active reports whether a source is currently playing.
func (m *MockDevice) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil && !m.active.ended()
}

// Suspended reports whether the clock is suspended.
func (m *MockDevice) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

// Starts returns how many sources were started.
func (m *MockDevice) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// BusyErrors returns how many starts were refused because a source was
// still active.
func (m *MockDevice) BusyErrors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busyErrors
}

// Counts returns the number of Suspend and Resume calls.
func (m *MockDevice) Counts() (suspends, resumes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspends, m.resumes
}

type mockSource struct {
	dev  *MockDevice
	buf  *Buffer
	done chan struct{}
	once sync.Once
}

func (s *mockSource) Done() <-chan struct{} { return s.done }

func (s *mockSource) Stop() { s.finish() }

func (s *mockSource) ended() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *mockSource) finish() {
	s.once.Do(func() { close(s.done) })
}

// run ends the source after d of unsuspended time.
func (s *mockSource) run(d time.Duration) {
	const tick = time.Millisecond
	var played time.Duration
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for played < d {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if !s.dev.Suspended() {
				played += tick
			}
		}
	}
	s.finish()
}
