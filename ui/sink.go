package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/pageread/internal/playback"
)

const sinkBuffer = 256

type eventMsg playback.Event

// Sink forwards engine events into a running program in order. Events
// emitted before Attach are buffered.
type Sink struct {
	mu     sync.Mutex
	events chan playback.Event
	closed bool
}

// NewSink returns an unattached sink.
func NewSink() *Sink {
	return &Sink{events: make(chan playback.Event, sinkBuffer)}
}

// Attach starts delivering events to p.
func (s *Sink) Attach(p *tea.Program) {
	go func() {
		for ev := range s.events {
			p.Send(eventMsg(ev))
		}
	}()
}

// Emit implements playback.EventSink.
func (s *Sink) Emit(ev playback.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		log.Warn("UI event buffer full, dropping event", "action", ev.Action)
	}
}

// Close stops delivery. Later events are dropped.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}
