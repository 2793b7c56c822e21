package playback

import (
	"encoding/json"

	"github.com/dgnsrekt/pageread/internal/session"
)

// Outbound event actions.
const (
	ActionUpdateProgress        = "updateProgress"
	ActionUpdateContentAnalysis = "updateContentAnalysis"
	ActionPlaybackFinished      = "playbackFinished"
	ActionPlaybackError         = "playbackError"
	ActionContentExtracted      = "contentExtracted"
	ActionHighlightChanged      = "highlightChanged"
	ActionStateChanged          = "stateChanged"
)

// Event is a fire-and-forget notification for clients. Only the fields
// that belong to Action are serialized.
type Event struct {
	Action    string
	Progress  int
	Analysis  session.Analysis
	Error     string
	CharCount int
	Chunk     int
	Text      string
	State     State
}

// MarshalJSON encodes the event in its wire form.
func (e Event) MarshalJSON() ([]byte, error) {
	m := map[string]any{"action": e.Action}
	switch e.Action {
	case ActionUpdateProgress:
		m["progress"] = e.Progress
	case ActionUpdateContentAnalysis:
		m["data"] = e.Analysis
	case ActionPlaybackError:
		m["error"] = e.Error
	case ActionContentExtracted:
		m["charCount"] = e.CharCount
		m["analysis"] = e.Analysis
	case ActionHighlightChanged:
		m["chunk"] = e.Chunk
		m["text"] = e.Text
	case ActionStateChanged:
		m["state"] = e.State.String()
	}
	return json.Marshal(m)
}

// EventSink receives engine events. Emit is called without engine locks
// held and should not block for long.
type EventSink interface {
	Emit(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev Event) { f(ev) }

// Fanout delivers every event to each sink in order.
type Fanout []EventSink

// Emit forwards ev to all sinks.
func (f Fanout) Emit(ev Event) {
	for _, s := range f {
		if s != nil {
			s.Emit(ev)
		}
	}
}

type discard struct{}

func (discard) Emit(Event) {}
