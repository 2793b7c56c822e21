package server

import (
	"encoding/json"

	"github.com/dgnsrekt/pageread/internal/playback"
	"github.com/dgnsrekt/pageread/internal/reader"
)

// Frame types.
const (
	FrameResponse = "response"
	FrameEvent    = "event"
)

// requestFrame is an inbound request tagged with a client-chosen id.
type requestFrame struct {
	ID string `json:"id"`
	reader.Request
}

type responseFrame struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	reader.Response
}

func newResponseFrame(id string, resp reader.Response) responseFrame {
	return responseFrame{Type: FrameResponse, ID: id, Response: resp}
}

// eventFrame encodes ev with the event frame type added.
func eventFrame(ev playback.Event) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	m["type"] = FrameEvent
	return json.Marshal(m)
}
