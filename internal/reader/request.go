package reader

import (
	"github.com/dgnsrekt/pageread/internal/session"
)

// Actions accepted by Handle.
const (
	ActionRead         = "read"
	ActionReadSelected = "readSelected"
	ActionAnalyze      = "analyze"
	ActionExtract      = "extract"
	ActionNavigate     = "navigate"
	ActionPause        = "pause"
	ActionStop         = "stop"
)

// Request is an inbound control message. Zero values fall back to the
// reader configuration.
type Request struct {
	Action    string `json:"action"`
	Direction int    `json:"direction,omitempty"`

	ChunkSize       int     `json:"chunkSize,omitempty"`
	Voice           string  `json:"voice,omitempty"`
	Speed           float64 `json:"speed,omitempty"`
	AudioFormat     string  `json:"audioFormat,omitempty"`
	AutoPlay        *bool   `json:"autoPlay,omitempty"`
	HighlightText   *bool   `json:"highlightText,omitempty"`
	IncludeSelected *bool   `json:"includeSelected,omitempty"`

	// Selection is the text the user selected on the page.
	Selection string `json:"selection,omitempty"`

	// At most one page source replaces the current document.
	HTML     string `json:"html,omitempty"`
	Markdown string `json:"markdown,omitempty"`
	Text     string `json:"text,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Response answers a Request.
type Response struct {
	Success         bool              `json:"success"`
	Message         string            `json:"message"`
	ContentAnalysis *session.Analysis `json:"contentAnalysis,omitempty"`
}

func fail(msg string) Response {
	return Response{Success: false, Message: msg}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
