package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/dgnsrekt/pageread/internal/playback"
)

// statusDisplay folds engine events into what the status bar shows.
type statusDisplay struct {
	state        playback.State
	currentChunk int
	totalChunks  int
	totalChars   int
	fetched      int // fetch progress in percent
	errorMessage string

	bar progress.Model
}

func newStatusDisplay() *statusDisplay {
	return &statusDisplay{
		state:        playback.StateIdle,
		currentChunk: -1,
		bar:          progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// update applies one engine event.
func (s *statusDisplay) update(ev playback.Event) {
	switch ev.Action {
	case playback.ActionStateChanged:
		s.state = ev.State
		if ev.State != playback.StateErrored {
			s.errorMessage = ""
		}
		if ev.State == playback.StateStopped {
			s.currentChunk = -1
			s.fetched = 0
		}

	case playback.ActionUpdateProgress:
		s.fetched = ev.Progress

	case playback.ActionUpdateContentAnalysis:
		s.totalChunks = ev.Analysis.Chunks
		s.totalChars = ev.Analysis.TotalChars
		s.currentChunk = ev.Analysis.CurrentChunk

	case playback.ActionHighlightChanged:
		s.currentChunk = ev.Chunk

	case playback.ActionPlaybackError:
		s.state = playback.StateErrored
		s.errorMessage = ev.Error

	case playback.ActionPlaybackFinished:
		s.state = playback.StateFinished
	}
}

// active reports whether a read is in progress.
func (s *statusDisplay) active() bool {
	switch s.state {
	case playback.StateFetching, playback.StatePlaying, playback.StatePaused:
		return true
	default:
		return false
	}
}

// position returns the playback position as a fraction.
func (s *statusDisplay) position() float64 {
	if s.totalChunks <= 0 || s.currentChunk < 0 {
		return 0
	}
	if s.state == playback.StateFinished {
		return 1
	}
	return float64(s.currentChunk) / float64(s.totalChunks)
}

// compactStatus returns the state indicator in the state's color.
func (s *statusDisplay) compactStatus() string {
	text := s.text()
	if text == "" {
		return ""
	}
	return lipgloss.NewStyle().Foreground(s.color()).Render(text)
}

// text returns the short state indicator for the status bar.
func (s *statusDisplay) text() string {
	var icon string
	switch s.state {
	case playback.StateFetching:
		icon = "⟳"
	case playback.StatePlaying:
		icon = "▶"
	case playback.StatePaused:
		icon = "⏸"
	case playback.StateStopped:
		icon = "◼"
	case playback.StateFinished:
		icon = "■"
	case playback.StateErrored:
		icon = "✗"
	default:
		return ""
	}

	status := icon
	if s.active() && s.totalChunks > 0 && s.currentChunk >= 0 {
		status += fmt.Sprintf(" %d/%d", s.currentChunk+1, s.totalChunks)
	}
	if s.state == playback.StateFetching || (s.active() && s.fetched > 0 && s.fetched < 100) {
		status += fmt.Sprintf(" fetched %d%%", s.fetched)
	}
	if s.state == playback.StateErrored && s.errorMessage != "" {
		status += " " + s.errorMessage
	}
	return status
}

func (s *statusDisplay) color() lipgloss.Color {
	switch s.state {
	case playback.StateFetching:
		return lipgloss.Color("#00AAFF") // Blue
	case playback.StatePlaying:
		return lipgloss.Color("#00FF00") // Green
	case playback.StatePaused:
		return lipgloss.Color("#FFFF00") // Yellow
	case playback.StateStopped:
		return lipgloss.Color("#FF8800") // Orange
	case playback.StateErrored:
		return lipgloss.Color("#FF0000") // Red
	default:
		return lipgloss.Color("#888888") // Gray
	}
}

// progressBar renders the playback position at the given width.
func (s *statusDisplay) progressBar(width int) string {
	if s.totalChunks <= 0 || width < 10 {
		return ""
	}
	s.bar.Width = width
	return s.bar.ViewAs(s.position())
}
