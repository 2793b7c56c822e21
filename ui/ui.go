// Package ui provides the terminal reader: the page in a pager with the
// spoken chunk highlighted, and keys that drive playback.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/pageread/internal/page"
	"github.com/dgnsrekt/pageread/internal/playback"
	"github.com/dgnsrekt/pageread/internal/reader"
)

const (
	statusMessageTimeout = time.Second * 3
	ellipsis             = "…"
)

var errNoDocument = errors.New("nothing to read")

var (
	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1F1F1")).
			Background(lipgloss.Color("#FF5F87")).
			Bold(true).
			Padding(0, 1)

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
)

// Reader is the part of the reader the UI drives.
type Reader interface {
	Handle(ctx context.Context, req reader.Request) reader.Response
	Document() *page.Document
	SetDocument(doc *page.Document)
}

// Handler answers a single request.
type Handler interface {
	Handle(ctx context.Context, req reader.Request) reader.Response
}

// NewProgram returns a new Tea program over rd. Route engine events into it
// with a Sink.
func NewProgram(cfg Config, rd Reader) *tea.Program {
	log.Debug("Starting reader UI", "path", cfg.Path, "auto_read", cfg.AutoRead)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, rd), opts...)
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg    Config
	width  int
	height int
}

type model struct {
	common   *commonModel
	reader   Reader
	pager    pagerModel
	status   *statusDisplay
	fatalErr error
}

func newModel(cfg Config, rd Reader) model {
	common := &commonModel{cfg: cfg}
	m := model{
		common: common,
		reader: rd,
		pager:  newPagerModel(common),
		status: newStatusDisplay(),
	}
	if rd.Document() == nil {
		m.fatalErr = errNoDocument
	}
	return m
}

func (m model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.common.cfg.AutoRead {
		cmds = append(cmds, handleCmd(m.reader, reader.Request{Action: reader.ActionRead}))
	}
	if m.common.cfg.Path != "" {
		cmds = append(cmds, m.pager.watchFile)
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if req, ok := m.keyRequest(msg.String()); ok {
			return m, handleCmd(m.reader, req)
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.pager.unload()
			return m, tea.Quit

		case "ctrl+z":
			return m, tea.Suspend

		case "c":
			if doc := m.reader.Document(); doc != nil {
				return m, m.pager.copyText(doc.ExtractArticle())
			}
		}

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.pager.setSize(msg.Width, msg.Height)
		m.pager.render(m.reader.Document(), true)

	case eventMsg:
		ev := playback.Event(msg)
		m.status.update(ev)
		switch ev.Action {
		case playback.ActionHighlightChanged, playback.ActionStateChanged, playback.ActionPlaybackFinished:
			m.pager.render(m.reader.Document(), false)
		case playback.ActionPlaybackError:
			cmds = append(cmds, m.pager.showStatusMessage(statusMessage{ev.Error, true}))
		}

	case responseMsg:
		log.Debug("Response", "action", msg.action, "success", msg.resp.Success, "message", msg.resp.Message)
		cmds = append(cmds, m.pager.showStatusMessage(statusMessage{msg.resp.Message, !msg.resp.Success}))
		m.pager.render(m.reader.Document(), false)

	// The file was changed on disk and we're reloading it
	case reloadMsg:
		return m, tea.Batch(loadFileCmd(m.common.cfg.Path), m.pager.watchFile)

	case documentMsg:
		// Marks of the running session belong to the old document.
		m.reader.Handle(context.Background(), reader.Request{Action: reader.ActionStop})
		m.reader.SetDocument(msg.doc)
		m.pager.render(msg.doc, true)
		cmds = append(cmds, m.pager.showStatusMessage(statusMessage{"Reloaded", false}))

	case statusTimeoutMsg:
		m.pager.state = pagerStateBrowse

	case errMsg:
		cmds = append(cmds, m.pager.showStatusMessage(statusMessage{msg.Error(), true}))
	}

	newPager, cmd := m.pager.update(msg)
	m.pager = newPager
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// keyRequest maps a key to a reader request.
func (m model) keyRequest(key string) (reader.Request, bool) {
	switch key {
	case " ":
		if m.status.active() {
			return reader.Request{Action: reader.ActionPause}, true
		}
		return reader.Request{Action: reader.ActionRead}, true
	case "alt+right", "n":
		return reader.Request{Action: reader.ActionNavigate, Direction: 1}, true
	case "alt+left", "p":
		return reader.Request{Action: reader.ActionNavigate, Direction: -1}, true
	case "s":
		return reader.Request{Action: reader.ActionStop}, true
	case "r":
		return reader.Request{Action: reader.ActionRead}, true
	case "v":
		return reader.Request{Action: reader.ActionReadSelected}, true
	case "a":
		return reader.Request{Action: reader.ActionAnalyze}, true
	default:
		return reader.Request{}, false
	}
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}
	return m.pager.view(m.status)
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
