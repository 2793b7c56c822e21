package ui

import (
	"context"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/pageread/internal/page"
	"github.com/dgnsrekt/pageread/internal/reader"
)

type (
	responseMsg struct {
		action string
		resp   reader.Response
	}
	reloadMsg        struct{}
	documentMsg      struct{ doc *page.Document }
	errMsg           struct{ err error }
	statusTimeoutMsg struct{}
)

func (e errMsg) Error() string { return e.err.Error() }

// handleCmd sends req to the reader off the update loop.
func handleCmd(rd Handler, req reader.Request) tea.Cmd {
	return func() tea.Msg {
		log.Debug("Dispatching request", "action", req.Action, "direction", req.Direction)
		return responseMsg{action: req.Action, resp: rd.Handle(context.Background(), req)}
	}
}

// loadFileCmd parses the local file at path.
func loadFileCmd(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Error("Unable to read file", "file", path, "err", err)
			return errMsg{err}
		}
		doc, err := page.ParseString(string(data), page.DetectKind(path, data))
		if err != nil {
			return errMsg{err}
		}
		return documentMsg{doc: doc}
	}
}

func waitForStatusTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusTimeoutMsg{}
	}
}
