package ui

import (
	"github.com/atotto/clipboard"
)

// ClipboardSelection reads the selection from the system clipboard.
type ClipboardSelection struct{}

// Selection implements reader.SelectionSource.
func (ClipboardSelection) Selection() (string, error) {
	return clipboard.ReadAll()
}
