package audio

import "errors"

var (
	// ErrDeviceBusy is returned by Start while another source is active.
	ErrDeviceBusy = errors.New("audio device already has an active source")

	// ErrDeviceClosed is returned after Close.
	ErrDeviceClosed = errors.New("audio device is closed")
)

// Device is an audio output with one shared clock. Suspend and Resume act on
// the whole device, so an active source keeps its position across a pause.
type Device interface {
	// Start begins playing buf. It fails with ErrDeviceBusy unless the
	// previous source has ended or been stopped.
	Start(buf *Buffer) (Source, error)
	Suspend() error
	Resume() error
	Close() error
}

// Source is one buffer playing on a Device.
type Source interface {
	// Done is closed when the source ends, naturally or through Stop.
	Done() <-chan struct{}

	// Stop halts the source. Stopping an ended source is a no-op.
	Stop()
}
