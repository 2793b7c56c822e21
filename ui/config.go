package ui

// Config contains TUI-specific configuration.
type Config struct {
	// Path is the local file being read, empty for URLs and stdin.
	Path string
	// Note names the source in the status bar.
	Note string

	// AutoRead starts reading as soon as the program starts.
	AutoRead bool

	MaxWidth uint

	// For debugging the UI
	EnableMouse     bool `env:"PAGEREAD_MOUSE"`
	ShowProgressBar bool `env:"PAGEREAD_PROGRESS_BAR" envDefault:"true"`
}
