package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# speech service
api:
  # base URL of the Kokoro-compatible service
  url: "http://localhost:8880"
  model: "kokoro"
  voice: "af_heart"
  # 0.25 to 4.0
  speed: 1.0
  # pcm, wav or mp3
  format: "pcm"
  lang_code: "a"
  timeout: "60s"
  # 0 disables the limit
  requests_per_minute: 0

reader:
  # maximum characters per spoken chunk
  chunk_size: 500
  auto_play: true
  highlight: true
  # read the selection instead of the page when one is present
  include_selected: false

audio:
  # rate and channels of raw pcm from the service
  sample_rate: 22050
  channels: 1
  # output device rate (44100 or 48000)
  device_rate: 44100
  inter_chunk_delay: "50ms"
  retry_delay: "100ms"

# cache synthesized audio in memory and on disk
cache:
  enabled: false
  # defaults to the user cache dir
  dir: ""
  memory_entries: 256
  disk_mb: 256
  # zstd level, 0 disables compression
  compression: 3

server:
  addr: "127.0.0.1:8765"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the pageread config file",
	Long:    paragraph(fmt.Sprintf("\n%s the pageread config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("pageread config\npageread config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("pageread", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
