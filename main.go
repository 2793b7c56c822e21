// Package main provides the entry point for the pageread CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/pageread/internal/playback"
	"github.com/dgnsrekt/pageread/internal/reader"
	"github.com/dgnsrekt/pageread/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	width      uint
	mouse      bool
	headless   bool

	rootCmd = &cobra.Command{
		Use:   "pageread [SOURCE]",
		Short: "Read web pages and documents aloud",
		Long: paragraph(
			fmt.Sprintf("\nRead pages aloud with %s, highlighting each passage as it is spoken.", keyword("a local Kokoro voice")),
		),
		Example: paragraph("pageread article.html\npageread https://example.com/post\ncurl -s https://example.com | pageread -"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	if err := validateSettings(); err != nil {
		return err
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") && width == 0 {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = uint(min(w, 120)) //nolint:gosec
		}
	}
	return nil
}

func execute(cmd *cobra.Command, args []string) error {
	arg, err := resolveArg(args)
	if err != nil {
		return err
	}
	src, err := sourceFromArg(cmd.Context(), arg)
	if err != nil {
		return err
	}

	if headless || !term.IsTerminal(int(os.Stdout.Fd())) {
		return runHeadless(cmd.Context(), src)
	}
	return runTUI(src)
}

func runTUI(src *source) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	cfg.Path = src.path
	cfg.Note = src.note
	cfg.MaxWidth = width
	cfg.EnableMouse = cfg.EnableMouse || mouse
	cfg.AutoRead = viper.GetBool("reader.auto_play")

	a, err := newApp(loadSettings())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("Shutdown failed", "err", err)
		}
	}()
	a.reader.SetDocument(src.doc)
	a.reader.SetSelectionSource(ui.ClipboardSelection{})
	a.watchConfig()

	sink := ui.NewSink()
	a.events.Add(sink)
	defer sink.Close()

	p := ui.NewProgram(cfg, a.reader)
	sink.Attach(p)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

// runHeadless reads the page without a UI and returns when playback ends.
func runHeadless(ctx context.Context, src *source) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(loadSettings())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("Shutdown failed", "err", err)
		}
	}()
	a.reader.SetDocument(src.doc)

	out := log.NewWithOptions(os.Stderr, log.Options{Prefix: "pageread"})
	done := make(chan error, 1)
	a.events.Add(playback.SinkFunc(func(ev playback.Event) {
		switch ev.Action {
		case playback.ActionHighlightChanged:
			out.Info("Reading", "chunk", ev.Chunk+1)
		case playback.ActionPlaybackFinished:
			select {
			case done <- nil:
			default:
			}
		case playback.ActionPlaybackError:
			select {
			case done <- errors.New(ev.Error):
			default:
			}
		}
	}))

	autoPlay := true
	resp := a.reader.Handle(ctx, reader.Request{Action: reader.ActionRead, AutoPlay: &autoPlay})
	if !resp.Success {
		return errors.New(resp.Message)
	}
	out.Info(resp.Message)

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return nil
	}
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().String("api-url", "", "speech service URL")
	rootCmd.PersistentFlags().String("voice", "", "voice name")
	rootCmd.PersistentFlags().Float64("speed", 0, "speaking speed")
	rootCmd.PersistentFlags().String("format", "", "audio format (pcm, wav, mp3)")
	rootCmd.PersistentFlags().Int("chunk-size", 0, "maximum characters per spoken chunk")
	rootCmd.PersistentFlags().Bool("cache", false, "cache synthesized audio")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to use the terminal width)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "read without the TUI")
	rootCmd.Flags().Bool("include-selected", false, "read the clipboard selection instead of the page when one is present")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("api.voice", rootCmd.PersistentFlags().Lookup("voice"))
	_ = viper.BindPFlag("api.speed", rootCmd.PersistentFlags().Lookup("speed"))
	_ = viper.BindPFlag("api.format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("reader.chunk_size", rootCmd.PersistentFlags().Lookup("chunk-size"))
	_ = viper.BindPFlag("cache.enabled", rootCmd.PersistentFlags().Lookup("cache"))
	_ = viper.BindPFlag("reader.include_selected", rootCmd.Flags().Lookup("include-selected"))

	rootCmd.AddCommand(configCmd, manCmd, serveCmd, analyzeCmd, extractCmd, healthCmd, voicesCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	setDefaults()

	scope := gap.NewScope(gap.User, "pageread")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "pageread")}, dirs...)
	}

	if c := os.Getenv("PAGEREAD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("pageread")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("pageread")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "pageread.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
