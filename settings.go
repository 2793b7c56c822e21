package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/pageread/internal/audio"
	"github.com/dgnsrekt/pageread/internal/cache"
	"github.com/dgnsrekt/pageread/internal/playback"
	"github.com/dgnsrekt/pageread/internal/reader"
	"github.com/dgnsrekt/pageread/internal/speech"
)

// settings is the resolved configuration of one run.
type settings struct {
	Speech speech.Config
	Params speech.Params
	Reader reader.Config
	Engine playback.Config
	Device audio.OtoConfig

	SampleRate int
	Channels   int

	CacheEnabled bool
	Cache        cache.Config

	ServerAddr string
}

func setDefaults() {
	viper.SetDefault("api.url", "http://localhost:8880")
	viper.SetDefault("api.model", "kokoro")
	viper.SetDefault("api.voice", "af_heart")
	viper.SetDefault("api.speed", 1.0)
	viper.SetDefault("api.format", string(speech.FormatPCM))
	viper.SetDefault("api.lang_code", "a")
	viper.SetDefault("api.timeout", 60*time.Second)
	viper.SetDefault("api.requests_per_minute", 0)

	viper.SetDefault("reader.chunk_size", 500)
	viper.SetDefault("reader.auto_play", true)
	viper.SetDefault("reader.highlight", true)
	viper.SetDefault("reader.include_selected", false)

	viper.SetDefault("audio.sample_rate", audio.DefaultSampleRate)
	viper.SetDefault("audio.channels", audio.DefaultChannels)
	viper.SetDefault("audio.device_rate", 44100)
	viper.SetDefault("audio.inter_chunk_delay", 50*time.Millisecond)
	viper.SetDefault("audio.retry_delay", 100*time.Millisecond)

	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.dir", "")
	viper.SetDefault("cache.memory_entries", 256)
	viper.SetDefault("cache.disk_mb", 256)
	viper.SetDefault("cache.compression", 3)

	viper.SetDefault("server.addr", "127.0.0.1:8765")
}

// validateSettings checks the configured values.
func validateSettings() error {
	if speed := viper.GetFloat64("api.speed"); speed < 0.25 || speed > 4.0 {
		return fmt.Errorf("api speed must be between 0.25 and 4.0, got %.2f", speed)
	}
	switch f := speech.Format(viper.GetString("api.format")); f {
	case speech.FormatPCM, speech.FormatWAV, speech.FormatMP3:
	default:
		return fmt.Errorf("unsupported audio format %q: use pcm, wav or mp3", f)
	}
	if size := viper.GetInt("reader.chunk_size"); size < 50 {
		return fmt.Errorf("chunk size must be at least 50, got %d", size)
	}
	if viper.GetString("api.url") == "" {
		return errors.New("api url cannot be empty")
	}
	return nil
}

func loadSettings() settings {
	params := speech.Params{
		Voice:  viper.GetString("api.voice"),
		Speed:  viper.GetFloat64("api.speed"),
		Format: speech.Format(viper.GetString("api.format")),
	}

	return settings{
		Speech: speech.Config{
			BaseURL:           viper.GetString("api.url"),
			Model:             viper.GetString("api.model"),
			LangCode:          viper.GetString("api.lang_code"),
			Timeout:           viper.GetDuration("api.timeout"),
			RequestsPerMinute: viper.GetInt("api.requests_per_minute"),
			Logger:            log.Default().WithPrefix("speech"),
		},
		Params: params,
		Reader: reader.Config{
			ChunkSize:       viper.GetInt("reader.chunk_size"),
			AutoPlay:        viper.GetBool("reader.auto_play"),
			Highlight:       viper.GetBool("reader.highlight"),
			IncludeSelected: viper.GetBool("reader.include_selected"),
			Logger:          log.Default().WithPrefix("reader"),
		},
		Engine: playback.Config{
			Params:          params,
			InterChunkDelay: viper.GetDuration("audio.inter_chunk_delay"),
			RetryDelay:      viper.GetDuration("audio.retry_delay"),
			Logger:          log.Default().WithPrefix("engine"),
		},
		Device: audio.OtoConfig{
			SampleRate: viper.GetInt("audio.device_rate"),
			Channels:   viper.GetInt("audio.channels"),
		},
		SampleRate:   viper.GetInt("audio.sample_rate"),
		Channels:     viper.GetInt("audio.channels"),
		CacheEnabled: viper.GetBool("cache.enabled"),
		Cache: cache.Config{
			MemoryEntries:    viper.GetInt("cache.memory_entries"),
			DiskPath:         cacheDir(),
			DiskCapacity:     viper.GetInt64("cache.disk_mb") << 20,
			CompressionLevel: viper.GetInt("cache.compression"),
		},
		ServerAddr: viper.GetString("server.addr"),
	}
}

// cacheDir returns the disk cache directory, defaulting to the user cache
// dir.
func cacheDir() string {
	if dir := viper.GetString("cache.dir"); dir != "" {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			log.Warn("Could not expand cache dir", "dir", dir, "err", err)
			return dir
		}
		return expanded
	}

	dir, err := gap.NewScope(gap.User, "pageread").CacheDir()
	if err != nil {
		log.Warn("Could not find cache directory", "err", err)
		return ""
	}
	return filepath.Join(dir, "audio")
}
