package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/pageread/internal/audio"
	"github.com/dgnsrekt/pageread/internal/cache"
	"github.com/dgnsrekt/pageread/internal/playback"
	"github.com/dgnsrekt/pageread/internal/reader"
	"github.com/dgnsrekt/pageread/internal/speech"
)

// eventRelay fans engine events out to sinks added after the engine was
// built.
type eventRelay struct {
	mu    sync.RWMutex
	sinks playback.Fanout
}

func (r *eventRelay) Add(s playback.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, s)
}

func (r *eventRelay) Emit(ev playback.Event) {
	r.mu.RLock()
	sinks := r.sinks
	r.mu.RUnlock()
	sinks.Emit(ev)
}

// app wires the speech client, cache, output device, engine and reader.
type app struct {
	client *speech.Client
	cache  *cache.Manager
	device *audio.OtoDevice
	engine *playback.Engine
	reader *reader.Reader
	events *eventRelay
}

func newApp(s settings) (*app, error) {
	client, err := speech.NewClient(s.Speech)
	if err != nil {
		return nil, fmt.Errorf("unable to create speech client: %w", err)
	}

	a := &app{client: client, events: &eventRelay{}}

	var synth speech.Synthesizer = client
	if s.CacheEnabled {
		a.cache, err = cache.NewManager(s.Cache)
		if err != nil {
			return nil, fmt.Errorf("unable to open audio cache: %w", err)
		}
		synth = speech.WithCache(client, a.cache)
	}

	a.device, err = audio.NewOtoDevice(s.Device)
	if err != nil {
		_ = a.closeCache()
		return nil, fmt.Errorf("unable to open audio output: %w", err)
	}

	decoder := audio.NewDecoder(s.SampleRate, s.Channels)
	a.engine = playback.NewEngine(synth, decoder, a.device, a.events, s.Engine)
	a.reader = reader.New(a.engine, a.events, s.Reader)

	log.Debug("Reader ready",
		"api", client.BaseURL(),
		"voice", s.Params.Voice,
		"speed", s.Params.Speed,
		"format", s.Params.Format,
		"cache", s.CacheEnabled)
	return a, nil
}

// watchConfig re-applies the voice settings when the config file changes.
func (a *app) watchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		s := loadSettings()
		log.Info("Configuration reloaded", "file", e.Name, "voice", s.Params.Voice, "speed", s.Params.Speed)
		a.engine.SetParams(s.Params)
	})
	viper.WatchConfig()
}

func (a *app) closeCache() error {
	if a.cache == nil {
		return nil
	}
	mem, disk, promotions := a.cache.Stats()
	log.Info("Audio cache",
		"memory_hit_rate", fmt.Sprintf("%.0f%%", mem.HitRate()*100),
		"disk_size", humanize.Bytes(uint64(max(0, disk.Size))), //nolint:gosec
		"promotions", promotions)
	return a.cache.Close() //nolint:wrapcheck
}

// Close stops playback and releases the device and cache.
func (a *app) Close() error {
	a.reader.Close()
	return errors.Join(a.device.Close(), a.closeCache())
}
