package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// endPollInterval is how often a source checks whether oto has drained it.
const endPollInterval = 20 * time.Millisecond

// OtoConfig configures the oto output device.
type OtoConfig struct {
	SampleRate int           // 44100 or 48000 Hz
	Channels   int           // 1 = mono, 2 = stereo
	BufferSize time.Duration // device buffer; 0 lets oto choose
}

// DefaultOtoConfig returns the default device configuration.
func DefaultOtoConfig() OtoConfig {
	return OtoConfig{
		SampleRate: 44100,
		Channels:   1,
	}
}

// OtoDevice plays buffers through oto. oto allows a single context per
// process, so create one device and share it.
type OtoDevice struct {
	context    *oto.Context
	sampleRate int
	channels   int

	mu     sync.Mutex
	active *otoSource
	closed bool
}

// NewOtoDevice opens the system audio output.
func NewOtoDevice(cfg OtoConfig) (*OtoDevice, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   cfg.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	return &OtoDevice{
		context:    ctx,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
	}, nil
}

func validateConfig(cfg OtoConfig) error {
	if cfg.SampleRate != 44100 && cfg.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", cfg.SampleRate)
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", cfg.Channels)
	}
	if cfg.BufferSize < 0 {
		return fmt.Errorf("buffer size must not be negative, got %s", cfg.BufferSize)
	}
	return nil
}

// Start converts buf to the device format and starts playing it.
func (d *OtoDevice) Start(buf *Buffer) (Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrDeviceClosed
	}
	if d.active != nil && !d.active.ended() {
		return nil, ErrDeviceBusy
	}

	// The byte slice must stay referenced until the player has drained it.
	data := encodeFloat32(convert(buf, d.sampleRate, d.channels))

	src := &otoSource{
		player: d.context.NewPlayer(bytes.NewReader(data)),
		data:   data,
		done:   make(chan struct{}),
	}
	src.player.Play()
	go src.watch()

	d.active = src
	return src, nil
}

// Suspend pauses the whole output clock.
func (d *OtoDevice) Suspend() error {
	if err := d.context.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend audio device: %w", err)
	}
	return nil
}

// Resume restarts the output clock where it was suspended.
func (d *OtoDevice) Resume() error {
	if err := d.context.Resume(); err != nil {
		return fmt.Errorf("failed to resume audio device: %w", err)
	}
	return nil
}

// Close stops the active source. The oto context itself lives until exit.
func (d *OtoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active != nil {
		d.active.Stop()
		d.active = nil
	}
	d.closed = true
	return nil
}

type otoSource struct {
	player *oto.Player
	data   []byte

	done chan struct{}
	once sync.Once
}

func (s *otoSource) Done() <-chan struct{} { return s.done }

func (s *otoSource) Stop() {
	s.finish(true)
}

func (s *otoSource) ended() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// watch reports natural end once oto has consumed the whole buffer. While
// the context is suspended the player keeps reporting that it is playing.
func (s *otoSource) watch() {
	ticker := time.NewTicker(endPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if !s.player.IsPlaying() {
				s.finish(false)
				return
			}
		}
	}
}

func (s *otoSource) finish(halt bool) {
	s.once.Do(func() {
		if halt {
			s.player.Pause()
		}
		_ = s.player.Close()
		s.data = nil
		close(s.done)
	})
}

func encodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}
