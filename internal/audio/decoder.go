package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Defaults for raw PCM payloads from the speech service.
const (
	DefaultSampleRate = 22050
	DefaultChannels   = 1
)

// DecodeError is returned when a payload is neither a supported container
// nor valid 16-bit PCM.
type DecodeError struct {
	Size      int
	Container error // container tier failure, if a container was detected
	Reason    string
}

func (e *DecodeError) Error() string {
	if e.Container != nil {
		return fmt.Sprintf("failed to decode audio (%d bytes): %s (container: %v)", e.Size, e.Reason, e.Container)
	}
	return fmt.Sprintf("failed to decode audio (%d bytes): %s", e.Size, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Container
}

var errNoContainer = errors.New("no recognized container header")

// Decoder turns raw payloads into sample buffers. Container formats are
// tried first; anything else is read as signed 16-bit little-endian PCM
// using the hinted sample rate and channel count.
type Decoder struct {
	SampleRate int
	Channels   int
}

// NewDecoder returns a decoder with the given PCM hints. Non-positive
// values fall back to 22050 Hz mono.
func NewDecoder(sampleRate, channels int) *Decoder {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	return &Decoder{SampleRate: sampleRate, Channels: channels}
}

// Decode converts raw into a Buffer.
func (d *Decoder) Decode(raw []byte) (*Buffer, error) {
	buf, containerErr := decodeContainer(raw)
	if containerErr == nil {
		return buf, nil
	}
	if !errors.Is(containerErr, errNoContainer) {
		// A header was present but the body did not decode; still give PCM a try.
		buf, pcmErr := d.decodePCM(raw)
		if pcmErr != nil {
			pcmErr.Container = containerErr
			return nil, pcmErr
		}
		return buf, nil
	}

	buf, pcmErr := d.decodePCM(raw)
	if pcmErr != nil {
		return nil, pcmErr
	}
	return buf, nil
}

func decodeContainer(raw []byte) (*Buffer, error) {
	switch {
	case isWAV(raw):
		return decodeWAV(raw)
	case isMP3(raw):
		return decodeMP3(raw)
	default:
		return nil, errNoContainer
	}
}

func isWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}

func isMP3(b []byte) bool {
	if len(b) >= 3 && string(b[0:3]) == "ID3" {
		return true
	}
	return len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0
}

func decodeWAV(raw []byte) (*Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(raw))
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav file")
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if pcm == nil || pcm.Format == nil || len(pcm.Data) == 0 {
		return nil, errors.New("wav: no samples")
	}

	bitDepth := pcm.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	return intBufferToFloat(pcm, bitDepth)
}

func intBufferToFloat(pcm *goaudio.IntBuffer, bitDepth int) (*Buffer, error) {
	if bitDepth <= 0 || bitDepth > 32 {
		return nil, fmt.Errorf("wav: unsupported bit depth %d", bitDepth)
	}

	samples := make([]float32, len(pcm.Data))
	if bitDepth == 8 {
		// 8-bit WAV is unsigned.
		for i, v := range pcm.Data {
			samples[i] = float32(v-128) / 128
		}
	} else {
		scale := float32(int64(1) << (bitDepth - 1))
		for i, v := range pcm.Data {
			samples[i] = float32(v) / scale
		}
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: pcm.Format.SampleRate,
		Channels:   pcm.Format.NumChannels,
	}, nil
}

func decodeMP3(raw []byte) (*Buffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	// go-mp3 always produces 16-bit little-endian stereo.
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	if len(pcm) < 4 {
		return nil, errors.New("mp3: no samples")
	}

	samples := int16ToFloat(pcm[:len(pcm)-len(pcm)%4])
	return &Buffer{
		Samples:    samples,
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}, nil
}

func (d *Decoder) decodePCM(raw []byte) (*Buffer, *DecodeError) {
	switch {
	case len(raw) == 0:
		return nil, &DecodeError{Reason: "empty payload"}
	case len(raw)%2 != 0:
		return nil, &DecodeError{Size: len(raw), Reason: "odd byte count for 16-bit PCM"}
	case (len(raw)/2)%d.Channels != 0:
		return nil, &DecodeError{
			Size:   len(raw),
			Reason: fmt.Sprintf("%d samples do not divide into %d channels", len(raw)/2, d.Channels),
		}
	}

	return &Buffer{
		Samples:    int16ToFloat(raw),
		SampleRate: d.SampleRate,
		Channels:   d.Channels,
	}, nil
}

func int16ToFloat(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(b[2*i:]))) / 32768
	}
	return out
}
