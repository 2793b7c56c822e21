package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"
)

func pcmBytes(samples []int16) []byte {
	var b bytes.Buffer
	for _, s := range samples {
		_ = binary.Write(&b, binary.LittleEndian, s)
	}
	return b.Bytes()
}

// wavBytes builds a minimal 16-bit PCM WAV file.
func wavBytes(rate, channels int, samples []int16) []byte {
	data := pcmBytes(samples)
	var b bytes.Buffer
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+len(data)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))
	_ = binary.Write(&b, binary.LittleEndian, uint16(1))
	_ = binary.Write(&b, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&b, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&b, binary.LittleEndian, uint32(rate*channels*2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(channels*2))
	_ = binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}

func TestDecodeRawPCM(t *testing.T) {
	samples := make([]int16, 100)
	for i := range samples {
		samples[i] = int16((i - 50) * 655)
	}
	samples[0] = math.MinInt16
	samples[1] = math.MaxInt16
	raw := pcmBytes(samples)
	if len(raw) != 200 {
		t.Fatalf("fixture has %d bytes", len(raw))
	}

	buf, err := NewDecoder(22050, 1).Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(buf.Samples) != 100 {
		t.Fatalf("len(Samples) = %d, want 100", len(buf.Samples))
	}
	if buf.SampleRate != 22050 || buf.Channels != 1 {
		t.Errorf("format = %d Hz x %d", buf.SampleRate, buf.Channels)
	}
	for i, v := range buf.Samples {
		want := float32(samples[i]) / 32768
		if v != want {
			t.Fatalf("sample %d = %v, want %v", i, v, want)
		}
		if v < -1 || v >= 1 {
			t.Fatalf("sample %d = %v out of range", i, v)
		}
	}
}

func TestDecodeWAV(t *testing.T) {
	raw := wavBytes(24000, 2, []int16{0, 16384, -16384, 32767})

	buf, err := NewDecoder(0, 0).Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if buf.SampleRate != 24000 || buf.Channels != 2 {
		t.Errorf("format = %d Hz x %d, want 24000 x 2", buf.SampleRate, buf.Channels)
	}
	want := []float32{0, 0.5, -0.5, 32767.0 / 32768}
	if len(buf.Samples) != len(want) {
		t.Fatalf("len(Samples) = %d, want %d", len(buf.Samples), len(want))
	}
	for i := range want {
		if buf.Samples[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, buf.Samples[i], want[i])
		}
	}
	if buf.Frames() != 2 {
		t.Errorf("Frames() = %d, want 2", buf.Frames())
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name     string
		decoder  *Decoder
		raw      []byte
		contains string
	}{
		{name: "empty", decoder: NewDecoder(0, 0), raw: nil},
		{name: "odd length", decoder: NewDecoder(0, 0), raw: []byte{1, 2, 3}},
		{name: "channel mismatch", decoder: NewDecoder(22050, 2), raw: []byte{1, 2, 3, 4, 5, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.decoder.Decode(tt.raw)
			var decErr *DecodeError
			if !errors.As(err, &decErr) {
				t.Fatalf("Decode() error = %v, want *DecodeError", err)
			}
			if decErr.Size != len(tt.raw) {
				t.Errorf("Size = %d, want %d", decErr.Size, len(tt.raw))
			}
		})
	}
}

func TestDecodeBrokenContainerFallsBackToPCM(t *testing.T) {
	// RIFF header with a truncated body is still even-length PCM.
	raw := []byte("RIFF\x00\x00\x00\x00WAVEjunk")

	buf, err := NewDecoder(22050, 1).Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(buf.Samples) != len(raw)/2 {
		t.Errorf("len(Samples) = %d, want %d", len(buf.Samples), len(raw)/2)
	}
}

func TestBufferDuration(t *testing.T) {
	buf := &Buffer{Samples: make([]float32, 44100), SampleRate: 22050, Channels: 2}
	if got := buf.Duration(); got != time.Second {
		t.Errorf("Duration() = %v, want 1s", got)
	}

	var empty *Buffer
	if empty.Frames() != 0 || empty.Duration() != 0 {
		t.Error("nil buffer should be empty")
	}
}
