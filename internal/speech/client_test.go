package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "  "}); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestClientSynthesizeRequest(t *testing.T) {
	audio := bytes.Repeat([]byte{1, 2}, 200)

	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("path = %s, want /v1/audio/speech", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write(audio)
	})

	data, err := c.Synthesize(context.Background(), "Hello world", Params{
		Voice:  "af_heart",
		Speed:  1.5,
		Format: FormatPCM,
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if !bytes.Equal(data, audio) {
		t.Errorf("Synthesize() returned %d bytes, want %d", len(data), len(audio))
	}

	checks := map[string]interface{}{
		"model":                "kokoro",
		"input":                "Hello world",
		"voice":                "af_heart",
		"response_format":      "pcm",
		"download_format":      "mp3",
		"speed":                1.5,
		"stream":               true,
		"return_download_link": false,
		"lang_code":            "a",
	}
	for k, want := range checks {
		if got[k] != want {
			t.Errorf("body[%q] = %v, want %v", k, got[k], want)
		}
	}

	norm, ok := got["normalization_options"].(map[string]interface{})
	if !ok {
		t.Fatalf("normalization_options missing: %v", got)
	}
	wantNorm := map[string]bool{
		"normalize":                            true,
		"unit_normalization":                   false,
		"url_normalization":                    true,
		"email_normalization":                  true,
		"optional_pluralization_normalization": true,
		"phone_normalization":                  true,
	}
	for k, want := range wantNorm {
		if norm[k] != want {
			t.Errorf("normalization_options[%q] = %v, want %v", k, norm[k], want)
		}
	}
}

func TestClientSynthesizeDownloadFormat(t *testing.T) {
	var got speechRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write(bytes.Repeat([]byte{0}, 512))
	})

	if _, err := c.Synthesize(context.Background(), "x", Params{Format: FormatWAV}); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got.DownloadFormat != FormatWAV {
		t.Errorf("download_format = %q, want wav", got.DownloadFormat)
	}
}

func TestClientSynthesizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   []byte
		check  func(t *testing.T, err error)
	}{
		{
			name:   "non-2xx carries status and body",
			status: http.StatusInternalServerError,
			body:   []byte("voice not found"),
			check: func(t *testing.T, err error) {
				var netErr *NetworkError
				if !errors.As(err, &netErr) {
					t.Fatalf("error = %T, want *NetworkError", err)
				}
				if netErr.StatusCode != http.StatusInternalServerError {
					t.Errorf("StatusCode = %d", netErr.StatusCode)
				}
				if netErr.Body != "voice not found" {
					t.Errorf("Body = %q", netErr.Body)
				}
				if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "voice not found") {
					t.Errorf("Error() = %q", err.Error())
				}
			},
		},
		{
			name:   "empty body",
			status: http.StatusOK,
			body:   nil,
			check: func(t *testing.T, err error) {
				var empty *EmptyPayloadError
				if !errors.As(err, &empty) {
					t.Fatalf("error = %T, want *EmptyPayloadError", err)
				}
				if !IsPayloadError(err) {
					t.Error("IsPayloadError() = false")
				}
			},
		},
		{
			name:   "body at the plausibility threshold",
			status: http.StatusOK,
			body:   bytes.Repeat([]byte("x"), MinPayloadSize),
			check: func(t *testing.T, err error) {
				var invalid *InvalidPayloadError
				if !errors.As(err, &invalid) {
					t.Fatalf("error = %T, want *InvalidPayloadError", err)
				}
				if invalid.Size != MinPayloadSize {
					t.Errorf("Size = %d", invalid.Size)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			})
			_, err := c.Synthesize(context.Background(), "text", Params{Format: FormatPCM})
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestClientSynthesizeAcceptsJustAboveThreshold(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), MinPayloadSize+1))
	})
	if _, err := c.Synthesize(context.Background(), "text", Params{}); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
}

func TestClientSynthesizeConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Synthesize(context.Background(), "text", Params{})
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v, want *NetworkError", err)
	}
	if netErr.Err == nil {
		t.Error("transport error should be wrapped")
	}
}

func TestClientHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "unavailable", status: http.StatusServiceUnavailable, wantErr: true},
		{name: "no content is not ok", status: http.StatusNoContent, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/health" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.status)
			})
			err := c.Health(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Health() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnhealthy) {
				t.Errorf("Health() error = %v, want ErrUnhealthy", err)
			}
		})
	}
}

func TestClientVoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/voices" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"voices":["af_heart","am_adam","bf_emma"]}`))
	})

	voices, err := c.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices() error = %v", err)
	}
	if len(voices) != 3 || voices[0] != "af_heart" {
		t.Errorf("Voices() = %v", voices)
	}
}

func TestMatchVoices(t *testing.T) {
	voices := []string{"bf_emma", "af_heart", "am_adam", "af_bella"}

	all := MatchVoices(voices, "")
	if all[0] != "af_bella" || len(all) != 4 {
		t.Errorf("MatchVoices(\"\") = %v", all)
	}

	got := MatchVoices(voices, "heart")
	if len(got) != 1 || got[0] != "af_heart" {
		t.Errorf("MatchVoices(heart) = %v", got)
	}

	if got := MatchVoices(voices, "zzz"); len(got) != 0 {
		t.Errorf("MatchVoices(zzz) = %v", got)
	}
}

type countingSynth struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSynth) Synthesize(_ context.Context, text string, _ Params) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte("audio:" + text), nil
}

type mapCache map[string][]byte

func (m mapCache) Get(key string) ([]byte, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapCache) Put(key string, data []byte) error {
	m[key] = data
	return nil
}

func TestWithCache(t *testing.T) {
	next := &countingSynth{}
	s := WithCache(next, mapCache{})
	p := Params{Voice: "af_heart", Speed: 1, Format: FormatPCM}

	for i := 0; i < 3; i++ {
		data, err := s.Synthesize(context.Background(), "same text", p)
		if err != nil {
			t.Fatalf("Synthesize() error = %v", err)
		}
		if string(data) != "audio:same text" {
			t.Errorf("data = %q", data)
		}
	}
	if next.calls != 1 {
		t.Errorf("underlying calls = %d, want 1", next.calls)
	}

	p.Speed = 2
	if _, err := s.Synthesize(context.Background(), "same text", p); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Errorf("different params should miss the cache, calls = %d", next.calls)
	}
}

func TestWithCacheDoesNotStoreFailures(t *testing.T) {
	next := &countingSynth{err: &EmptyPayloadError{}}
	c := mapCache{}
	s := WithCache(next, c)

	if _, err := s.Synthesize(context.Background(), "text", Params{}); err == nil {
		t.Fatal("expected error")
	}
	if len(c) != 0 {
		t.Errorf("cache has %d entries after a failure", len(c))
	}
}

func TestWithNilCache(t *testing.T) {
	next := &countingSynth{}
	if got := WithCache(next, nil); got != Synthesizer(next) {
		t.Error("WithCache(nil) should return the synthesizer unchanged")
	}
}
