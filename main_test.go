package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/dgnsrekt/pageread/internal/chunk"
	"github.com/dgnsrekt/pageread/internal/playback"
)

func TestAnalysisReport(t *testing.T) {
	text := strings.Repeat("Words are read aloud here. ", 40)
	chunks := chunk.Build(text, 200)

	report := analysisReport(text, chunks, 1, true)
	for _, want := range []string{
		"# Content analysis",
		fmt.Sprintf("| Chunks | %d |", len(chunks)),
		"| Words | 200 |",
		"## Chunks",
		"1. ",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}

	if got := analysisReport("tiny", chunk.Build("tiny", 200), 1, false); !strings.Contains(got, "No readable content") {
		t.Errorf("short report = %q", got)
	}
}

func TestSourceFromArg(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "page.md")
	if err := os.WriteFile(file, []byte("# Title\n\nSome body text."), 0o600); err != nil {
		t.Fatal(err)
	}
	site := filepath.Join(dir, "site")
	if err := os.Mkdir(site, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(site, "index.html"), []byte("<p>Index page.</p>"), 0o600); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<p>Remote page.</p>")
	}))
	defer srv.Close()

	tests := []struct {
		name string
		arg  string
		text string
		note string
		path bool
	}{
		{name: "markdown file", arg: file, text: "Some body text.", note: "page.md", path: true},
		{name: "directory index", arg: site, text: "Index page.", note: "index.html", path: true},
		{name: "url", arg: srv.URL + "/post", text: "Remote page.", note: strings.TrimPrefix(srv.URL, "http://") + "/post"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := sourceFromArg(context.Background(), tt.arg)
			if err != nil {
				t.Fatalf("sourceFromArg() error = %v", err)
			}
			if got := src.doc.ExtractArticle(); !strings.Contains(got, tt.text) {
				t.Errorf("text = %q, want it to contain %q", got, tt.text)
			}
			if src.note != tt.note {
				t.Errorf("note = %q, want %q", src.note, tt.note)
			}
			if (src.path != "") != tt.path {
				t.Errorf("path = %q", src.path)
			}
		})
	}
}

func TestSourceFromArgErrors(t *testing.T) {
	for _, arg := range []string{
		"ftp://example.com/file",
		filepath.Join(t.TempDir(), "missing.html"),
		t.TempDir(),
	} {
		if _, err := sourceFromArg(context.Background(), arg); err == nil {
			t.Errorf("sourceFromArg(%q) succeeded", arg)
		}
	}
}

func TestEventRelay(t *testing.T) {
	var got []string
	relay := &eventRelay{}
	relay.Emit(playback.Event{Action: "dropped"})

	relay.Add(playback.SinkFunc(func(ev playback.Event) { got = append(got, "a:"+ev.Action) }))
	relay.Add(playback.SinkFunc(func(ev playback.Event) { got = append(got, "b:"+ev.Action) }))
	relay.Emit(playback.Event{Action: playback.ActionPlaybackFinished})

	want := []string{"a:playbackFinished", "b:playbackFinished"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   any
		wantErr bool
	}{
		{name: "defaults", wantErr: false},
		{name: "speed too low", key: "api.speed", value: 0.1, wantErr: true},
		{name: "speed too high", key: "api.speed", value: 4.5, wantErr: true},
		{name: "wav format", key: "api.format", value: "wav", wantErr: false},
		{name: "unknown format", key: "api.format", value: "ogg", wantErr: true},
		{name: "small chunks", key: "reader.chunk_size", value: 10, wantErr: true},
		{name: "empty url", key: "api.url", value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			setDefaults()
			if tt.key != "" {
				viper.Set(tt.key, tt.value)
			}
			if err := validateSettings(); (err != nil) != tt.wantErr {
				t.Errorf("validateSettings() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
