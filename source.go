package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/dgnsrekt/pageread/internal/page"
)

var indexNames = []string{
	"index.html", "index.htm",
	"README.md", "README", "Readme.md", "Readme", "readme.md", "readme",
}

// source is a loaded page.
type source struct {
	doc *page.Document
	// path is the local file, empty for URLs and stdin.
	path string
	note string
}

// sourceFromArg loads the page named by arg: "-" for stdin, an http(s) URL,
// a file, or a directory holding an index or README.
func sourceFromArg(ctx context.Context, arg string) (*source, error) {
	// from stdin
	if arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("unable to read stdin: %w", err)
		}
		doc, err := page.ParseString(string(data), page.DetectKind("-", data))
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		return &source{doc: doc, note: "stdin"}, nil
	}

	// HTTP(S) URLs:
	if u, err := url.ParseRequestURI(arg); err == nil && strings.Contains(arg, "://") {
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("%s is not a supported protocol", u.Scheme)
		}
		doc, err := page.Fetch(ctx, http.DefaultClient, u.String())
		if err != nil {
			return nil, fmt.Errorf("unable to get url: %w", err)
		}
		return &source{doc: doc, note: u.Host + u.Path}, nil
	}

	path, err := homedir.Expand(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to expand path: %w", err)
	}

	// a directory:
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	if st.IsDir() {
		found := ""
		for _, name := range indexNames {
			p := filepath.Join(path, name)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				found = p
				break
			}
		}
		if found == "" {
			return nil, errors.New("missing page source")
		}
		path = found
	}

	return sourceFromFile(path)
}

func sourceFromFile(path string) (*source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path: %w", err)
	}
	doc, err := page.ParseString(string(data), page.DetectKind(path, data))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &source{doc: doc, path: abs, note: filepath.Base(path)}, nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// resolveArg picks the source argument, falling back to stdin when piped.
func resolveArg(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if yes, err := stdinIsPipe(); err != nil {
		return "", err
	} else if yes {
		return "-", nil
	}
	return ".", nil
}
