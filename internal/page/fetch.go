package page

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
)

// maxPageSize bounds how much of a remote page is read.
const maxPageSize = 10 << 20

// Fetch downloads and parses a page. The kind comes from the Content-Type
// header, then the URL path.
func Fetch(ctx context.Context, client *http.Client, rawURL string) (*Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid page URL %q", rawURL)
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create page request: %w", err)
	}
	req.Header.Set("Accept", "text/html, text/markdown;q=0.9, text/plain;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page: %s returned %d %s", u.Host, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}

	kind := kindFromContentType(resp.Header.Get("Content-Type"))
	if kind < 0 {
		kind = DetectKind(path.Base(u.Path), body)
	}
	return ParseString(string(body), kind)
}

func kindFromContentType(ct string) Kind {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return -1
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return KindHTML
	case "text/markdown", "text/x-markdown":
		return KindMarkdown
	case "text/plain":
		return KindText
	default:
		return -1
	}
}
