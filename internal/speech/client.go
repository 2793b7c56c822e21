package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

const (
	speechPath = "/v1/audio/speech"
	voicesPath = "/v1/audio/voices"
	healthPath = "/health"

	// HealthTimeout bounds the health probe.
	HealthTimeout = 5 * time.Second

	previewSize = 200
)

// Synthesizer turns chunk text into raw audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, p Params) ([]byte, error)
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the service, e.g. http://localhost:8880.
	BaseURL string

	// Model sent with every request (defaults to "kokoro").
	Model string

	// LangCode sent with every request (defaults to "a").
	LangCode string

	// Timeout for a single synthesis request (defaults to 60s).
	Timeout time.Duration

	// RequestsPerMinute limits synthesis requests; 0 disables the limit.
	RequestsPerMinute int

	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client

	Logger *log.Logger
}

// Client is the HTTP synthesis client.
type Client struct {
	baseURL  string
	model    string
	langCode string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *log.Logger
}

// NewClient creates a synthesis client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("speech service URL cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = "kokoro"
	}
	if cfg.LangCode == "" {
		cfg.LangCode = "a"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default().WithPrefix("speech")
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	return &Client{
		baseURL:  base,
		model:    cfg.Model,
		langCode: cfg.LangCode,
		http:     cfg.HTTPClient,
		limiter:  limiter,
		logger:   cfg.Logger,
	}, nil
}

// BaseURL returns the configured service URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Synthesize performs one synthesis request for text and returns the raw
// audio payload. The payload may be an encoded container or raw PCM
// depending on p.Format and the service configuration.
func (c *Client) Synthesize(ctx context.Context, text string, p Params) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &NetworkError{Err: fmt.Errorf("rate limit wait cancelled: %w", err)}
	}

	body, err := json.Marshal(newSpeechRequest(c.model, c.langCode, text, p))
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+speechPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, &NetworkError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       string(errBody),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read speech response: %w", err)}
	}

	c.logger.Debug("Received audio data",
		"content_type", resp.Header.Get("Content-Type"),
		"size", humanize.Bytes(uint64(len(data))),
		"chars", len(text),
		"took", time.Since(start))

	if len(data) == 0 {
		return nil, &EmptyPayloadError{}
	}
	if len(data) <= MinPayloadSize {
		preview := data
		if len(preview) > previewSize {
			preview = preview[:previewSize]
		}
		c.logger.Error("Received data doesn't appear to be audio", "preview", string(preview))
		return nil, &InvalidPayloadError{Size: len(data), Preview: string(preview)}
	}

	return data, nil
}

// Health probes the service health endpoint. It succeeds only on 200 OK.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("API request timed out: %w", err)
		}
		return fmt.Errorf("cannot connect to API: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: API returned status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// Voices lists the voice identifiers offered by the service.
func (c *Client) Voices(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+voicesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("create voices request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, &NetworkError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       string(errBody),
		}
	}

	var v voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode voices response: %w", err)
	}
	return v.Voices, nil
}
