package speech

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/pageread/internal/cache"
)

// Cache stores synthesized payloads by key.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}

type cachedSynthesizer struct {
	next   Synthesizer
	cache  Cache
	logger *log.Logger
}

// WithCache returns a Synthesizer that serves repeated requests for the same
// text and parameters from c. Only successful payloads are stored.
func WithCache(s Synthesizer, c Cache) Synthesizer {
	if c == nil {
		return s
	}
	return &cachedSynthesizer{
		next:   s,
		cache:  c,
		logger: log.Default().WithPrefix("speech"),
	}
}

func (c *cachedSynthesizer) Synthesize(ctx context.Context, text string, p Params) ([]byte, error) {
	key := cache.GenerateCacheKey(text, p.Voice, p.Speed, string(p.Format))
	if data, ok := c.cache.Get(key); ok {
		c.logger.Debug("Serving audio from cache", "key", key)
		return data, nil
	}

	data, err := c.next.Synthesize(ctx, text, p)
	if err != nil {
		return nil, err
	}

	// Caching failures never fail synthesis.
	if err := c.cache.Put(key, data); err != nil {
		c.logger.Warn("Could not cache audio", "key", key, "err", err)
	}
	return data, nil
}
