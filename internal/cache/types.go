package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrItemTooLarge is returned when an item exceeds the cache capacity.
var ErrItemTooLarge = errors.New("item too large for cache")

// Stats holds cache performance metrics.
type Stats struct {
	Capacity  int64 // Maximum capacity (bytes for disk, entries for memory)
	Size      int64 // Current size (bytes for disk, entries for memory)
	ItemCount int64
	Hits      int64
	Misses    int64
	Evictions int64
	LastEvict time.Time
}

// HitRate returns hits / (hits + misses), or 0 with no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Config configures the cache manager.
type Config struct {
	// MemoryEntries is the L1 capacity in entries.
	MemoryEntries int

	// DiskPath is the L2 directory; empty disables the disk cache.
	DiskPath string

	// DiskCapacity is the L2 capacity in bytes.
	DiskCapacity int64

	// CompressionLevel is the zstd level for L2; 0 disables compression.
	CompressionLevel int
}

// DefaultConfig returns the default cache configuration without a disk tier.
func DefaultConfig() Config {
	return Config{
		MemoryEntries:    256,
		DiskCapacity:     256 << 20,
		CompressionLevel: 3,
	}
}

// GenerateCacheKey derives a cache key from the text and synthesis settings.
func GenerateCacheKey(text, voice string, speed float64, format string) string {
	data := fmt.Sprintf("%s|%s|%.2f|%s", text, voice, speed, format)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}
