// Package cache provides a two-level cache for synthesized audio: an
// in-memory LRU (L1) and a persistent, zstd-compressed disk cache (L2).
package cache
