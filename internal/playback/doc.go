// Package playback implements the streaming playback engine: chunks are
// synthesized one at a time in order, queued as jobs and played back to back
// by a single driver goroutine while fetching continues ahead of it.
package playback
