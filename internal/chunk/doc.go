// Package chunk splits extracted page text into bounded-size chunks along
// sentence boundaries. A chunk is the unit of synthesis and playback.
package chunk
