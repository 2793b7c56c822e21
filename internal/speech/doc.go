// Package speech talks to a local Kokoro-compatible text-to-speech service.
// It turns one chunk of text into a validated raw audio payload, probes the
// service health and lists the voices it offers.
package speech
