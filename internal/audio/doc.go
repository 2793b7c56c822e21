// Package audio decodes synthesized speech payloads into sample buffers and
// plays them on an output device. The oto-backed device supports
// device-level suspend/resume and allows one active source at a time.
package audio
