// Package queue provides the FIFO that carries fetched audio jobs from the
// fetch loop to the playback driver.
package queue
