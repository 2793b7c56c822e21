package speech

import (
	"errors"
	"fmt"
)

// MinPayloadSize is the smallest body accepted as audio. Anything at or
// below it is most likely an error page served with a 2xx status.
const MinPayloadSize = 100

// ErrUnhealthy is returned by Health when the service answers with a
// non-OK status.
var ErrUnhealthy = errors.New("speech service is not healthy")

// NetworkError reports a failed request or a non-2xx response.
type NetworkError struct {
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("speech request failed: %v", e.Err)
	}
	return fmt.Sprintf("API request failed: %d %s - %s", e.StatusCode, e.Status, e.Body)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// EmptyPayloadError reports a response with a zero-length body.
type EmptyPayloadError struct{}

func (e *EmptyPayloadError) Error() string {
	return "received empty audio data from API"
}

// InvalidPayloadError reports a body too small to plausibly be audio.
type InvalidPayloadError struct {
	Size    int
	Preview string
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("API returned invalid audio data (%d bytes)", e.Size)
}

// IsPayloadError reports whether err is an empty or invalid payload error.
func IsPayloadError(err error) bool {
	var empty *EmptyPayloadError
	var invalid *InvalidPayloadError
	return errors.As(err, &empty) || errors.As(err, &invalid)
}
