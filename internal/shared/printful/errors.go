package printful

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrListingTruncated means the listing hit the page ceiling before the
// provider reported its end.
var ErrListingTruncated = errors.New("printful listing exceeded the page ceiling")

// FetchError is returned for every failed provider call.
type FetchError struct {
	Op         string
	Path       string
	StatusCode int
	RetryAfter time.Duration
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("printful %s %s", e.Op, e.Path)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the same call may succeed: transport
// failures, 429 and 5xx. Cancellation and other 4xx are final.
func (e *FetchError) Temporary() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode == http.StatusNotFound
}
