package upstream

import (
	"context"
	"errors"
	"fmt"
)

// TransientError is a failure worth retrying: rate limiting, a 5xx status,
// or a transport error.
type TransientError struct {
	Source     string
	StatusCode int // zero for transport errors
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed: status %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a non-retryable HTTP status. Body holds the service's
// error message when one can be extracted, otherwise a normalised snippet
// of the response.
type PermanentError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *PermanentError) Error() string {
	msg := fmt.Sprintf("%s request failed: status %d", e.Source, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsTransient reports whether err carries a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsCanceled reports whether err stems from cancellation. Cancellations must
// never be replaced with fallback data.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
