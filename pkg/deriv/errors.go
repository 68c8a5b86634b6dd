package deriv

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when no correlated response arrives in time.
	ErrTimeout = errors.New("deriv: request timed out")
	// ErrConnection is returned when the socket is down or drops while a
	// request is outstanding.
	ErrConnection = errors.New("deriv: connection lost")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("deriv: client closed")
)

// APIError is the error object the broker attaches to a rejected request.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("deriv api error %s: %s", e.Code, e.Message)
}
