package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetworkUnavailable means the call never reached the remote store.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrRemoteRejected means the remote store answered with a non-2xx status.
	ErrRemoteRejected = errors.New("remote rejected request")
)

// StatusError carries the status of a rejected call. It matches
// ErrRemoteRejected with errors.Is.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrRemoteRejected }

// Retryable reports whether sending the same request again may succeed.
func (e *StatusError) Retryable() bool {
	switch {
	case e.Code >= 500:
		return true
	case e.Code == http.StatusTooManyRequests, e.Code == http.StatusRequestTimeout, e.Code == http.StatusConflict:
		return true
	}
	return false
}

// IsRetryable classifies any error returned by this package.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrNetworkUnavailable) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}
