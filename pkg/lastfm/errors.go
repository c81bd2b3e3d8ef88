package lastfm

import (
	"errors"
	"fmt"
)

// Last.fm error codes this package deals with.
const (
	ErrCodeInvalidService       = 2
	ErrCodeInvalidMethod        = 3
	ErrCodeAuthenticationFailed = 4
	ErrCodeInvalidFormat        = 5
	ErrCodeInvalidParameters    = 6
	ErrCodeInvalidResourceSpec  = 7
	ErrCodeOperationFailed      = 8
	ErrCodeInvalidSessionKey    = 9
	ErrCodeInvalidAPIKey        = 10
	ErrCodeServiceOffline       = 11
	ErrCodeSubscribersOnly      = 12
	ErrCodeInvalidSignature     = 13
	ErrCodeUnauthorizedToken    = 14
	ErrCodeExpiredToken         = 15
	ErrCodeTempUnavailable      = 16
	ErrCodeSuspendedAPIKey      = 26
	ErrCodeRateLimitExceeded    = 29
)

// ErrNoSessionKey is returned by calls that need a session before Login.
var ErrNoSessionKey = errors.New("lastfm: session key required")

// Error is a failure reported by the API in an <lfm status="failed"> body.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("lastfm: error %d: %s", e.Code, e.Message)
}

// Is matches another *Error with the same code, so callers can write
// errors.Is(err, &lastfm.Error{Code: lastfm.ErrCodeRateLimitExceeded}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// Temporary reports whether repeating the request may succeed: the service
// is offline, temporarily unavailable, or rate limiting.
func (e *Error) Temporary() bool {
	switch e.Code {
	case ErrCodeServiceOffline, ErrCodeTempUnavailable, ErrCodeRateLimitExceeded:
		return true
	}
	return false
}
