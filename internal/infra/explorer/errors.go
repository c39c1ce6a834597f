package explorer

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNoTransactions is returned when the address has no transactions in
	// the requested range. It is an expected state, not a fault.
	ErrNoTransactions = errors.New("no transactions found")

	// ErrMalformedResponse is returned when the explorer answered with data
	// that cannot be decoded.
	ErrMalformedResponse = errors.New("malformed explorer response")

	// ErrTransport is returned for network and HTTP level failures.
	ErrTransport = errors.New("explorer transport failure")
)

// StatusError reports a non-200 HTTP answer.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d %s", e.Endpoint, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// APIError is an explicit error answer of the explorer API (status "0").
type APIError struct {
	Message string
	Result  string
}

func (e *APIError) Error() string {
	if e.Result == "" {
		return fmt.Sprintf("explorer api error: %s", e.Message)
	}
	return fmt.Sprintf("explorer api error: %s (%s)", e.Message, e.Result)
}

func (e *APIError) Unwrap() error { return ErrTransport }

// RateLimited reports whether the explorer rejected the call for exceeding
// its request rate.
func (e *APIError) RateLimited() bool {
	s := strings.ToLower(e.Result + " " + e.Message)
	return strings.Contains(s, "rate limit") || strings.Contains(s, "too many")
}
