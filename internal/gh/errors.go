package gh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Error kinds. A classified *Error matches exactly one of them with errors.Is.
var (
	// ErrConfig is returned before any request is made, e.g. for an empty
	// owner/repo or a non-positive page size.
	ErrConfig = errors.New("configuration error")
	// ErrRateLimit means the API quota for the current credential is exhausted.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrNotFound means the repository is missing or private.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means the request needs (different) credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrGraphQL is a query error reported by the server.
	ErrGraphQL = errors.New("graphql error")
	// ErrTransport covers network, decoding and unexpected HTTP failures.
	ErrTransport = errors.New("transport error")
)

// Error is a classified API failure.
type Error struct {
	Kind    error  // one of the Err* kinds
	Message string // human readable, safe to display
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func configError(format string, args ...any) error {
	return &Error{Kind: ErrConfig, Message: fmt.Sprintf(format, args...)}
}

// HTTPError is produced by the client transport for 4xx and 5xx responses.
type HTTPError struct {
	StatusCode int
	Message    string
	Remaining  int // x-ratelimit-remaining, -1 when absent
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("github returned HTTP %d: %s", e.StatusCode, e.Message)
}

func newHTTPError(resp *http.Response, body []byte) *HTTPError {
	e := &HTTPError{
		StatusCode: resp.StatusCode,
		Remaining:  -1,
	}
	if v, ok := parseHeaderInt(resp.Header, "x-ratelimit-remaining"); ok {
		e.Remaining = v
	}
	if v, ok := parseHeaderInt(resp.Header, "retry-after"); ok {
		e.RetryAfter = time.Duration(v) * time.Second
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		e.Message = payload.Message
	} else {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}

// IsRateLimitError reports whether err signals quota exhaustion: HTTP 429, a
// 403 with no remaining quota, or a GraphQL error mentioning the rate limit.
func IsRateLimitError(err error) bool {
	return errors.Is(Classify(err), ErrRateLimit)
}

// Classify maps an error returned by the GraphQL client or the transport onto
// the error kinds. Already classified errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: ErrTransport, Message: "request cancelled", Err: err}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusTooManyRequests:
			return &Error{Kind: ErrRateLimit, Message: "API rate limit exceeded", Err: err}
		case http.StatusForbidden:
			if httpErr.Remaining == 0 || strings.Contains(strings.ToLower(httpErr.Message), "rate limit") {
				return &Error{Kind: ErrRateLimit, Message: "API rate limit exceeded", Err: err}
			}
			return &Error{Kind: ErrUnauthorized, Message: "Access forbidden", Err: err}
		case http.StatusUnauthorized:
			return &Error{Kind: ErrUnauthorized, Message: "Bad credentials or login required", Err: err}
		case http.StatusNotFound:
			return &Error{Kind: ErrNotFound, Message: "Not found", Err: err}
		}
		return &Error{Kind: ErrTransport, Message: httpErr.Error(), Err: err}
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.HasPrefix(lower, "graphql: server returned a non-200 status code"):
		return &Error{Kind: ErrTransport, Message: strings.TrimPrefix(msg, "graphql: "), Err: err}
	case strings.HasPrefix(lower, "graphql: "):
		text := strings.TrimPrefix(msg, "graphql: ")
		switch {
		case strings.Contains(lower, "rate limit"):
			return &Error{Kind: ErrRateLimit, Message: text, Err: err}
		case strings.Contains(lower, "could not resolve to a repository"):
			return &Error{Kind: ErrNotFound, Message: text, Err: err}
		}
		return &Error{Kind: ErrGraphQL, Message: text, Err: err}
	}
	return &Error{Kind: ErrTransport, Message: msg, Err: err}
}
