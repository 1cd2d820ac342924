package netatmo

import (
	"errors"
	"fmt"
)

var (
	ErrNoToken              = errors.New("no token available - authorization required")
	ErrTransport            = errors.New("transport failure")
	ErrAuthorizationAborted = errors.New("authorization aborted")
)

// TokenErrorKind classifies credential failures
type TokenErrorKind int

const (
	// TokenExpired means the access token expired and could not be refreshed
	TokenExpired TokenErrorKind = iota + 1
	// TokenInvalid means the provider answered with an unusable token document
	TokenInvalid
	// TokenTransport means the token endpoint could not be reached
	TokenTransport
	// TokenHTTPStatus means the token endpoint answered with a non-2xx status
	TokenHTTPStatus
)

func (k TokenErrorKind) String() string {
	switch k {
	case TokenExpired:
		return "expired"
	case TokenInvalid:
		return "invalid"
	case TokenTransport:
		return "transport"
	case TokenHTTPStatus:
		return "http_status"
	default:
		return "unknown"
	}
}

// TokenError is returned by every token acquisition path
type TokenError struct {
	Kind       TokenErrorKind
	StatusCode int    // set for TokenHTTPStatus
	Body       string // provider response, when there was one
	Err        error
}

func (e *TokenError) Error() string {
	switch e.Kind {
	case TokenHTTPStatus:
		return fmt.Sprintf("token request failed with status %d: %s", e.StatusCode, e.Body)
	case TokenInvalid:
		if e.Err != nil {
			return fmt.Sprintf("invalid token: %v", e.Err)
		}
		return "invalid token"
	default:
		if e.Err != nil {
			return fmt.Sprintf("token %s: %v", e.Kind, e.Err)
		}
		return "token " + e.Kind.String()
	}
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// IsTokenError reports whether err is a TokenError of the given kind
func IsTokenError(err error, kind TokenErrorKind) bool {
	var tokenErr *TokenError
	return errors.As(err, &tokenErr) && tokenErr.Kind == kind
}

// APIError is an HTTP error from a resource endpoint that the gateway could
// not recover from
type APIError struct {
	URL        string
	StatusCode int
	ErrorCode  int // provider error code from the body, 0 when absent
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API call %s failed with status %d: %s", e.URL, e.StatusCode, e.Body)
}
