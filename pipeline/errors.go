package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultErrorMessage is used when neither the server nor the transport
// provides a message.
const DefaultErrorMessage = "An error occurred"

var (
	// ErrTransport matches failures where no response was received.
	ErrTransport = errors.New("transport failure")
	// ErrUnauthorized matches 401/403 responses that could not be recovered.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRefreshFailed matches failures of the token refresh itself.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrSessionLost is returned when the session disappeared while a refresh was in flight.
	ErrSessionLost = errors.New("session cleared during refresh")
	// ErrUnsuccessful marks a 2xx envelope carrying success=false.
	ErrUnsuccessful = errors.New("unsuccessful response")
	// ErrDecode marks a 2xx response whose payload could not be decoded.
	ErrDecode = errors.New("response decode failed")
	// ErrNilRequest is returned by Execute for a nil request.
	ErrNilRequest = errors.New("nil request")
)

// Kind classifies a normalized [Error].
type Kind uint8

const (
	// KindResponse is a non-auth error response (validation or business failure).
	KindResponse Kind = iota
	// KindTransport means no response was received.
	KindTransport
	// KindUnauthorized is a 401/403 that was not recovered by a refresh.
	KindUnauthorized
	// KindRefresh is a failed token refresh.
	KindRefresh
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindRefresh:
		return "refresh"
	default:
		return "response"
	}
}

// Error is the uniform failure returned for every HTTP-level problem.
type Error struct {
	// StatusCode is 0 when no response was received.
	StatusCode int
	Message    string
	// RawBody is the response body when it was valid JSON.
	RawBody json.RawMessage
	Kind    Kind
	Err     error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets callers match an Error's kind with the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrRefreshFailed:
		return e.Kind == KindRefresh
	}
	return false
}

// IsTransport reports whether no response was received.
func (e *Error) IsTransport() bool {
	return e.StatusCode == 0
}

// StatusError is the transport-level error for a non-2xx response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

func isAuthStatus(code int) bool {
	return code == 401 || code == 403
}

// Normalize converts a response and/or transport error into an [*Error].
// The message is taken from the body's "message" field, then from err, then
// [DefaultErrorMessage].
func Normalize(resp *Response, err error) *Error {
	var already *Error
	if errors.As(err, &already) {
		return already
	}

	out := &Error{Err: err, Kind: KindTransport}
	if resp != nil {
		out.StatusCode = resp.StatusCode
		out.Kind = KindResponse
		if isAuthStatus(resp.StatusCode) {
			out.Kind = KindUnauthorized
		}
		if len(resp.Body) > 0 && json.Valid(resp.Body) {
			out.RawBody = json.RawMessage(resp.Body)
		}
	}
	out.Message = messageOf(resp, err)
	return out
}

func messageOf(resp *Response, err error) string {
	if resp != nil {
		if msg := serverMessage(resp.Body); msg != "" {
			return msg
		}
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return DefaultErrorMessage
}

func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message
}
