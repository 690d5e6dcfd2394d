package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error is an application error carrying an HTTP status and a stable code.
// Message is safe to show to users; Internal is only logged.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches any *Error with the same code, so wrapped copies of a sentinel
// still satisfy errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithInternal returns a copy of the error with an internal error attached.
func (e *Error) WithInternal(err error) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Internal:   err,
	}
}

// WithMessage returns a copy of the error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    message,
		Internal:   e.Internal,
	}
}

func New(status int, code, message string) *Error {
	return &Error{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
	}
}

var (
	ErrUnauthorized = New(http.StatusUnauthorized, "unauthorized", "Authentication required")
	ErrNotFound     = New(http.StatusNotFound, "not_found", "Resource not found")
	ErrBadRequest   = New(http.StatusBadRequest, "bad_request", "Invalid request")

	// ErrQuery is a statement the graph store rejected.
	ErrQuery = New(http.StatusInternalServerError, "query_error", "We ran into an error updating your graph. Please try again")
	// ErrUpstream is the plugin registry being unreachable or returning nothing.
	ErrUpstream = New(http.StatusBadGateway, "upstream_error", "The plugin service is unavailable. Please try again later")
	// ErrProtocol is a malformed realtime message.
	ErrProtocol = New(http.StatusBadRequest, "protocol_error", "Malformed message")
	ErrInternal = New(http.StatusInternalServerError, "internal_error", "An internal error occurred")
)

func NewBadRequest(message string) *Error {
	return ErrBadRequest.WithMessage(message)
}

func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id))
}

func NewQuery(err error) *Error {
	return ErrQuery.WithInternal(err)
}

func NewUpstream(err error) *Error {
	return ErrUpstream.WithInternal(err)
}

// ToHTTPError converts err into a status code and a response body. Errors
// that are not *Error anywhere in their chain become internal errors.
func ToHTTPError(err error) (int, map[string]string) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus, map[string]string{
			"code":  appErr.Code,
			"error": appErr.Message,
		}
	}
	return http.StatusInternalServerError, map[string]string{
		"code":  ErrInternal.Code,
		"error": ErrInternal.Message,
	}
}

// ToEchoError converts err for handlers that return errors to echo.
func ToEchoError(err error) *echo.HTTPError {
	status, body := ToHTTPError(err)
	return echo.NewHTTPError(status, body)
}
