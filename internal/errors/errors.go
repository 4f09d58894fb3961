package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeNotFound     ErrCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrCode = "UNAUTHORIZED"
	ErrCodeRateLimited  ErrCode = "RATE_LIMITED"
	ErrCodeInternal     ErrCode = "INTERNAL_ERROR"
	ErrCodeBadRequest   ErrCode = "BAD_REQUEST"
	ErrCodeForbidden    ErrCode = "FORBIDDEN"
	ErrCodeUpstream     ErrCode = "UPSTREAM_ERROR"
	ErrCodeMalformed    ErrCode = "MALFORMED_RESPONSE"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	// Status is the HTTP status returned by the helpdesk API, 0 when the
	// error did not come from an API response.
	Status int
	URL    string
	Err    error
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewStatusError maps a non-success API status to an AppError.
func NewStatusError(status int, url string) *AppError {
	code := ErrCodeUpstream
	message := "helpdesk API returned a non-success status"
	switch status {
	case http.StatusUnauthorized:
		code = ErrCodeUnauthorized
		message = "helpdesk API rejected the credentials"
	case http.StatusForbidden:
		code = ErrCodeForbidden
		message = "helpdesk API denied access"
	case http.StatusNotFound:
		code = ErrCodeNotFound
		message = "helpdesk API resource not found"
	case http.StatusTooManyRequests:
		code = ErrCodeRateLimited
		message = "helpdesk API rate limit still exceeded after retry"
	}
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		URL:     url,
	}
}

// NewMalformedError creates an error for an API payload that could not be decoded
func NewMalformedError(url string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeMalformed,
		Message: "unexpected response payload",
		URL:     url,
		Err:     err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// StatusCode returns the API status carried by err, if any
func StatusCode(err error) (int, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status, true
	}
	return 0, false
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsRateLimited checks if the error is a rate limited error
func IsRateLimited(err error) bool {
	return hasCode(err, ErrCodeRateLimited)
}

// IsUnauthorized checks if the error is an authentication failure
func IsUnauthorized(err error) bool {
	return hasCode(err, ErrCodeUnauthorized)
}

func hasCode(err error, code ErrCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
