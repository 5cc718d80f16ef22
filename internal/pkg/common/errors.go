package common

import (
	"context"
	"errors"
	"net/http"
)

// ErrorResponse is the JSON body returned for failed API calls.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"` // only filled in debug mode
}

// CustomError carries an error code and HTTP status alongside the cause.
type CustomError struct {
	Code    string
	Message string
	Err     error
	Status  int
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is matches any CustomError with the same code.
func (e *CustomError) Is(target error) bool {
	var t *CustomError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewError creates a CustomError.
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Wrap returns a copy of base with err attached as the cause.
func Wrap(base *CustomError, err error) *CustomError {
	return NewError(base.Code, base.Message, base.Status, err)
}

// ValidationError reports bad input at a boundary.
type ValidationError struct {
	message string
}

func (e *ValidationError) Error() string {
	return e.message
}

// NewValidationError creates a ValidationError.
func NewValidationError(message string) error {
	return &ValidationError{
		message: message,
	}
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Status
	}
	if IsValidationError(err) {
		return http.StatusBadRequest
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// CodeOf returns the error code for err.
func CodeOf(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Code
	}
	if IsValidationError(err) {
		return ErrCodeInvalidRequest
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeGatewayTimeout
	}
	return ErrCodeInternalError
}

const (
	// 4xx
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"
	ErrCodeInvalidReference = "INVALID_REFERENCE_DATA"
	ErrCodeRecipeNotFound   = "RECIPE_NOT_FOUND"
	ErrCodeRecipeExists     = "RECIPE_EXISTS"

	// 5xx
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"
	ErrCodeAIService          = "AI_SERVICE_ERROR"
	ErrCodeInvalidAIResponse  = "INVALID_AI_RESPONSE"
	ErrCodeStorage            = "STORAGE_ERROR"
)

var (
	ErrInvalidRequest  = NewError(ErrCodeInvalidRequest, "invalid request", http.StatusBadRequest, nil)
	ErrNotFound        = NewError(ErrCodeNotFound, "resource not found", http.StatusNotFound, nil)
	ErrTooManyRequests = NewError(ErrCodeTooManyRequests, "too many requests", http.StatusTooManyRequests, nil)

	ErrInternalError      = NewError(ErrCodeInternalError, "internal server error", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "service unavailable", http.StatusServiceUnavailable, nil)
	ErrGatewayTimeout     = NewError(ErrCodeGatewayTimeout, "gateway timeout", http.StatusGatewayTimeout, nil)

	ErrInvalidReferenceData = NewError(ErrCodeInvalidReference, "invalid reference data", http.StatusUnprocessableEntity, nil)
	ErrRecipeNotFound       = NewError(ErrCodeRecipeNotFound, "recipe not found", http.StatusNotFound, nil)
	ErrRecipeExists         = NewError(ErrCodeRecipeExists, "recipe already exists", http.StatusConflict, nil)
	ErrAIUnavailable        = NewError(ErrCodeAIService, "AI service unavailable", http.StatusServiceUnavailable, nil)
	ErrInvalidAIResponse    = NewError(ErrCodeInvalidAIResponse, "AI returned an unusable response", http.StatusBadGateway, nil)
	ErrStorage              = NewError(ErrCodeStorage, "storage error", http.StatusInternalServerError, nil)
	ErrCacheFull            = NewError("CACHE_FULL", "cache is full", http.StatusServiceUnavailable, nil)
	ErrCacheMiss            = NewError("CACHE_MISS", "cache miss", http.StatusNotFound, nil)
	ErrQueueFull            = NewError("QUEUE_FULL", "request queue is full", http.StatusServiceUnavailable, nil)
	ErrQueueClosed          = NewError("QUEUE_CLOSED", "request queue is closed", http.StatusServiceUnavailable, nil)
)
