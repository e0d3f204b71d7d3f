package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error codes
const (
	CodeValidationError         = "VALIDATION_ERROR"
	CodeNotFound                = "RESOURCE_NOT_FOUND"
	CodeConflict                = "CONFLICT"
	CodeInternalError           = "INTERNAL_ERROR"
	CodeBadRequest              = "BAD_REQUEST"
	CodeServiceUnavailable      = "SERVICE_UNAVAILABLE"
	CodeTimeout                 = "TIMEOUT"
	CodeInsufficientStock       = "INSUFFICIENT_STOCK"
	CodeInvalidReservationState = "INVALID_RESERVATION_STATE"
	CodeInvalidStateTransition  = "INVALID_STATE_TRANSITION"
	CodeConcurrentModification  = "CONCURRENT_MODIFICATION"
)

// AppError represents an application error with HTTP status and error code
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Retryable  bool              `json:"retryable,omitempty"`
	HTTPStatus int               `json:"-"`
	Err        error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a single detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Wrap wraps an existing error
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// AsRetryable marks the error as safe to retry with backoff
func (e *AppError) AsRetryable() *AppError {
	e.Retryable = true
	return e
}

// NewAppError creates a new AppError
func NewAppError(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// ErrValidation creates a validation error
func ErrValidation(message string) *AppError {
	return NewAppError(CodeValidationError, message, http.StatusBadRequest)
}

// ErrNotFound creates a not found error
func ErrNotFound(resource string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ErrConflict creates a conflict error
func ErrConflict(message string) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict)
}

// ErrInternal creates an internal error
func ErrInternal(message string) *AppError {
	if message == "" {
		message = "an internal error occurred"
	}
	return NewAppError(CodeInternalError, message, http.StatusInternalServerError)
}

// ErrBadRequest creates a bad request error
func ErrBadRequest(message string) *AppError {
	return NewAppError(CodeBadRequest, message, http.StatusBadRequest)
}

// ErrServiceUnavailable creates a service unavailable error
func ErrServiceUnavailable(service string) *AppError {
	return NewAppError(CodeServiceUnavailable, fmt.Sprintf("%s is temporarily unavailable", service), http.StatusServiceUnavailable)
}

// ErrTimeout creates a timeout error
func ErrTimeout(operation string) *AppError {
	return NewAppError(CodeTimeout, fmt.Sprintf("%s timed out", operation), http.StatusGatewayTimeout)
}

// ErrInsufficientStock is returned when a reservation exceeds the available quantity
func ErrInsufficientStock(message string) *AppError {
	return NewAppError(CodeInsufficientStock, message, http.StatusUnprocessableEntity)
}

// ErrInvalidReservationState is returned when operating on a terminal reservation
func ErrInvalidReservationState(message string) *AppError {
	return NewAppError(CodeInvalidReservationState, message, http.StatusConflict)
}

// ErrInvalidStateTransition is returned for an illegal quotation transition
func ErrInvalidStateTransition(message string) *AppError {
	return NewAppError(CodeInvalidStateTransition, message, http.StatusBadRequest)
}

// ErrConcurrentModification is returned when a row lock could not be acquired in time
func ErrConcurrentModification(message string) *AppError {
	return NewAppError(CodeConcurrentModification, message, http.StatusConflict).AsRetryable()
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Mapping binds a sentinel error to the AppError it is surfaced as
type Mapping struct {
	Target error
	Build  func(err error) *AppError
}

// MapDomainError finds the first mapping whose target matches err via errors.Is.
// Unmapped errors become internal errors.
func MapDomainError(err error, mappings []Mapping) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	for _, m := range mappings {
		if errors.Is(err, m.Target) {
			return m.Build(err).Wrap(err)
		}
	}
	return ErrInternal("").Wrap(err)
}
