// Package apierr writes structured JSON error envelopes for the HTTP API.
package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tsijukebox/jukebox-backend/internal/circuitbreaker"
	"github.com/tsijukebox/jukebox-backend/internal/httpx"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// UPSTREAM_ - GitHub and lyrics provider failures
	ErrUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrUpstreamNotFound    ErrorCode = "UPSTREAM_NOT_FOUND"
	ErrUpstreamRateLimited ErrorCode = "UPSTREAM_RATE_LIMITED"
	ErrUpstreamCircuitOpen ErrorCode = "UPSTREAM_CIRCUIT_OPEN"
	ErrUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"

	// CACHE_ - Cache administration errors
	ErrCacheKeyNotFound ErrorCode = "CACHE_KEY_NOT_FOUND"
	ErrCacheUnknown     ErrorCode = "CACHE_UNKNOWN"

	// SYSTEM_ - System and server errors
	ErrSystemInternal    ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"

	// VALIDATION_ - Request validation errors
	ErrValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrValidationInvalidValue ErrorCode = "VALIDATION_INVALID_VALUE"

	// RATE_LIMIT_ - Rate limiting errors
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// Error represents a structured API error
type Error struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	status    int
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates a new API error
func New(code ErrorCode, message string, status int) *Error {
	return &Error{Code: code, Message: message, status: status}
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to the error
func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// WriteErrorWithContext writes a structured error response with request ID from context
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}

// FromUpstream maps a failed provider fetch to an API error.
func FromUpstream(provider string, err error) *Error {
	details := map[string]interface{}{"provider": provider}
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return New(ErrUpstreamCircuitOpen, provider+" is temporarily disabled after repeated failures", http.StatusServiceUnavailable).WithDetails(details)
	case errors.Is(err, context.DeadlineExceeded):
		return New(ErrUpstreamTimeout, provider+" did not respond in time", http.StatusGatewayTimeout).WithDetails(details)
	}
	switch status := httpx.StatusOf(err); {
	case status == http.StatusNotFound:
		return New(ErrUpstreamNotFound, provider+" has no such resource", http.StatusNotFound).WithDetails(details)
	case status == http.StatusTooManyRequests || status == http.StatusForbidden:
		details["upstream_status"] = status
		return New(ErrUpstreamRateLimited, provider+" rate limit reached", http.StatusServiceUnavailable).WithDetails(details)
	case status != 0:
		details["upstream_status"] = status
	}
	return New(ErrUpstreamUnavailable, provider+" request failed", http.StatusBadGateway).WithDetails(details)
}

// CacheKeyNotFound reports a missing entry in a named cache.
func CacheKeyNotFound(key string) *Error {
	return New(ErrCacheKeyNotFound, "No cache entry for key: "+key, http.StatusNotFound).
		WithDetails(map[string]interface{}{"key": key})
}

// CacheUnknown reports an unsupported action or cache name.
func CacheUnknown(name string) *Error {
	return New(ErrCacheUnknown, "Unknown cache: "+name, http.StatusNotFound).
		WithDetails(map[string]interface{}{"name": name})
}

// SystemInternal creates an internal server error
func SystemInternal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrSystemInternal, message, http.StatusInternalServerError)
}

// SystemUnavailable creates a service unavailable error
func SystemUnavailable(message string) *Error {
	if message == "" {
		message = "Service unavailable"
	}
	return New(ErrSystemUnavailable, message, http.StatusServiceUnavailable)
}

// ValidationMissingField creates a missing field error
func ValidationMissingField(field string) *Error {
	return New(ErrValidationMissingField, "Missing required field: "+field, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

// ValidationInvalidValue creates an invalid value error
func ValidationInvalidValue(field string, message string) *Error {
	if message == "" {
		message = "Invalid value for field: " + field
	}
	return New(ErrValidationInvalidValue, message, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

// RateLimitGlobal creates a global rate limit error
func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

// RateLimitIP creates an IP rate limit error
func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}
