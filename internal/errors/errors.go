package errors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Domain error taxonomy. Services return these sentinels (usually wrapped
// with %w); the HTTP layer maps them to status codes with Respond.
var (
	// ErrNotFound is returned when a scope or entity does not exist. It is
	// also used in place of ErrPermissionDenied where revealing existence
	// would leak information.
	ErrNotFound = errors.New("resource not found")

	// ErrPermissionDenied is returned for any authorization failure. The
	// message is uniform regardless of the actor's actual role.
	ErrPermissionDenied = errors.New("insufficient permissions")

	// ErrInvariantViolation is returned when an operation would break a
	// structural rule: mutating the owner membership, deleting a task that
	// still has subtasks.
	ErrInvariantViolation = errors.New("operation violates an invariant")

	// ErrConflict is returned on uniqueness collisions: duplicate workspace
	// slug, duplicate project key, duplicate membership.
	ErrConflict = errors.New("resource already exists")

	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("invalid input")

	// ErrStorageUnavailable is returned after bounded retries of a transient
	// store failure have been exhausted.
	ErrStorageUnavailable = errors.New("storage temporarily unavailable")
)

// Error codes
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"

	ErrCodeForbidden = "FORBIDDEN"

	ErrCodeInvalidInput = "INVALID_INPUT"

	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeConflict = "CONFLICT"

	ErrCodeInvariantViolation = "INVARIANT_VIOLATION"

	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// APIError represents a standardized API error response
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new APIError
func NewAPIError(code, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, statusCode int, err *APIError) {
	c.JSON(statusCode, err)
}

// Respond maps a domain error to an HTTP response. Unknown errors become 500s
// with a generic message so internals never leak to clients.
func Respond(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		RespondWithError(c, http.StatusNotFound, NewAPIError(ErrCodeNotFound, "Resource not found"))
	case errors.Is(err, ErrPermissionDenied):
		RespondWithError(c, http.StatusForbidden, NewAPIError(ErrCodeForbidden, "Insufficient permissions"))
	case errors.Is(err, ErrInvariantViolation):
		RespondWithError(c, http.StatusConflict, NewAPIError(ErrCodeInvariantViolation, err.Error()))
	case errors.Is(err, ErrConflict):
		RespondWithError(c, http.StatusConflict, NewAPIError(ErrCodeConflict, err.Error()))
	case errors.Is(err, ErrValidation):
		RespondWithError(c, http.StatusBadRequest, NewAPIError(ErrCodeInvalidInput, err.Error()))
	case errors.Is(err, ErrStorageUnavailable):
		RespondWithError(c, http.StatusServiceUnavailable, NewAPIError(ErrCodeServiceUnavailable, "Service temporarily unavailable"))
	default:
		RespondWithError(c, http.StatusInternalServerError, NewAPIError(ErrCodeInternalError, "Internal server error"))
	}
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	RespondWithError(c, http.StatusUnauthorized, NewAPIError(ErrCodeUnauthorized, message))
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "Invalid request"
	}
	RespondWithError(c, http.StatusBadRequest, NewAPIError(ErrCodeInvalidInput, message))
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error"
	}
	RespondWithError(c, http.StatusInternalServerError, NewAPIError(ErrCodeInternalError, message))
}
