package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/road-telemetry/rts/internal/record"
	"github.com/road-telemetry/rts/internal/store"
)

// APIError is an error that already knows its HTTP representation.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

// NewAPIError builds an APIError with the given code, message and status.
func NewAPIError(code, message string, statusCode int, details interface{}) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ToAPIError maps an internal error onto an HTTP status and a marshaled
// error envelope. A nil error maps to 200 with no body.
func ToAPIError(err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, marshalErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details)
	}

	var valErr *record.ValidationError
	if errors.As(err, &valErr) {
		details := map[string]interface{}{
			"index": valErr.Index,
			"field": valErr.Field,
		}
		return http.StatusBadRequest, marshalErrorResponse("VALIDATION_ERROR", valErr.Error(), details)
	}

	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, marshalErrorResponse("NOT_FOUND", "Record not found", nil)
	}

	var perErr *store.PersistenceError
	if errors.As(err, &perErr) {
		details := map[string]interface{}{"op": perErr.Op}
		return http.StatusServiceUnavailable, marshalErrorResponse("UNAVAILABLE", "Storage unavailable", details)
	}

	details := map[string]interface{}{"original": err.Error()}
	return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", "Internal server error", details)
}

func marshalErrorResponse(code, message string, details interface{}) []byte {
	body, err := json.Marshal(ErrorResponse(code, message, details))
	if err != nil {
		return []byte(`{"result":"error","code":"INTERNAL","message":"Internal server error"}`)
	}
	return body
}
