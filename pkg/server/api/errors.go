package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vprint/vprint/pkg/job"
)

// ErrBadRequest is wrapped by request validation failures.
var ErrBadRequest = errors.New("bad request")

// ErrorResponse represents a standard JSON error response.
//
// Example:
//
//	{
//	  "error": "Not Found",
//	  "message": "job 5f0c... not found"
//	}
type ErrorResponse struct {
	Error   string `json:"error"`             // Short error type (e.g., "Not Found")
	Message string `json:"message,omitempty"` // Detailed error message (optional)
}

// StatusFor maps an error chain to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, job.ErrInvalidOptions):
		return http.StatusBadRequest
	case job.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, job.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes a JSON error response whose status follows StatusFor
// and logs it.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := StatusFor(err)

	logEvent := log.Error()
	if statusCode < http.StatusInternalServerError {
		logEvent = log.Warn()
	}
	logEvent.
		Str("component", "api").
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", statusCode).
		Err(err).
		Msg("Request failed")

	WriteJSONError(w, statusCode, http.StatusText(statusCode), err.Error())
}

// WriteJSONError writes a custom JSON error response with a specific status code.
func WriteJSONError(w http.ResponseWriter, statusCode int, errorType, message string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: errorType, Message: message})
}

// WriteJSON writes a JSON response to the client.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().
			Str("component", "api").
			Err(err).
			Msg("Failed to encode JSON response")
	}
}
