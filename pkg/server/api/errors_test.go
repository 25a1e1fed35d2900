package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vprint/vprint/pkg/job"
)

func TestWriteError_NotFound(t *testing.T) {
	id := job.NewID()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+id.String(), nil)
	w := httptest.NewRecorder()

	WriteError(w, req, &job.NotFoundError{ID: id})

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Equal(t, "Not Found", response.Error)
	require.Contains(t, response.Message, id.String())
}

func TestWriteError_InternalServerError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()

	WriteError(w, req, errors.New("spool unavailable"))

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Equal(t, "Internal Server Error", response.Error)
	require.Equal(t, "spool unavailable", response.Message)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("limit: %w", ErrBadRequest), http.StatusBadRequest},
		{job.ErrInvalidOptions, http.StatusBadRequest},
		{&job.NotFoundError{}, http.StatusNotFound},
		{&job.TransitionError{From: job.StatusCompleted, To: job.StatusHeld}, http.StatusConflict},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSONError(w, http.StatusBadRequest, "Invalid Input", "status must be a job state")

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Equal(t, "Invalid Input", response.Error)
	require.Equal(t, "status must be a job state", response.Message)
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]int{"queued": 2})

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"queued":2}`, w.Body.String())
}
