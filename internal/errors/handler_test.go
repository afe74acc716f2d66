package errors

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler() *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleError_ProblemResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"not found", NewNotFoundError("event abc"), http.StatusNotFound, TypeNotFound},
		{"validation", NewValidationError("timestamp is required"), http.StatusBadRequest, TypeValidation},
		{"parsing", NewParsingError("bad json", nil), http.StatusBadRequest, TypeValidation},
		{"network", NewNetworkError("yahoo unreachable", nil), http.StatusBadGateway, TypeUpstreamData},
		{"storage", NewStorageError("disk full", nil), http.StatusInternalServerError, TypeInternal},
		{"insufficient data", NewInsufficientDataError("available", 2, 5), http.StatusUnprocessableEntity, TypeInsufficientData},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/events/abc", nil)
			rec := httptest.NewRecorder()
			newHandler().HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/events/abc", body["instance"])
		})
	}
}

func TestHandleError_IncludesAppErrorContext(t *testing.T) {
	err := NewValidationError("node mapping unknown").WithContext("node", "zz_top")

	req := httptest.NewRequest(http.MethodPost, "/api/signals/transforms", nil)
	rec := httptest.NewRecorder()
	newHandler().HandleError(rec, req, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "zz_top", body["node"])
}

func TestHandleError_NilErrorWritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler().HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	assert.Empty(t, rec.Body.String())
}

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "[NOT_FOUND] event abc not found", NewNotFoundError("event abc").Error())

	wrapped := NewStorageError("write snapshot", io.ErrClosedPipe)
	assert.Contains(t, wrapped.Error(), "io: read/write on closed pipe")
	assert.ErrorIs(t, wrapped, io.ErrClosedPipe)
}

func TestInsufficientDataError_Message(t *testing.T) {
	err := NewInsufficientDataError("after exclusions", 3, 5)
	assert.Contains(t, err.Error(), "after exclusions")
	assert.Contains(t, err.Error(), "3")
	assert.Contains(t, err.Error(), "5")
}
