package http_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ferrydl/ferry"
	ferryhttp "github.com/ferrydl/ferry/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()

	ferryhttp.WriteError(rec, http.StatusBadRequest, "invalid_input", "Invalid request")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ferryhttp.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "invalid_input", body.Error)
	assert.Equal(t, "Invalid request", body.Message)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ferry.ErrNotFound, http.StatusNotFound},
		{ferry.ErrFileNotFound, http.StatusNotFound},
		{ferry.ErrNotDownloadable, http.StatusBadRequest},
		{ferry.ErrInvalidInput, http.StatusBadRequest},
		{ferry.ErrIncorrectPassword, http.StatusUnauthorized},
		{ferry.ErrUnauthorized, http.StatusForbidden},
		{ferry.ErrRangeNotSatisfiable, http.StatusRequestedRangeNotSatisfiable},
		{ferryhttp.ErrUnauthenticated, http.StatusUnauthorized},
		{ferry.ErrTransferFailed, http.StatusInternalServerError},
		{errors.New("anything"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, ferryhttp.StatusFor(tt.err))
			assert.Equal(t, tt.want, ferryhttp.StatusFor(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestHandleError_HTML(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	ferryhttp.HandleError(rec, req, ferry.ErrUnauthorized)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>403 Forbidden</h1>")
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	err := ferryhttp.WriteJSON(rec, http.StatusOK, map[string]string{"ok": "yes"})
	require.NoError(t, err)

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
}
