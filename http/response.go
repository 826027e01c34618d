package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ferrydl/ferry"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{ferry.ErrNotFound, http.StatusNotFound, "not_found", "Download not found"},
	{ferry.ErrFileNotFound, http.StatusNotFound, "file_not_found", "The file could not be found"},
	{ferry.ErrNotDownloadable, http.StatusBadRequest, "not_downloadable", "This download has no file attached"},
	{ferry.ErrInvalidInput, http.StatusBadRequest, "invalid_input", "Invalid request"},
	{ferry.ErrPasswordRequired, http.StatusUnauthorized, "password_required", "This download is password protected"},
	{ferry.ErrIncorrectPassword, http.StatusUnauthorized, "incorrect_password", "The password you entered is incorrect"},
	{ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "Authentication required"},
	{ferry.ErrUnauthorized, http.StatusForbidden, "unauthorized", "You do not have permission to access this download"},
	{ferry.ErrRangeNotSatisfiable, http.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable", "Requested range not satisfiable"},
}

func mapError(err error) errorMapping {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m
		}
	}
	return errorMapping{status: http.StatusInternalServerError, code: "internal_error", message: "Internal server error"}
}

// StatusFor returns the HTTP status an error is reported with.
func StatusFor(err error) int {
	return mapError(err).status
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes an error response matching the error type. Browsers
// get an HTML page, everything else gets JSON.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	m := mapError(err)

	if m.status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request error", "error", err, "path", r.URL.Path)
	} else {
		slog.DebugContext(r.Context(), "request rejected", "error", err, "status", m.status)
	}

	if wantsHTML(r) {
		writeErrorPage(w, m.status, m.message)
		return
	}

	WriteError(w, m.status, m.code, m.message)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
