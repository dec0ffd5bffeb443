package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/templui/drive/internal/repository"
	"github.com/templui/drive/internal/service"
	"github.com/templui/drive/internal/validation"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps the service error taxonomy to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthenticated),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrBadRequest),
		errors.Is(err, service.ErrEmailAlreadyExists),
		errors.Is(err, validation.ErrEmptyFile),
		errors.Is(err, validation.ErrFileTooLarge),
		errors.Is(err, validation.ErrInvalidFilename):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// messages overrides the client-facing text per operation.
type messages struct {
	Forbidden string
	NotFound  string
	Failed    string
}

// messageFor returns the client-facing text for err. Upstream failures never
// leak their cause.
func messageFor(err error, m messages) string {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Msg
	case errors.Is(err, service.ErrUnauthenticated):
		return "Authentication required"
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid password"
	case errors.Is(err, service.ErrForbidden):
		if m.Forbidden != "" {
			return m.Forbidden
		}
		return "Unauthorized to access this file"
	case errors.Is(err, repository.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, service.ErrNotFound):
		if m.NotFound != "" {
			return m.NotFound
		}
		return "File not found"
	case errors.Is(err, service.ErrEmailAlreadyExists):
		return "Email already exists"
	case errors.Is(err, validation.ErrEmptyFile),
		errors.Is(err, validation.ErrFileTooLarge),
		errors.Is(err, validation.ErrInvalidFilename):
		return err.Error()
	}
	return m.Failed
}

// writeServiceError writes the mapped status and message, logging upstream failures.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, m messages) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "path", r.URL.Path, "status", status)
	}
	writeError(w, status, messageFor(err, m))
}
