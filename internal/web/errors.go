package web

// errors.go turns normalization failures into HTTP responses.
//
// The technical error is logged with the request and run ids. The client gets
// the core.MapError message and code: JSON for API clients, an alert fragment
// for HTMX, plain text otherwise.

import (
	"context"
	"encoding/csv"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/customermatch/internal/core"
	"github.com/JonMunkholm/customermatch/internal/csvio"
	"github.com/JonMunkholm/customermatch/internal/logging"
	"github.com/JonMunkholm/customermatch/internal/web/templates"
)

var (
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
)

// ErrorResponse is the JSON body of a failed API request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor maps pipeline and input errors to HTTP status codes.
func statusFor(err error) int {
	var missing *core.MissingRequiredFieldsError
	var parseErr *csv.ParseError
	switch {
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoFile), errors.Is(err, csvio.ErrEmptyFile),
		errors.Is(err, core.ErrNoZipSource), errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyRuns), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "normalize request failed",
		"path", r.URL.Path,
		"status", status,
		"code", msg.Code,
		"error", err,
	)

	switch {
	case isHTMX(r):
		s.renderErrorAlert(w, msg, status)
	case wantsJSON(r):
		respondErrorJSON(w, msg, status)
	default:
		http.Error(w, msg.Message+" ("+msg.Code+")", status)
	}
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// renderErrorAlert writes the upload page's error fragment.
func (s *Server) renderErrorAlert(w http.ResponseWriter, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(context.Background(), w); err != nil {
		s.logger.Error("render error alert", "error", err)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// acceptsJSON reports whether the client asked for JSON explicitly.
func acceptsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// wantsJSON also treats every /api/ route as JSON.
func wantsJSON(r *http.Request) bool {
	return acceptsJSON(r) ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json") ||
		strings.HasPrefix(r.URL.Path, "/api/")
}
