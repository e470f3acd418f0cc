package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with stable codes
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Error is mapped via core.MapError to get user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. The user message is returned as JSON with a status derived from the
//     error kind

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/mvanek/userimport/internal/core"
	"github.com/mvanek/userimport/internal/xlsx"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// respondError handles error responses with user-friendly messages.
// It logs the technical error server-side and returns a JSON body whose
// status code follows from the error kind.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	userMsg := core.MapError(err)
	status := httpStatus(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	writeJSON(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Code:    userMsg.Code,
	})
}

// httpStatus maps an internal error to a response status code.
func httpStatus(err error) int {
	var decodeErr *xlsx.DecodeError
	var schemaErr *core.SchemaError

	switch {
	case errors.As(err, &decodeErr):
		return http.StatusBadRequest
	case errors.As(err, &schemaErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrEmptySheet):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidationFailed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
