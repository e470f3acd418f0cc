package web

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mvanek/userimport/internal/core"
	"github.com/mvanek/userimport/internal/xlsx"
)

// sessionResponse is the review payload: the staged session plus the
// current validation errors keyed by row number.
type sessionResponse struct {
	Token        string                         `json:"token"`
	CreatedAt    time.Time                      `json:"createdAt"`
	OriginalName string                         `json:"originalName"`
	Records      []core.Record                  `json:"records"`
	Errors       map[int][]core.ValidationError `json:"errors"`
}

func newSessionResponse(session *core.Session) sessionResponse {
	return sessionResponse{
		Token:        session.Token,
		CreatedAt:    session.CreatedAt,
		OriginalName: session.OriginalName,
		Records:      session.Records,
		Errors:       core.Validate(session.Records),
	}
}

// handleUpload accepts a multipart XLSX upload, decodes it and stages a
// new import session.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeBadRequest(w, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "no file provided")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		writeBadRequest(w, "only .xlsx files are accepted")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	table, err := xlsx.Decode(data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	session, err := s.service.BuildSession(r.Context(), header.Filename, table)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newSessionResponse(session))
}

// handleReview returns the staged session for review. Existing-account
// detection and validation run fresh on every load.
func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	session, err := s.service.LoadSession(r.Context(), token)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newSessionResponse(session))
}

// reviseRequest carries the edited rows of a review submission.
type reviseRequest struct {
	Rows []core.RowEdit `json:"rows"`
}

// handleRevise applies reviewer edits. A response with a non-empty errors
// map means the revision was not persisted.
func (s *Server) handleRevise(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req reviseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	session, errs, err := s.service.ReviseSession(r.Context(), token, req.Rows)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	resp := sessionResponse{
		Token:        session.Token,
		CreatedAt:    session.CreatedAt,
		OriginalName: session.OriginalName,
		Records:      session.Records,
		Errors:       errs,
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCommit performs the final commit of a staged session.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	result, err := s.service.CommitSession(r.Context(), token)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleAbandon discards a staged session. Abandoning an unknown token
// succeeds.
func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := s.service.AbandonSession(r.Context(), token); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListGroups returns all known groups, sorted by name, for the
// review screen's group picker.
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.service.GroupOptions(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, groups)
}

// handleHistory lists recorded commits, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.History(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// writeBadRequest writes a request-shape problem the error taxonomy does
// not cover.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   message,
		Message: message,
		Code:    "IMP400",
	})
}
