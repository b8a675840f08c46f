package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// notePath extracts the note path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. People%2FJohn.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func limitParam(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return limit
}

// writeError maps service errors onto HTTP status codes.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotReady), errors.Is(err, apperr.ErrWorkerTerminated):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("index not ready"))
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to send.
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the link graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Graph(r.Context()))
}

// Links handles GET /api/graph/links/*.
//
//	@Summary		Outgoing links and backlinks of a note
//	@Tags			graph
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	LinkSet
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/links/{path} [get]
func (h *Handler) Links(w http.ResponseWriter, r *http.Request) {
	ls, err := h.svc.Links(r.Context(), notePath(r))
	if err != nil {
		writeError(w, "links", err)
		return
	}
	writeJSON(w, http.StatusOK, ls)
}

// Backlinks handles GET /api/graph/backlinks/*.
//
//	@Summary		Notes linking to a note
//	@Tags			graph
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	LinkSet
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/graph/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	ls, err := h.svc.Links(r.Context(), notePath(r))
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file":      ls.File,
		"backlinks": ls.Backlinks,
	})
}

// Tasks handles GET /api/tasks.
//
//	@Summary		List tasks
//	@Tags			tasks
//	@Produce		json
//	@Param			file	query		string	false	"Only tasks of this note"
//	@Param			status	query		string	false	"Task status"	Enums(todo, doing, done)
//	@Success		200		{object}	TaskListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tasks, err := h.svc.Tasks(r.Context(), noteservice.TaskFilter{
		File:   q.Get("file"),
		Status: models.TaskStatus(q.Get("status")),
	})
	if err != nil {
		writeError(w, "tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: tasks, Total: len(tasks)})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"), limitParam(r))
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Complete handles GET /api/predict/complete.
//
//	@Summary		Word completions for a prefix
//	@Tags			predict
//	@Produce		json
//	@Param			prefix	query		string	true	"Word prefix"
//	@Param			limit	query		int		false	"Max suggestions"
//	@Success		200		{object}	SuggestionResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/predict/complete [get]
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	words, err := h.svc.Complete(r.Context(), r.URL.Query().Get("prefix"), limitParam(r))
	if err != nil {
		writeError(w, "complete", err)
		return
	}
	writeJSON(w, http.StatusOK, SuggestionResponse{Suggestions: words})
}

// Next handles GET /api/predict/next.
//
//	@Summary		Next-word suggestions
//	@Tags			predict
//	@Produce		json
//	@Param			prev	query		string	false	"Word before the current one"
//	@Param			word	query		string	true	"Current word"
//	@Param			limit	query		int		false	"Max suggestions"
//	@Success		200		{object}	SuggestionResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/predict/next [get]
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	words, err := h.svc.Next(r.Context(), q.Get("prev"), q.Get("word"), limitParam(r))
	if err != nil {
		writeError(w, "next", err)
		return
	}
	writeJSON(w, http.StatusOK, SuggestionResponse{Suggestions: words})
}

// Status handles GET /api/status.
//
//	@Summary		Indexing status
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status(r.Context()))
}
