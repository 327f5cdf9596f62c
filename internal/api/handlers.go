package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tgvault/internal/apperr"
	"github.com/starford/tgvault/internal/index"
	"github.com/starford/tgvault/internal/models"
	"github.com/starford/tgvault/internal/noteservice"
)

// NoteReader is the read side the handlers need.
type NoteReader interface {
	GetNote(ctx context.Context, path string) (*noteservice.NoteDetail, error)
	ListNotes(ctx context.Context, q index.ListQuery) ([]models.NoteRecord, int, error)
	Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error)
}

var _ NoteReader = (*noteservice.Service)(nil)

// Handler holds API route handlers.
type Handler struct {
	notes NoteReader
}

// NewHandler creates a new Handler.
func NewHandler(notes NoteReader) *Handler {
	return &Handler{notes: notes}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List ingested notes, newest message first
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size (max 500)"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by hashtag, with or without '#'"
//	@Param			channel	query		string	false	"Filter by source chat"
//	@Success		200		{object}	NoteListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	limit, err := queryInt(params, "limit")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(params, "offset")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	q := index.ListQuery{
		Limit:   limit,
		Offset:  offset,
		Tag:     params.Get("tag"),
		Channel: params.Get("channel"),
	}.Normalize()
	notes, total, err := h.notes.ListNotes(r.Context(), q)
	if err != nil {
		writeInternal(w, r, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: total, Limit: q.Limit, Offset: q.Offset})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note with its front-matter, body and media
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note file name"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeError(w, r, http.StatusBadRequest, "path is required")
		return
	}
	note, err := h.notes.GetNote(r.Context(), path)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case err != nil:
		writeInternal(w, r, "get note", err, slog.String("path", path))
	default:
		writeJSON(w, http.StatusOK, note)
	}
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
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := strings.TrimSpace(params.Get("q"))
	if q == "" {
		writeError(w, r, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, err := queryInt(params, "limit")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	results, err := h.notes.Search(r.Context(), q, limit)
	if err != nil {
		writeInternal(w, r, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: q, Results: results})
}
