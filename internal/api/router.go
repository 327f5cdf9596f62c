package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with the read-only API mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// notesRoot is used to resolve the assets directory.
func NewRouter(svc NoteReader, authEnabled bool, token string, sseHandler http.Handler, notesRoot string) chi.Router {
	h := NewHandler(svc)
	ah := NewAssetHandler(notesRoot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetNote)
	r.Get("/search", h.Search)
	r.Get("/assets/{filename}", ah.ServeFile)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}
	return r
}
