package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tgvault/internal/storage"
)

// AssetHandler serves downloaded media from the assets directory.
type AssetHandler struct {
	dir string
}

// NewAssetHandler creates a handler for <notesRoot>/assets.
func NewAssetHandler(notesRoot string) *AssetHandler {
	return &AssetHandler{dir: filepath.Join(notesRoot, storage.AssetsDir)}
}

// safeName accepts a plain file name only and returns its absolute path.
func (h *AssetHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != name || cleaned != filepath.Base(cleaned) || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	abs := filepath.Join(h.dir, cleaned)
	if !strings.HasPrefix(abs, h.dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes assets directory")
	}
	return abs, nil
}

// ServeFile handles GET /api/assets/{filename}.
func (h *AssetHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := h.safeName(chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	info, statErr := os.Stat(abs)
	if statErr != nil || info.IsDir() {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeFile(w, r, abs)
}
