// Package noteservice is the read side of the vault shared by the HTTP API
// and the MCP server.
package noteservice

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/starford/tgvault/internal/apperr"
	"github.com/starford/tgvault/internal/index"
	"github.com/starford/tgvault/internal/models"
	"github.com/starford/tgvault/internal/parser"
	"github.com/starford/tgvault/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	models.NoteRecord
	Content     string         `json:"content"`
	Body        string         `json:"body"`
	Media       []string       `json:"media"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
}

// Service reads notes from disk and the catalogue.
type Service struct {
	store storage.Provider
	db    index.NoteIndex
}

// NewService creates a new note service.
func NewService(store storage.Provider, db index.NoteIndex) *Service {
	return &Service{store: store, db: db}
}

// GetNote reads a note from disk and parses it. Catalogue timestamps are
// attached when the note is indexed.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	if !isNotePath(path) {
		return nil, apperr.ErrNotFound
	}
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}

	detail := &NoteDetail{
		NoteRecord: models.NoteRecord{
			Path:      path,
			Title:     res.Title,
			Channel:   res.Channel,
			Author:    res.Author,
			SourceURL: res.SourceURL,
			Tags:      nonNilSlice(res.Tags),
			Checksum:  storage.Checksum(data),
			Date:      res.Date,
		},
		Content:     string(data),
		Body:        res.Body,
		Media:       nonNilSlice(res.Media),
		Frontmatter: res.Frontmatter,
	}
	if rec, err := s.db.GetNote(path); err == nil {
		detail.UpdatedAt = rec.UpdatedAt
	}
	return detail, nil
}

// ListNotes returns one page of catalogued notes and the filtered total.
func (s *Service) ListNotes(_ context.Context, q index.ListQuery) ([]models.NoteRecord, int, error) {
	return s.db.ListNotes(q)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// isNotePath rejects anything that is not a note file, including media under
// the assets directory.
func isNotePath(p string) bool {
	p = strings.TrimPrefix(p, "/")
	if !strings.HasSuffix(p, ".md") {
		return false
	}
	return !strings.HasPrefix(p, storage.AssetsDir+"/")
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
