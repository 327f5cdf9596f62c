package api

import (
	"github.com/starford/tgvault/internal/index"
	"github.com/starford/tgvault/internal/models"
	"github.com/starford/tgvault/internal/noteservice"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListResponse is one page of the catalogue.
type NoteListResponse struct {
	Notes  []models.NoteRecord `json:"notes" validate:"required"`
	Total  int                 `json:"total" example:"42" validate:"required"`
	Limit  int                 `json:"limit" example:"50"`
	Offset int                 `json:"offset" example:"0"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Query   string               `json:"query"`
	Results []index.SearchResult `json:"results" validate:"required"`
}
