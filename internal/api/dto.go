package api

import (
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/predict"
	"github.com/starford/notegraph/internal/session"
)

// GraphResponse is the link graph (aliased from the domain layer).
type GraphResponse = noteservice.GraphResponse

// LinkSet is a note's neighbourhood (aliased from the domain layer).
type LinkSet = noteservice.LinkSet

// StatusResponse is the indexing status (aliased from the session).
type StatusResponse = session.Status

// TaskListResponse wraps task listings.
type TaskListResponse struct {
	Tasks []models.Task `json:"tasks" validate:"required"`
	Total int           `json:"total" example:"3" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchHit `json:"results" validate:"required"`
}

// SuggestionResponse wraps prediction suggestions.
type SuggestionResponse struct {
	Suggestions []predict.Suggestion `json:"suggestions" validate:"required"`
}
