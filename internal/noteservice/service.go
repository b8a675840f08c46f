// Package noteservice is the read-side query layer shared by the REST API
// and the MCP server.
package noteservice

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/predict"
	"github.com/starford/notegraph/internal/session"
)

// Index is the session surface the service reads from.
type Index interface {
	Graph() map[string][]string
	Links(file string) ([]string, error)
	Backlinks(file string) ([]string, error)
	Tasks() []models.Task
	Search(ctx context.Context, query string) ([]models.SearchHit, error)
	Snapshot() *predict.Snapshot
	Status() session.Status
}

// DefaultLimit caps list results when the caller gives no limit.
const DefaultLimit = 20

// GraphResponse is the full link graph.
type GraphResponse struct {
	Nodes map[string][]string `json:"nodes"`
	Count int                 `json:"count"`
}

// LinkSet holds the neighbourhood of one note.
type LinkSet struct {
	File      string   `json:"file"`
	Links     []string `json:"links"`
	Backlinks []string `json:"backlinks"`
}

// TaskFilter narrows a task listing.
type TaskFilter struct {
	File   string
	Status models.TaskStatus
}

// Validate implements validation.Validatable.
func (f TaskFilter) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Status, validation.In(models.StatusTodo, models.StatusDoing, models.StatusDone)),
	)
}

// Service answers graph, task, search and prediction queries.
type Service struct {
	idx        Index
	maxResults int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxResults caps every list the service returns. Requested limits above
// n are clamped to n.
func WithMaxResults(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// NewService creates a new note service.
func NewService(idx Index, opts ...ServiceOption) *Service {
	s := &Service{idx: idx, maxResults: DefaultLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NoteName canonicalises a user-supplied note reference: leading slashes
// are dropped and the .md extension is appended when missing.
func NoteName(raw string) string {
	name := strings.TrimPrefix(strings.TrimSpace(raw), "/")
	if name == "" || models.IsNote(name) {
		return name
	}
	return name + models.Ext
}

// Graph returns the whole link graph.
func (s *Service) Graph(_ context.Context) GraphResponse {
	g := s.idx.Graph()
	return GraphResponse{Nodes: g, Count: len(g)}
}

// Links returns the outgoing links and backlinks of a note.
func (s *Service) Links(_ context.Context, file string) (*LinkSet, error) {
	name := NoteName(file)
	if name == "" {
		return nil, fmt.Errorf("%w: file is required", apperr.ErrInvalidInput)
	}
	links, err := s.idx.Links(name)
	if err != nil {
		return nil, err
	}
	back, err := s.idx.Backlinks(name)
	if err != nil {
		return nil, err
	}
	return &LinkSet{File: name, Links: nonNilSlice(links), Backlinks: nonNilSlice(back)}, nil
}

// Tasks lists tasks matching the filter.
func (s *Service) Tasks(_ context.Context, f TaskFilter) ([]models.Task, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	file := NoteName(f.File)
	out := []models.Task{}
	for _, t := range s.idx.Tasks() {
		if file != "" && t.File != file {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Search runs a full-text query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", apperr.ErrInvalidInput)
	}
	hits, err := s.idx.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return capped(nonNilSlice(hits), s.limit(limit)), nil
}

// Complete suggests words for a prefix.
func (s *Service) Complete(_ context.Context, prefix string, limit int) ([]predict.Suggestion, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, fmt.Errorf("%w: prefix is required", apperr.ErrInvalidInput)
	}
	snap := s.idx.Snapshot()
	if snap == nil {
		return nil, apperr.ErrNotReady
	}
	return capped(nonNilSlice(snap.Complete(prefix)), s.limit(limit)), nil
}

// Next suggests the word following prev and word. prev may be empty.
func (s *Service) Next(_ context.Context, prev, word string, limit int) ([]predict.Suggestion, error) {
	if strings.TrimSpace(word) == "" {
		return nil, fmt.Errorf("%w: word is required", apperr.ErrInvalidInput)
	}
	snap := s.idx.Snapshot()
	if snap == nil {
		return nil, apperr.ErrNotReady
	}
	return capped(nonNilSlice(snap.Next(prev, word)), s.limit(limit)), nil
}

// Status reports indexing progress.
func (s *Service) Status(_ context.Context) session.Status {
	return s.idx.Status()
}

func (s *Service) limit(requested int) int {
	if requested <= 0 || requested > s.maxResults {
		return s.maxResults
	}
	return requested
}

func capped[T any](s []T, limit int) []T {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
