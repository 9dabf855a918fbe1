package memory

import (
	"context"
	"sync"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
)

// Ensure SectionStore implements the interface.
var _ driven.SectionStore = (*SectionStore)(nil)

// SectionStore is an in-memory implementation of driven.SectionStore.
type SectionStore struct {
	mu      sync.RWMutex
	results map[string]domain.GenerationResult
}

// NewSectionStore creates a new in-memory section store.
func NewSectionStore() *SectionStore {
	return &SectionStore{
		results: make(map[string]domain.GenerationResult),
	}
}

// SaveResult stores the accepted result for a section.
func (s *SectionStore) SaveResult(_ context.Context, sectionID string, result *domain.GenerationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[sectionID] = *result
	return nil
}

// GetResult retrieves the accepted result for a section.
func (s *SectionStore) GetResult(_ context.Context, sectionID string) (*domain.GenerationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[sectionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &result, nil
}

// ListResults returns accepted results keyed by section ID.
func (s *SectionStore) ListResults(_ context.Context) (map[string]*domain.GenerationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*domain.GenerationResult, len(s.results))
	for sectionID := range s.results {
		result := s.results[sectionID]
		out[sectionID] = &result
	}
	return out, nil
}
