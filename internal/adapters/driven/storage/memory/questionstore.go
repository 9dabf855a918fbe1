package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
)

// Ensure QuestionStore implements the interface.
var _ driven.QuestionStore = (*QuestionStore)(nil)

// QuestionStore is an in-memory implementation of driven.QuestionStore.
type QuestionStore struct {
	mu        sync.RWMutex
	questions map[string]domain.OpenQuestion
}

// NewQuestionStore creates a new in-memory question store.
func NewQuestionStore() *QuestionStore {
	return &QuestionStore{
		questions: make(map[string]domain.OpenQuestion),
	}
}

// Save stores or updates a question.
func (s *QuestionStore) Save(_ context.Context, q *domain.OpenQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[q.ID] = *q
	return nil
}

// Get retrieves a question by ID.
func (s *QuestionStore) Get(_ context.Context, id string) (*domain.OpenQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &q, nil
}

// ListBySection returns all questions for a section, including resolved ones.
func (s *QuestionStore) ListBySection(_ context.Context, sectionID string) ([]domain.OpenQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.OpenQuestion
	for id := range s.questions {
		if s.questions[id].SectionID == sectionID {
			out = append(out, s.questions[id])
		}
	}
	sortQuestions(out)
	return out, nil
}

// List returns all questions ordered by CreatedAt.
func (s *QuestionStore) List(_ context.Context) ([]domain.OpenQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.OpenQuestion, 0, len(s.questions))
	for id := range s.questions {
		out = append(out, s.questions[id])
	}
	sortQuestions(out)
	return out, nil
}

// Delete hard-removes a question.
func (s *QuestionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.questions, id)
	return nil
}

// sortQuestions orders by creation time, then ID for stability.
func sortQuestions(questions []domain.OpenQuestion) {
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].CreatedAt.Equal(questions[j].CreatedAt) {
			return questions[i].ID < questions[j].ID
		}
		return questions[i].CreatedAt.Before(questions[j].CreatedAt)
	})
}
