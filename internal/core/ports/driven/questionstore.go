package driven

import (
	"context"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// QuestionStore persists the open-question ledger.
type QuestionStore interface {
	// Save stores or updates a question.
	Save(ctx context.Context, q *domain.OpenQuestion) error

	// Get retrieves a question by ID.
	Get(ctx context.Context, id string) (*domain.OpenQuestion, error)

	// ListBySection returns all questions for a section, including
	// resolved ones.
	ListBySection(ctx context.Context, sectionID string) ([]domain.OpenQuestion, error)

	// List returns all questions ordered by CreatedAt.
	List(ctx context.Context) ([]domain.OpenQuestion, error)

	// Delete hard-removes a question. Only explicit user removal calls
	// this; the merge path soft-deletes via StatusResolved.
	Delete(ctx context.Context, id string) error
}
