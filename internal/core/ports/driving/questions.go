package driving

import (
	"context"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// QuestionLedger maintains the open-question state derived from generated
// section text.
type QuestionLedger interface {
	// Sync extracts questions from freshly generated section text and
	// merges them idempotently against prior state. Returns the
	// section's questions after the merge.
	Sync(ctx context.Context, sectionID, generatedText string) ([]domain.OpenQuestion, error)

	// Answer attaches an answer and moves the question to answered.
	Answer(ctx context.Context, questionID, answer string) error

	// ClearAnswer removes the answer and reopens the question.
	ClearAnswer(ctx context.Context, questionID string) error

	// Remove hard-deletes a question (explicit user removal only).
	Remove(ctx context.Context, questionID string) error

	// List returns all questions across sections.
	List(ctx context.Context) ([]domain.OpenQuestion, error)
}
