package driven

import (
	"context"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// DocumentStore persists source documents and their chunks.
// Backed by SQLite; an in-memory variant backs the tests.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.SourceDocument) error

	// SaveChunks replaces the stored chunks for a document.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.SourceDocument, error)

	// GetChunks retrieves all chunks for a document.
	GetChunks(ctx context.Context, sourceID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// ListDocuments returns all documents ordered by AddedAt.
	ListDocuments(ctx context.Context) ([]domain.SourceDocument, error)

	// ListChunks returns the chunks of every stored document. This is
	// the evidence index handed to the ranker; it is read-only during a
	// generation batch.
	ListChunks(ctx context.Context) ([]domain.Chunk, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error
}

// SectionStore persists accepted section results. Prior accepted content
// is only ever replaced by a newer accepted result, never by a failure.
type SectionStore interface {
	// SaveResult stores the accepted result for a section.
	SaveResult(ctx context.Context, sectionID string, result *domain.GenerationResult) error

	// GetResult retrieves the accepted result for a section.
	GetResult(ctx context.Context, sectionID string) (*domain.GenerationResult, error)

	// ListResults returns accepted results keyed by section ID.
	ListResults(ctx context.Context) (map[string]*domain.GenerationResult, error)
}
