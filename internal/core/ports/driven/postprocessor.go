package driven

import (
	"context"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// PostProcessor transforms document content during ingestion.
// Processors run in a pipeline: redaction first, then chunking.
type PostProcessor interface {
	// Name returns the processor's registry name.
	Name() string

	// Process runs the processor. The first processor in a pipeline
	// receives nil chunks and may rewrite the document text (redaction);
	// the chunking processor creates the chunks; later processors may
	// modify them.
	Process(ctx context.Context, doc *domain.SourceDocument, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline runs a document through an ordered processor chain.
type PostProcessorPipeline interface {
	// Process runs the document through all processors in order.
	Process(ctx context.Context, doc *domain.SourceDocument) ([]domain.Chunk, error)
}
