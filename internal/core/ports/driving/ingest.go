package driving

import (
	"context"
	"io"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// Upload is one file handed to the ingestion service.
type Upload struct {
	// Name is the original file name. Classification rules test it.
	Name string

	// Kind selects the text extractor.
	Kind domain.DocumentKind

	// Reader provides the file bytes.
	Reader io.Reader

	// Tag marks initial versus followup documents.
	Tag domain.DocumentTag
}

// IngestResult is the outcome of ingesting one upload.
type IngestResult struct {
	// Document is the stored document.
	Document domain.SourceDocument

	// ChunkCount is the number of chunks produced.
	ChunkCount int

	// Warnings lists non-fatal ingestion problems (empty extraction,
	// unreadable regions).
	Warnings []string
}

// IngestService turns uploads into classified, chunked, stored documents.
// Ingestion mutates the evidence index and must not run concurrently with
// a generation batch over the same document set.
type IngestService interface {
	// Ingest extracts, redacts, classifies, chunks and stores one upload.
	Ingest(ctx context.Context, upload Upload) (*IngestResult, error)

	// Remove deletes a document and its chunks.
	Remove(ctx context.Context, documentID string) error

	// List returns all stored documents.
	List(ctx context.Context) ([]domain.SourceDocument, error)

	// Correct replaces a document's classification or episode date.
	// Empty arguments leave the respective field unchanged.
	Correct(ctx context.Context, documentID string, docType domain.DocumentType, episodeDate string) error
}
