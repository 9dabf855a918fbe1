package driven

import (
	"context"
	"io"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// TextExtractor turns an uploaded file into raw text. The core treats any
// extractor uniformly; it does not care whether the origin is plain text,
// a word-processor document, or text lifted from a PDF upstream.
type TextExtractor interface {
	// Kind returns the document kind this extractor handles.
	Kind() domain.DocumentKind

	// Extract reads the file and returns its text. Empty text is not an
	// error: the chunker simply produces zero chunks and the warnings
	// are surfaced upward.
	Extract(ctx context.Context, name string, r io.Reader) (*ExtractResult, error)
}

// ExtractResult is the output of text extraction.
type ExtractResult struct {
	// Text is the extracted raw text.
	Text string

	// Warnings lists non-fatal extraction problems (skipped parts,
	// unreadable regions).
	Warnings []string
}

// ExtractorRegistry selects an extractor by document kind.
type ExtractorRegistry interface {
	// ForKind returns the extractor for a kind.
	// Returns domain.ErrUnsupportedKind when none is registered.
	ForKind(kind domain.DocumentKind) (TextExtractor, error)

	// Kinds returns all registered kinds.
	Kinds() []domain.DocumentKind
}
