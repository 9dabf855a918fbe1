// Package redactor provides an irreversible identifier-redaction processor.
package redactor

import (
	"context"
	"regexp"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// rule pairs an identifier pattern with its replacement token.
type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules are applied in order. The DOB rule requires a label so that
// episode dates elsewhere in the document survive redaction.
var rules = []rule{
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[SSN]"},
	{regexp.MustCompile(`(?i)\bMRN[:#]?\s*\d{4,}\b`), "MRN [MRN]"},
	{regexp.MustCompile(`(?i)\b(?:DOB|date of birth)[:\s]+\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`), "DOB [DOB]"},
	// The area code alternation keeps the parenthesised form in one match:
	// a \b cannot anchor before "(".
	{regexp.MustCompile(`(?:\+?1[\s.-]?)?(?:\(\d{3}\)|\b\d{3})[\s.-]\d{3}[\s.-]\d{4}\b`), "[PHONE]"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[EMAIL]"},
}

// Processor substitutes patient identifiers with fixed tokens.
// It implements the PostProcessor interface and must run before the
// chunker so that no identifier ever reaches a chunk or a prompt. The
// transform is applied once at ingestion and is not reversible.
type Processor struct{}

// New creates a new redactor processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "redactor"
}

// Process rewrites the document text with identifiers substituted.
// Chunks pass through untouched; the chunker runs later in the pipeline.
func (p *Processor) Process(_ context.Context, doc *domain.SourceDocument, chunks []domain.Chunk) ([]domain.Chunk, error) {
	doc.RawText = Redact(doc.RawText)
	return chunks, nil
}

// Redact applies all identifier substitutions to text.
func Redact(text string) string {
	for _, r := range rules {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}
