package mcp

import (
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
)

// Ports aggregates the port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ranker selects and orders evidence chunks.
	Ranker driving.EvidenceRanker

	// Documents is the stored document and chunk index.
	Documents driven.DocumentStore

	// Generator produces citation-verified section text. Nil when no
	// completion service is configured; the generate tool then errors.
	Generator driving.SectionGenerator

	// Questions is the open-question ledger.
	Questions driving.QuestionLedger

	// Sections holds accepted section results.
	Sections driven.SectionStore
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Ranker == nil {
		return ErrMissingRanker
	}
	if p.Documents == nil {
		return ErrMissingDocumentStore
	}
	// Generator, Questions and Sections are optional: the corresponding
	// tools and resources degrade instead of failing startup.
	return nil
}
