package driving

import (
	"context"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// GenerateOptions configures one section generation.
type GenerateOptions struct {
	// Partials receives in-progress prose while the model streams.
	// Sends are non-blocking: a slow receiver sees fewer intermediate
	// states, never a stalled generation. Nil disables streaming.
	Partials chan<- string

	// EvidenceLimit is the nominal chunk budget. The widened-evidence
	// repair step may exceed it up to the available chunk count.
	EvidenceLimit int

	// EvidencePool is the full ranked chunk pool behind the evidence
	// selection. The widened-evidence repair step draws from it, roughly
	// doubling the selection bounded by the pool size. Nil disables
	// widening and the step reuses the original evidence.
	EvidencePool []domain.Chunk
}

// SectionGenerator produces citation-verified section text.
type SectionGenerator interface {
	// Generate runs one generation request through validation and, when
	// needed, the citation repair ladder. It returns a typed error only
	// when all repair paths are exhausted or the transport itself fails.
	// Every citation in an accepted result resolves to a chunk in the
	// evidence set passed in.
	Generate(ctx context.Context, section domain.SectionSpec, evidence []domain.Chunk, opts GenerateOptions) (*domain.GenerationResult, error)
}

// BatchRunner executes many generation jobs under a fixed worker budget.
type BatchRunner interface {
	// RunAll runs the jobs with at most maxWorkers concurrent workers
	// (zero means min(3, len(jobs))). Each job's failure is isolated;
	// the report is assembled only after every job reaches a terminal
	// state exactly once.
	RunAll(ctx context.Context, jobs []domain.GenerationJob, maxWorkers int) *domain.BatchReport

	// Cancel discards any in-flight generation for the target. The
	// cancelled job's result never reaches the section store.
	Cancel(targetID string)
}
