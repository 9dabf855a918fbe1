package domain

// SectionSpec describes one note section to be generated.
type SectionSpec struct {
	// ID identifies the target section. At most one generation runs per
	// target at any instant.
	ID string

	// Title is the section heading, e.g. "Presenting Problem".
	Title string

	// Guidance is the section-specific instruction block included in the
	// generation prompt.
	Guidance string

	// Format holds formatting rules (narrative, bullet list, ...).
	Format string
}

// Citation links a piece of generated text to a specific evidence chunk.
// A citation must always resolve back to a chunk in the evidence set;
// unresolvable citations are dropped, never fabricated.
type Citation struct {
	// SourceID is the cited document.
	SourceID string

	// SourceName is the cited document's display name.
	SourceName string

	// ChunkID is the cited chunk.
	ChunkID string

	// Excerpt is the supporting text from the chunk.
	Excerpt string
}

// GenerationResult is the atomic unit exchanged between the generator and
// its caller. Invariant, enforced by the generator: non-empty Text implies
// non-empty Citations.
type GenerationResult struct {
	// Text is the generated section prose.
	Text string

	// Citations ground every claim in Text to evidence chunks.
	Citations []Citation
}

// GenerationJob is one unit of work for the batch runner. It is ephemeral:
// created per request and discarded when the worker finishes or the job is
// superseded.
type GenerationJob struct {
	// TargetID is the section or question this job produces. Used for
	// per-target cancellation: a new job for the same target cancels any
	// in-flight predecessor.
	TargetID string

	// Section describes what to generate.
	Section SectionSpec

	// Query is the evidence-ranking query for this job.
	Query string

	// PrioritySourceIDs lists documents whose chunks are moved to the
	// front of the evidence block (update re-generation).
	PrioritySourceIDs []string
}

// Usage accumulates token accounting across generation calls.
type Usage struct {
	// PromptTokens is the total prompt-side token count.
	PromptTokens int

	// CompletionTokens is the total generated token count.
	CompletionTokens int
}

// Add accumulates another usage sample.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
}

// JobOutcome records the terminal state of one batch job.
type JobOutcome struct {
	// TargetID is the job's target.
	TargetID string

	// Result is the accepted generation, nil when the job failed.
	Result *GenerationResult

	// Err is the job-scoped failure, nil when the job succeeded.
	// A non-nil Err never aborts sibling jobs.
	Err error
}

// BatchReport is the consolidated pass produced after every job in a batch
// has reached a terminal state.
type BatchReport struct {
	// Outcomes holds one entry per submitted job.
	Outcomes []JobOutcome

	// UncitedSources lists documents that contributed zero accepted
	// citations across the whole batch. Informational, not blocking.
	UncitedSources []string

	// Usage is the cumulative token usage for the batch.
	Usage Usage
}

// Succeeded returns the number of jobs that produced an accepted result.
func (r *BatchReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of jobs that ended in a job-scoped error.
func (r *BatchReport) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}
