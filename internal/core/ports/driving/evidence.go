package driving

import (
	"context"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// RankOptions configures one evidence ranking request.
type RankOptions struct {
	// Strategy selects the ranking strategy. Semantic falls back to the
	// lexical result when the upgrade fails or returns nothing.
	Strategy domain.RankStrategy

	// IncludeUnmatchedSources guarantees at least one chunk from every
	// distinct document even when its score is below the cutoff, bounded
	// by the limit. Citation-repair strategies downstream rely on it.
	IncludeUnmatchedSources bool

	// SourceCoverageFirst moves the first chunk of every distinct source
	// to the front of the selection (stable).
	SourceCoverageFirst bool

	// PrioritySourceIDs moves chunks of the named documents to the front
	// en masse (stable). Used for update re-generation.
	PrioritySourceIDs []string
}

// EvidenceRanker selects and orders the chunks most relevant to a query.
type EvidenceRanker interface {
	// Rank scores the chunks against the query and returns the top limit
	// in relevance-and-coverage order. The returned selection is
	// deduplicated by chunk ID.
	Rank(ctx context.Context, query string, chunks []domain.Chunk, limit int, opts RankOptions) []domain.Chunk
}
