package services

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
	"github.com/editnori/psych-intake-brief-sub001/internal/logger"
)

// Ensure EvidenceRanker implements the interface.
var _ driving.EvidenceRanker = (*EvidenceRanker)(nil)

// scoredChunk holds a chunk with its lexical relevance score.
type scoredChunk struct {
	chunk domain.Chunk
	score float64
}

// EvidenceRanker selects the chunks most relevant to a query.
//
// The embedding service and vector index are optional. When both are
// present and the semantic strategy is requested, the ranker computes the
// lexical result first and then tries to upgrade it; any failure or empty
// semantic result is swallowed and the lexical result stands. This
// fallback discipline is a hard design rule: ranking never blocks on the
// upgrade.
type EvidenceRanker struct {
	embeddingService driven.EmbeddingService
	vectorIndex      driven.VectorIndex
}

// NewEvidenceRanker creates a new evidence ranker.
// The embeddingService and vectorIndex parameters are optional (can be nil).
func NewEvidenceRanker(embeddingService driven.EmbeddingService, vectorIndex driven.VectorIndex) *EvidenceRanker {
	return &EvidenceRanker{
		embeddingService: embeddingService,
		vectorIndex:      vectorIndex,
	}
}

// Rank scores the chunks against the query and returns the top limit in
// relevance-and-coverage order.
func (r *EvidenceRanker) Rank(
	ctx context.Context, query string, chunks []domain.Chunk, limit int, opts driving.RankOptions,
) []domain.Chunk {
	logger.Section("Evidence Ranking")
	logger.Debug("Query: %q, chunks: %d, limit: %d, strategy: %s",
		query, len(chunks), limit, opts.Strategy)

	if limit <= 0 || len(chunks) == 0 {
		return nil
	}
	chunks = dedupeChunks(chunks)

	scored := scoreChunks(query, chunks)

	var selection []domain.Chunk
	switch opts.Strategy {
	case domain.RankDiversityLexical:
		selection = selectDiverse(scored, limit)
	default:
		// Weighted-lexical is the base for semantic too.
		selection = selectTop(scored, limit)
	}

	if opts.Strategy == domain.RankSemantic {
		if upgraded := r.semanticUpgrade(ctx, query, chunks, limit); len(upgraded) > 0 {
			logger.Debug("Semantic upgrade adopted (%d chunks)", len(upgraded))
			selection = upgraded
		} else {
			logger.Debug("Semantic upgrade unavailable, keeping lexical result")
		}
	}

	if opts.IncludeUnmatchedSources {
		selection = ensureSourceRepresentation(selection, scored, limit)
	}

	if opts.SourceCoverageFirst {
		selection = ReorderSourceCoverage(selection)
	}
	if len(opts.PrioritySourceIDs) > 0 {
		selection = ReorderPriorityFirst(selection, opts.PrioritySourceIDs)
	}

	logger.Debug("Selected %d chunks", len(selection))
	return selection
}

// scoreChunks computes the weighted-lexical score for every chunk:
// token overlap with the query, multiplied by the document weight and a
// recency factor derived from the episode date.
func scoreChunks(query string, chunks []domain.Chunk) []scoredChunk {
	queryTokens := tokenise(query)
	scored := make([]scoredChunk, len(chunks))
	for i, c := range chunks {
		overlap := tokenOverlap(queryTokens, tokenise(c.Text))
		weight := c.DocWeight
		if weight <= 0 {
			weight = domain.TypeOther.Weight()
		}
		scored[i] = scoredChunk{
			chunk: c,
			score: overlap * weight * recencyFactor(c.EpisodeDate),
		}
	}
	return scored
}

// selectTop returns the limit highest-scoring chunks with positive score.
func selectTop(scored []scoredChunk, limit int) []domain.Chunk {
	ordered := sortByScore(scored)

	out := make([]domain.Chunk, 0, limit)
	for _, s := range ordered {
		if s.score <= 0 {
			break
		}
		out = append(out, s.chunk)
		if len(out) == limit {
			break
		}
	}
	return out
}

// selectDiverse walks the scores while enforcing round-robin coverage
// across distinct sources: every represented source yields one chunk per
// round before any source contributes a second, so a single long document
// cannot crowd out the rest.
func selectDiverse(scored []scoredChunk, limit int) []domain.Chunk {
	ordered := sortByScore(scored)

	// Group by source, preserving score order within each group.
	groups := make(map[string][]scoredChunk)
	var sourceOrder []string
	for _, s := range ordered {
		if s.score <= 0 {
			continue
		}
		if _, ok := groups[s.chunk.SourceID]; !ok {
			sourceOrder = append(sourceOrder, s.chunk.SourceID)
		}
		groups[s.chunk.SourceID] = append(groups[s.chunk.SourceID], s)
	}

	out := make([]domain.Chunk, 0, limit)
	for round := 0; len(out) < limit; round++ {
		took := false
		for _, src := range sourceOrder {
			group := groups[src]
			if round >= len(group) {
				continue
			}
			out = append(out, group[round].chunk)
			took = true
			if len(out) == limit {
				break
			}
		}
		if !took {
			break
		}
	}
	return out
}

// semanticUpgrade tries to replace the lexical selection with a vector
// similarity ranking. Any failure returns nil and is only logged: the
// caller keeps the lexical result it already has.
func (r *EvidenceRanker) semanticUpgrade(
	ctx context.Context, query string, chunks []domain.Chunk, limit int,
) []domain.Chunk {
	if r.embeddingService == nil || r.vectorIndex == nil {
		return nil
	}

	embedding, err := r.embeddingService.Embed(ctx, query)
	if err != nil {
		logger.Warn("Query embedding failed: %v", err)
		return nil
	}

	hits, err := r.vectorIndex.Search(ctx, embedding, limit)
	if err != nil {
		logger.Warn("Vector search failed: %v", err)
		return nil
	}
	if len(hits) == 0 {
		return nil
	}

	byID := make(map[string]domain.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	out := make([]domain.Chunk, 0, len(hits))
	for _, hit := range hits {
		if c, ok := byID[hit.ChunkID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// ensureSourceRepresentation guarantees at least one chunk per distinct
// source within the limit. Missing sources contribute their best-scoring
// chunk even when it falls below the cutoff; room is made by trimming the
// lowest-scoring chunks of sources that are represented more than once.
func ensureSourceRepresentation(selection []domain.Chunk, scored []scoredChunk, limit int) []domain.Chunk {
	represented := make(map[string]bool, len(selection))
	for _, c := range selection {
		represented[c.SourceID] = true
	}

	// Best chunk per missing source, in score order.
	best := make(map[string]scoredChunk)
	var missingOrder []string
	for _, s := range sortByScore(scored) {
		src := s.chunk.SourceID
		if represented[src] {
			continue
		}
		if _, ok := best[src]; !ok {
			best[src] = s
			missingOrder = append(missingOrder, src)
		}
	}
	if len(missingOrder) == 0 {
		return selection
	}

	for _, src := range missingOrder {
		if len(selection) >= limit {
			if !trimOverrepresented(&selection) {
				break
			}
		}
		selection = append(selection, best[src].chunk)
	}
	return selection
}

// trimOverrepresented removes the last chunk whose source appears more
// than once in the selection. Returns false when every source has exactly
// one representative and nothing can be trimmed.
func trimOverrepresented(selection *[]domain.Chunk) bool {
	counts := make(map[string]int)
	for _, c := range *selection {
		counts[c.SourceID]++
	}
	s := *selection
	for i := len(s) - 1; i >= 0; i-- {
		if counts[s[i].SourceID] > 1 {
			*selection = append(s[:i], s[i+1:]...)
			return true
		}
	}
	return false
}

// ReorderSourceCoverage moves the first occurrence of every distinct
// source to the front while preserving relative order within each group.
// This keeps at least one excerpt per cited source ahead of any prompt
// truncation.
func ReorderSourceCoverage(chunks []domain.Chunk) []domain.Chunk {
	seen := make(map[string]bool, len(chunks))
	heads := make([]domain.Chunk, 0, len(chunks))
	rest := make([]domain.Chunk, 0, len(chunks))

	for _, c := range chunks {
		if !seen[c.SourceID] {
			seen[c.SourceID] = true
			heads = append(heads, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(heads, rest...)
}

// ReorderPriorityFirst moves chunks belonging to the designated sources to
// the front en masse, preserving relative order within both groups.
func ReorderPriorityFirst(chunks []domain.Chunk, prioritySourceIDs []string) []domain.Chunk {
	priority := make(map[string]bool, len(prioritySourceIDs))
	for _, id := range prioritySourceIDs {
		priority[id] = true
	}

	front := make([]domain.Chunk, 0, len(chunks))
	rest := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if priority[c.SourceID] {
			front = append(front, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(front, rest...)
}

// sortByScore orders chunks by descending score, stable on input order.
func sortByScore(scored []scoredChunk) []scoredChunk {
	ordered := make([]scoredChunk, len(scored))
	copy(ordered, scored)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].score > ordered[j].score
	})
	return ordered
}

// dedupeChunks removes duplicate chunk ids, keeping the first occurrence.
func dedupeChunks(chunks []domain.Chunk) []domain.Chunk {
	seen := make(map[string]bool, len(chunks))
	out := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}

// tokenise lowercases text and splits it into alphanumeric tokens.
func tokenise(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// tokenOverlap counts how many distinct query tokens occur in the chunk,
// normalised by query length.
func tokenOverlap(queryTokens, chunkTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	present := make(map[string]bool, len(chunkTokens))
	for _, t := range chunkTokens {
		present[t] = true
	}
	matched := 0
	for _, t := range uniqueTokens(queryTokens) {
		if present[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(uniqueTokens(queryTokens)))
}

// uniqueTokens deduplicates a token list, preserving order.
func uniqueTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// recencyFactor scales scores by document age: recent episodes rank
// slightly above older ones, and undated documents sit in the middle.
func recencyFactor(episodeDate string) float64 {
	if episodeDate == "" {
		return 1.0
	}
	t, err := time.Parse("2006-01-02", episodeDate)
	if err != nil {
		return 1.0
	}

	age := time.Since(t)
	switch {
	case age < 90*24*time.Hour:
		return 1.2
	case age < 365*24*time.Hour:
		return 1.1
	case age < 3*365*24*time.Hour:
		return 1.0
	default:
		return 0.9
	}
}
