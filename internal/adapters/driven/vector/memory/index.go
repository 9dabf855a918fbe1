// Package memory provides an in-memory brute-force vector index.
//
// The corpus for one case rarely exceeds a few thousand chunks, so an
// exact cosine scan is both simpler and faster than maintaining an
// approximate index.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex stores chunk embeddings in memory and searches them with an
// exact cosine-similarity scan. Safe for concurrent use.
type VectorIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewVectorIndex creates an empty in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		vectors: make(map[string][]float32),
	}
}

// Add inserts or replaces the vector for the given chunk ID.
func (idx *VectorIndex) Add(_ context.Context, chunkID string, embedding []float32) error {
	copied := make([]float32, len(embedding))
	copy(copied, embedding)

	idx.mu.Lock()
	idx.vectors[chunkID] = copied
	idx.mu.Unlock()
	return nil
}

// Delete removes a vector from the index. Deleting an absent chunk is a
// no-op.
func (idx *VectorIndex) Delete(_ context.Context, chunkID string) error {
	idx.mu.Lock()
	delete(idx.vectors, chunkID)
	idx.mu.Unlock()
	return nil
}

// Search finds the k nearest neighbours to the query vector by cosine
// similarity. Vectors with mismatched dimensions are skipped.
func (idx *VectorIndex) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	idx.mu.RLock()
	hits := make([]driven.VectorHit, 0, len(idx.vectors))
	for chunkID, vector := range idx.vectors {
		if len(vector) != len(query) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    chunkID,
			Similarity: cosine(query, vector),
		})
	}
	idx.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (idx *VectorIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Close releases resources.
func (idx *VectorIndex) Close() error {
	idx.mu.Lock()
	idx.vectors = make(map[string][]float32)
	idx.mu.Unlock()
	return nil
}

// cosine computes the cosine similarity between two equal-length vectors.
// Zero vectors yield zero similarity.
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
