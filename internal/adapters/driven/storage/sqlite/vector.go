package sqlite

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
)

// vectorIndex implements driven.VectorIndex on the chunk_vectors table,
// so embeddings written at ingestion survive into later invocations.
// Rows cascade away with their chunk. Search is an exact cosine scan;
// one case rarely exceeds a few thousand chunks.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// VectorIndex returns a VectorIndex interface backed by this store.
func (s *Store) VectorIndex() driven.VectorIndex {
	return &vectorIndex{store: s}
}

// Add inserts or replaces the vector for the given chunk ID.
func (idx *vectorIndex) Add(ctx context.Context, chunkID string, embedding []float32) error {
	_, err := idx.store.db.ExecContext(ctx, `
		INSERT INTO chunk_vectors (chunk_id, vector)
		VALUES (?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET vector = excluded.vector
	`, chunkID, encodeVector(embedding))

	if err != nil {
		return fmt.Errorf("saving vector: %w", err)
	}
	return nil
}

// Delete removes a vector from the index. Deleting an absent chunk is a
// no-op.
func (idx *vectorIndex) Delete(ctx context.Context, chunkID string) error {
	_, err := idx.store.db.ExecContext(ctx,
		"DELETE FROM chunk_vectors WHERE chunk_id = ?", chunkID)
	if err != nil {
		return fmt.Errorf("deleting vector: %w", err)
	}
	return nil
}

// Search finds the k nearest neighbours to the query vector by cosine
// similarity. Vectors with mismatched dimensions are skipped.
func (idx *vectorIndex) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	rows, err := idx.store.db.QueryContext(ctx,
		"SELECT chunk_id, vector FROM chunk_vectors")
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunkID string
		var blob []byte
		if err := rows.Scan(&chunkID, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}

		vector := decodeVector(blob)
		if len(vector) != len(query) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    chunkID,
			Similarity: cosine(query, vector),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close releases resources. The database handle belongs to the Store.
func (idx *vectorIndex) Close() error {
	return nil
}

// encodeVector packs a float32 vector into a little-endian blob.
func encodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(x))
	}
	return out
}

// decodeVector unpacks a little-endian blob into a float32 vector.
func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
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
