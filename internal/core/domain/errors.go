package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Generation errors.

	// ErrEmptyGeneration indicates the model returned no usable text.
	// The caller must preserve previously accepted section content.
	ErrEmptyGeneration = errors.New("generation returned empty text")

	// ErrCitationsMissing indicates generated text carried no citations.
	// The repair ladder is attempted before this surfaces.
	ErrCitationsMissing = errors.New("generation returned no citations")

	// ErrGenerationRejected indicates every repair strategy failed.
	// This is a soft, section-scoped outcome, never fatal to a batch.
	ErrGenerationRejected = errors.New("generation rejected after repair attempts")

	// ErrCompletionUnavailable indicates no completion service is configured.
	ErrCompletionUnavailable = errors.New("completion service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Semantic evidence ranking is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// Ingestion errors.

	// ErrUnsupportedKind indicates no extractor is registered for a file kind.
	ErrUnsupportedKind = errors.New("unsupported document kind")

	// ErrIngestInProgress indicates ingestion cannot run while a
	// generation batch holds the chunk set.
	ErrIngestInProgress = errors.New("ingestion already in progress")

	// Reconciliation errors.

	// ErrNoMatch indicates the edit reconciler found no span to replace.
	// Not a failure: the caller resolves it with an append/replace policy.
	ErrNoMatch = errors.New("no matching span found")

	// ErrJobCancelled indicates a generation job was superseded by a newer
	// request for the same target before it completed.
	ErrJobCancelled = errors.New("generation job cancelled")
)
