package mcp

import (
	"context"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
)

// mockRanker is a mock implementation of driving.EvidenceRanker.
type mockRanker struct {
	ranked   []domain.Chunk
	lastOpts driving.RankOptions
}

func (m *mockRanker) Rank(
	_ context.Context,
	_ string,
	chunks []domain.Chunk,
	limit int,
	opts driving.RankOptions,
) []domain.Chunk {
	m.lastOpts = opts
	if m.ranked != nil {
		if limit < len(m.ranked) {
			return m.ranked[:limit]
		}
		return m.ranked
	}
	if limit < len(chunks) {
		return chunks[:limit]
	}
	return chunks
}

// mockDocumentStore is a mock implementation of driven.DocumentStore.
type mockDocumentStore struct {
	documents []domain.SourceDocument
	chunks    []domain.Chunk
	err       error
}

func (m *mockDocumentStore) SaveDocument(_ context.Context, _ *domain.SourceDocument) error {
	return m.err
}

func (m *mockDocumentStore) SaveChunks(_ context.Context, _ []domain.Chunk) error {
	return m.err
}

func (m *mockDocumentStore) GetDocument(_ context.Context, _ string) (*domain.SourceDocument, error) {
	if m.err != nil {
		return nil, m.err
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentStore) GetChunks(_ context.Context, sourceID string) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Chunk
	for _, c := range m.chunks {
		if c.SourceID == sourceID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockDocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	for i := range m.chunks {
		if m.chunks[i].ID == id {
			return &m.chunks[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentStore) ListDocuments(_ context.Context) ([]domain.SourceDocument, error) {
	return m.documents, m.err
}

func (m *mockDocumentStore) ListChunks(_ context.Context) ([]domain.Chunk, error) {
	return m.chunks, m.err
}

func (m *mockDocumentStore) DeleteDocument(_ context.Context, _ string) error {
	return m.err
}

// mockGenerator is a mock implementation of driving.SectionGenerator.
type mockGenerator struct {
	result       *domain.GenerationResult
	err          error
	lastEvidence []domain.Chunk
	lastOpts     driving.GenerateOptions
}

func (m *mockGenerator) Generate(
	_ context.Context,
	_ domain.SectionSpec,
	evidence []domain.Chunk,
	opts driving.GenerateOptions,
) (*domain.GenerationResult, error) {
	m.lastEvidence = evidence
	m.lastOpts = opts
	return m.result, m.err
}

// mockLedger is a mock implementation of driving.QuestionLedger.
type mockLedger struct {
	questions []domain.OpenQuestion
	synced    []string
	err       error
}

func (m *mockLedger) Sync(_ context.Context, sectionID, _ string) ([]domain.OpenQuestion, error) {
	m.synced = append(m.synced, sectionID)
	return m.questions, m.err
}

func (m *mockLedger) Answer(_ context.Context, _, _ string) error {
	return m.err
}

func (m *mockLedger) ClearAnswer(_ context.Context, _ string) error {
	return m.err
}

func (m *mockLedger) Remove(_ context.Context, _ string) error {
	return m.err
}

func (m *mockLedger) List(_ context.Context) ([]domain.OpenQuestion, error) {
	return m.questions, m.err
}

// mockSectionStore is a mock implementation of driven.SectionStore.
type mockSectionStore struct {
	saved   map[string]*domain.GenerationResult
	results map[string]*domain.GenerationResult
	err     error
}

func (m *mockSectionStore) SaveResult(_ context.Context, sectionID string, result *domain.GenerationResult) error {
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = make(map[string]*domain.GenerationResult)
	}
	m.saved[sectionID] = result
	return nil
}

func (m *mockSectionStore) GetResult(_ context.Context, sectionID string) (*domain.GenerationResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if r, ok := m.results[sectionID]; ok {
		return r, nil
	}
	if r, ok := m.saved[sectionID]; ok {
		return r, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockSectionStore) ListResults(_ context.Context) (map[string]*domain.GenerationResult, error) {
	return m.results, m.err
}
