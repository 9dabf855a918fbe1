package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
	"github.com/editnori/psych-intake-brief-sub001/internal/postprocessors"
	"github.com/editnori/psych-intake-brief-sub001/internal/postprocessors/chunker"
	"github.com/editnori/psych-intake-brief-sub001/internal/postprocessors/redactor"
)

// fakeDocStore is a stateful in-memory document store.
type fakeDocStore struct {
	mu     sync.Mutex
	docs   map[string]*domain.SourceDocument
	chunks map[string][]domain.Chunk
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{
		docs:   make(map[string]*domain.SourceDocument),
		chunks: make(map[string][]domain.Chunk),
	}
}

func (f *fakeDocStore) SaveDocument(_ context.Context, doc *domain.SourceDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *doc
	f.docs[doc.ID] = &copied
	return nil
}

func (f *fakeDocStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range chunks {
		existing := f.chunks[c.SourceID]
		replaced := false
		for i := range existing {
			if existing[i].ID == c.ID {
				existing[i] = c
				replaced = true
			}
		}
		if !replaced {
			existing = append(existing, c)
		}
		f.chunks[c.SourceID] = existing
	}
	return nil
}

func (f *fakeDocStore) GetDocument(_ context.Context, id string) (*domain.SourceDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (f *fakeDocStore) GetChunks(_ context.Context, sourceID string) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Chunk(nil), f.chunks[sourceID]...), nil
}

func (f *fakeDocStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, chunks := range f.chunks {
		for _, c := range chunks {
			if c.ID == id {
				return &c, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDocStore) ListDocuments(_ context.Context) ([]domain.SourceDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SourceDocument, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

func (f *fakeDocStore) ListChunks(_ context.Context) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Chunk
	for _, chunks := range f.chunks {
		out = append(out, chunks...)
	}
	return out, nil
}

func (f *fakeDocStore) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.docs, id)
	delete(f.chunks, id)
	return nil
}

// fakeExtractors registers one plain-text extractor.
type fakeExtractors struct {
	extractErr error
}

func (f *fakeExtractors) ForKind(kind domain.DocumentKind) (driven.TextExtractor, error) {
	if kind != domain.KindText {
		return nil, domain.ErrUnsupportedKind
	}
	return &fakeTextExtractor{err: f.extractErr}, nil
}

func (f *fakeExtractors) Kinds() []domain.DocumentKind {
	return []domain.DocumentKind{domain.KindText}
}

type fakeTextExtractor struct {
	err error
}

func (f *fakeTextExtractor) Kind() domain.DocumentKind { return domain.KindText }

func (f *fakeTextExtractor) Extract(_ context.Context, _ string, r io.Reader) (*driven.ExtractResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &driven.ExtractResult{Text: string(data)}, nil
}

// recordingVector records vector index mutations.
type recordingVector struct {
	mu      sync.Mutex
	added   []string
	deleted []string
}

func (r *recordingVector) Add(_ context.Context, chunkID string, _ []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, chunkID)
	return nil
}

func (r *recordingVector) Delete(_ context.Context, chunkID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, chunkID)
	return nil
}

func (r *recordingVector) Search(_ context.Context, _ []float32, _ int) ([]driven.VectorHit, error) {
	return nil, nil
}

func (r *recordingVector) Close() error { return nil }

// --- Fixtures ---

func ingestPipeline() driven.PostProcessorPipeline {
	return postprocessors.NewPipeline(redactor.New(), chunker.New())
}

func newIngest(store *fakeDocStore) *IngestService {
	return NewIngestService(&fakeExtractors{}, ingestPipeline(), store, nil, nil)
}

func textUpload(name, text string) driving.Upload {
	return driving.Upload{
		Name:   name,
		Kind:   domain.KindText,
		Reader: strings.NewReader(text),
	}
}

// --- Tests ---

func TestIngestStoresClassifiedDocument(t *testing.T) {
	store := newFakeDocStore()
	s := newIngest(store)

	result, err := s.Ingest(context.Background(),
		textUpload("Jones Discharge Summary.txt", "Date of Service: 03/04/2023\nHospital course was uneventful."))

	require.NoError(t, err)
	doc := result.Document
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, domain.TypeDischargeSummary, doc.DocumentType)
	assert.Equal(t, "2023-03-04", doc.EpisodeDate)
	assert.Equal(t, domain.TypeDischargeSummary.Weight(), doc.Weight)
	assert.Equal(t, domain.TagInitial, doc.Tag, "tag defaults to initial")
	assert.Equal(t, 1, result.ChunkCount)

	chunks, err := store.GetChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, domain.ChunkID(doc.ID, 0), chunks[0].ID)
	assert.Equal(t, doc.Name, chunks[0].SourceName)
	assert.Equal(t, doc.Weight, chunks[0].DocWeight)
}

func TestIngestRedactsBeforeStorage(t *testing.T) {
	store := newFakeDocStore()
	s := newIngest(store)

	result, err := s.Ingest(context.Background(),
		textUpload("progress note.txt", "Progress Note. SSN: 123-45-6789. Patient stable."))

	require.NoError(t, err)

	stored, err := store.GetDocument(context.Background(), result.Document.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.RawText, "123-45-6789")
	assert.Contains(t, stored.RawText, "[SSN]")

	chunks, _ := store.GetChunks(context.Background(), result.Document.ID)
	for _, c := range chunks {
		assert.NotContains(t, c.Text, "123-45-6789")
	}
}

func TestIngestEmptyTextWarnsWithZeroChunks(t *testing.T) {
	store := newFakeDocStore()
	s := newIngest(store)

	result, err := s.Ingest(context.Background(), textUpload("empty.txt", ""))

	require.NoError(t, err, "empty extraction is a warning, not an error")
	assert.Equal(t, 0, result.ChunkCount)
	assert.Contains(t, result.Warnings, "no text extracted")

	// The document itself is stored for listing and correction.
	_, err = store.GetDocument(context.Background(), result.Document.ID)
	assert.NoError(t, err)
}

func TestIngestUnsupportedKind(t *testing.T) {
	s := newIngest(newFakeDocStore())

	_, err := s.Ingest(context.Background(), driving.Upload{
		Name:   "scan.bin",
		Kind:   domain.KindUnknown,
		Reader: strings.NewReader("x"),
	})

	assert.ErrorIs(t, err, domain.ErrUnsupportedKind)
}

func TestIngestInvalidUpload(t *testing.T) {
	s := newIngest(newFakeDocStore())

	_, err := s.Ingest(context.Background(), driving.Upload{Name: "", Reader: strings.NewReader("x")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Ingest(context.Background(), driving.Upload{Name: "a.txt"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestExtractionFailure(t *testing.T) {
	store := newFakeDocStore()
	s := NewIngestService(&fakeExtractors{extractErr: errors.New("corrupt file")},
		ingestPipeline(), store, nil, nil)

	_, err := s.Ingest(context.Background(), textUpload("bad.txt", "ignored"))

	require.Error(t, err)
	docs, _ := store.ListDocuments(context.Background())
	assert.Empty(t, docs, "failed extraction must not store a document")
}

func TestIngestIndexesChunkVectors(t *testing.T) {
	store := newFakeDocStore()
	vectors := &recordingVector{}
	s := NewIngestService(&fakeExtractors{}, ingestPipeline(), store,
		&mockEmbedding{vector: []float32{0.1, 0.2}}, vectors)

	result, err := s.Ingest(context.Background(),
		textUpload("note.txt", "Progress note: patient doing well."))

	require.NoError(t, err)
	assert.Equal(t, []string{domain.ChunkID(result.Document.ID, 0)}, vectors.added)
}

func TestIngestEmbeddingFailureIsNonFatal(t *testing.T) {
	store := newFakeDocStore()
	s := NewIngestService(&fakeExtractors{}, ingestPipeline(), store,
		&mockEmbedding{embedErr: errors.New("model offline")}, &recordingVector{})

	_, err := s.Ingest(context.Background(), textUpload("note.txt", "Progress note."))

	assert.NoError(t, err, "embedding failure must not fail ingestion")
}

func TestRemoveDeletesDocumentAndVectors(t *testing.T) {
	store := newFakeDocStore()
	vectors := &recordingVector{}
	s := NewIngestService(&fakeExtractors{}, ingestPipeline(), store,
		&mockEmbedding{vector: []float32{0.3}}, vectors)

	result, err := s.Ingest(context.Background(), textUpload("note.txt", "Progress note."))
	require.NoError(t, err)

	require.NoError(t, s.Remove(context.Background(), result.Document.ID))

	_, err = store.GetDocument(context.Background(), result.Document.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, vectors.added, vectors.deleted)
}

func TestRemoveUnknownDocument(t *testing.T) {
	s := newIngest(newFakeDocStore())
	assert.ErrorIs(t, s.Remove(context.Background(), "missing"), domain.ErrNotFound)
}

func TestCorrectPropagatesToChunks(t *testing.T) {
	store := newFakeDocStore()
	s := newIngest(store)

	result, err := s.Ingest(context.Background(),
		textUpload("misc.txt", "Unlabelled clinical narrative."))
	require.NoError(t, err)
	require.Equal(t, domain.TypeOther, result.Document.DocumentType)

	err = s.Correct(context.Background(), result.Document.ID, domain.TypePsychEval, "2023-05-01")
	require.NoError(t, err)

	doc, err := store.GetDocument(context.Background(), result.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TypePsychEval, doc.DocumentType)
	assert.Equal(t, domain.TypePsychEval.Weight(), doc.Weight)
	assert.Equal(t, "2023-05-01", doc.EpisodeDate)

	chunks, _ := store.GetChunks(context.Background(), doc.ID)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, domain.TypePsychEval, c.DocumentType)
		assert.Equal(t, "2023-05-01", c.EpisodeDate)
		assert.Equal(t, domain.TypePsychEval.Weight(), c.DocWeight)
	}
}

func TestCorrectPartialUpdate(t *testing.T) {
	store := newFakeDocStore()
	s := newIngest(store)

	result, err := s.Ingest(context.Background(),
		textUpload("intake form.txt", "Date of Service: 01/15/2023\nIntake details."))
	require.NoError(t, err)

	// Empty type leaves classification alone; only the date changes.
	require.NoError(t, s.Correct(context.Background(), result.Document.ID, "", "2023-02-01"))

	doc, _ := store.GetDocument(context.Background(), result.Document.ID)
	assert.Equal(t, domain.TypeIntake, doc.DocumentType)
	assert.Equal(t, "2023-02-01", doc.EpisodeDate)
}

func TestCorrectRejectsInvalidInput(t *testing.T) {
	store := newFakeDocStore()
	s := newIngest(store)

	result, err := s.Ingest(context.Background(), textUpload("note.txt", "Progress note."))
	require.NoError(t, err)

	assert.ErrorIs(t,
		s.Correct(context.Background(), result.Document.ID, "imaging-report", ""),
		domain.ErrInvalidInput)
	assert.ErrorIs(t,
		s.Correct(context.Background(), result.Document.ID, "", "01/15/2023"),
		domain.ErrInvalidInput)
	assert.ErrorIs(t,
		s.Correct(context.Background(), "missing", domain.TypeIntake, ""),
		domain.ErrNotFound)
}

func TestIngestAssignsChronology(t *testing.T) {
	store := newFakeDocStore()
	s := newIngest(store)

	first, err := s.Ingest(context.Background(),
		textUpload("later.txt", "Date of Service: 06/01/2023\nProgress note."))
	require.NoError(t, err)
	second, err := s.Ingest(context.Background(),
		textUpload("earlier.txt", "Date of Service: 01/01/2023\nProgress note."))
	require.NoError(t, err)

	earlier, _ := store.GetDocument(context.Background(), second.Document.ID)
	later, _ := store.GetDocument(context.Background(), first.Document.ID)
	assert.Equal(t, 1, earlier.ChronologicalOrder)
	assert.Equal(t, 2, later.ChronologicalOrder)
	assert.NotEmpty(t, earlier.EpisodeID)
	assert.NotEqual(t, earlier.EpisodeID, later.EpisodeID,
		"dates five months apart belong to different episodes")
}
