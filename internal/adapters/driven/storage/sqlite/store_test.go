package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testDocument(id string) *domain.SourceDocument {
	return &domain.SourceDocument{
		ID:           id,
		Name:         id + ".txt",
		Kind:         domain.KindText,
		RawText:      "Patient reports low mood since March.",
		DocumentType: domain.TypeProgressNote,
		EpisodeDate:  "2024-03-12",
		Weight:       domain.TypeProgressNote.Weight(),
		Tag:          domain.TagInitial,
		AddedAt:      time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	doc := testDocument("doc1")
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, doc.Name, got.Name)
	assert.Equal(t, domain.KindText, got.Kind)
	assert.Equal(t, domain.TypeProgressNote, got.DocumentType)
	assert.Equal(t, "2024-03-12", got.EpisodeDate)
	assert.Equal(t, domain.TagInitial, got.Tag)
}

func TestGetDocumentNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.DocumentStore().GetDocument(context.Background(), "absent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveDocumentUpdatesCorrectedFields(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	doc := testDocument("doc1")
	require.NoError(t, docs.SaveDocument(ctx, doc))

	doc.DocumentType = domain.TypeDischargeSummary
	doc.Weight = domain.TypeDischargeSummary.Weight()
	doc.EpisodeDate = "2024-02-01"
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeDischargeSummary, got.DocumentType)
	assert.Equal(t, "2024-02-01", got.EpisodeDate)

	all, err := docs.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListDocumentsOrderedByAddedAt(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	later := testDocument("later")
	later.AddedAt = time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, docs.SaveDocument(ctx, later))

	earlier := testDocument("earlier")
	require.NoError(t, docs.SaveDocument(ctx, earlier))

	all, err := docs.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "earlier", all[0].ID)
	assert.Equal(t, "later", all[1].ID)
}

func TestSaveChunksReplacesPriorChunks(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc1")))

	first := []domain.Chunk{
		{ID: domain.ChunkID("doc1", 0), SourceID: "doc1", SourceName: "doc1.txt", Text: "old a", StartOffset: 0, EndOffset: 5},
		{ID: domain.ChunkID("doc1", 1), SourceID: "doc1", SourceName: "doc1.txt", Text: "old b", StartOffset: 3, EndOffset: 8},
	}
	require.NoError(t, docs.SaveChunks(ctx, first))

	second := []domain.Chunk{
		{ID: domain.ChunkID("doc1", 0), SourceID: "doc1", SourceName: "doc1.txt", Text: "new a", StartOffset: 0, EndOffset: 5},
	}
	require.NoError(t, docs.SaveChunks(ctx, second))

	chunks, err := docs.GetChunks(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "new a", chunks[0].Text)
}

func TestGetChunksOrderedByOffset(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc1")))
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		{ID: domain.ChunkID("doc1", 1), SourceID: "doc1", SourceName: "doc1.txt", Text: "second", StartOffset: 100, EndOffset: 200},
		{ID: domain.ChunkID("doc1", 0), SourceID: "doc1", SourceName: "doc1.txt", Text: "first", StartOffset: 0, EndOffset: 120},
	}))

	chunks, err := docs.GetChunks(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "first", chunks[0].Text)
	assert.Equal(t, "second", chunks[1].Text)
}

func TestGetChunkCarriesDocumentFields(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc1")))
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{{
		ID:           domain.ChunkID("doc1", 0),
		SourceID:     "doc1",
		SourceName:   "doc1.txt",
		Text:         "Patient reports low mood.",
		StartOffset:  0,
		EndOffset:    25,
		DocumentType: domain.TypeProgressNote,
		EpisodeDate:  "2024-03-12",
		DocWeight:    1.0,
	}}))

	chunk, err := docs.GetChunk(ctx, "doc1#0")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeProgressNote, chunk.DocumentType)
	assert.Equal(t, "2024-03-12", chunk.EpisodeDate)
	assert.Equal(t, 1.0, chunk.DocWeight)

	_, err = docs.GetChunk(ctx, "doc1#99")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteDocumentCascadesToChunks(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc1")))
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		{ID: domain.ChunkID("doc1", 0), SourceID: "doc1", SourceName: "doc1.txt", Text: "a", StartOffset: 0, EndOffset: 1},
	}))

	require.NoError(t, docs.DeleteDocument(ctx, "doc1"))

	_, err := docs.GetDocument(ctx, "doc1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all, err := docs.ListChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestListChunksSpansDocuments(t *testing.T) {
	store := newTestStore(t)
	docs := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc1")))
	require.NoError(t, docs.SaveDocument(ctx, testDocument("doc2")))
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		{ID: domain.ChunkID("doc1", 0), SourceID: "doc1", SourceName: "doc1.txt", Text: "a", StartOffset: 0, EndOffset: 1},
	}))
	require.NoError(t, docs.SaveChunks(ctx, []domain.Chunk{
		{ID: domain.ChunkID("doc2", 0), SourceID: "doc2", SourceName: "doc2.txt", Text: "b", StartOffset: 0, EndOffset: 1},
	}))

	all, err := docs.ListChunks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSectionResultRoundTrip(t *testing.T) {
	store := newTestStore(t)
	sections := store.SectionStore()
	ctx := context.Background()

	result := &domain.GenerationResult{
		Text: "Patient presents with low mood.",
		Citations: []domain.Citation{{
			SourceID:   "doc1",
			SourceName: "doc1.txt",
			ChunkID:    "doc1#0",
			Excerpt:    "low mood since March",
		}},
	}
	require.NoError(t, sections.SaveResult(ctx, "presenting-problem", result))

	got, err := sections.GetResult(ctx, "presenting-problem")
	require.NoError(t, err)
	assert.Equal(t, result.Text, got.Text)
	require.Len(t, got.Citations, 1)
	assert.Equal(t, "doc1#0", got.Citations[0].ChunkID)

	_, err = sections.GetResult(ctx, "absent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveResultReplacesPriorAccepted(t *testing.T) {
	store := newTestStore(t)
	sections := store.SectionStore()
	ctx := context.Background()

	require.NoError(t, sections.SaveResult(ctx, "s1", &domain.GenerationResult{
		Text:      "first",
		Citations: []domain.Citation{{ChunkID: "doc1#0"}},
	}))
	require.NoError(t, sections.SaveResult(ctx, "s1", &domain.GenerationResult{
		Text:      "second",
		Citations: []domain.Citation{{ChunkID: "doc1#1"}},
	}))

	results, err := sections.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "second", results["s1"].Text)
}

func TestQuestionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	questions := store.QuestionStore()
	ctx := context.Background()

	q := &domain.OpenQuestion{
		ID:        "q1",
		SectionID: "presenting-problem",
		Text:      "Has the patient trialled an SSRI before?",
		Status:    domain.StatusOpen,
	}
	require.NoError(t, questions.Save(ctx, q))

	got, err := questions.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, q.Text, got.Text)
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	q.Status = domain.StatusAnswered
	q.Answer = "Yes, sertraline in 2022."
	require.NoError(t, questions.Save(ctx, q))

	got, err = questions.Get(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAnswered, got.Status)
	assert.Equal(t, "Yes, sertraline in 2022.", got.Answer)
}

func TestQuestionListBySection(t *testing.T) {
	store := newTestStore(t)
	questions := store.QuestionStore()
	ctx := context.Background()

	require.NoError(t, questions.Save(ctx, &domain.OpenQuestion{
		ID: "q1", SectionID: "s1", Text: "one?", Status: domain.StatusOpen,
	}))
	require.NoError(t, questions.Save(ctx, &domain.OpenQuestion{
		ID: "q2", SectionID: "s2", Text: "two?", Status: domain.StatusResolved,
	}))

	bySection, err := questions.ListBySection(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, bySection, 1)
	assert.Equal(t, "q2", bySection[0].ID)
	assert.Equal(t, domain.StatusResolved, bySection[0].Status)

	all, err := questions.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestQuestionDelete(t *testing.T) {
	store := newTestStore(t)
	questions := store.QuestionStore()
	ctx := context.Background()

	require.NoError(t, questions.Save(ctx, &domain.OpenQuestion{
		ID: "q1", SectionID: "s1", Text: "one?", Status: domain.StatusOpen,
	}))
	require.NoError(t, questions.Delete(ctx, "q1"))

	_, err := questions.Get(ctx, "q1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening runs the migration scan again against an up-to-date schema.
	store, err = NewStore(dir)
	require.NoError(t, err)
	assert.NoError(t, store.Close())
}
