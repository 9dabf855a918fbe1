package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
	"github.com/editnori/psych-intake-brief-sub001/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService turns uploads into classified, chunked, stored documents.
//
// Ingestion is the single writer of the evidence index: a mutex serialises
// mutations, and a concurrent Ingest call fails fast with
// ErrIngestInProgress instead of queueing behind a long extraction.
type IngestService struct {
	extractors  driven.ExtractorRegistry
	pipeline    driven.PostProcessorPipeline
	docStore    driven.DocumentStore
	embedding   driven.EmbeddingService
	vectorIndex driven.VectorIndex

	writeLock sync.Mutex
}

// NewIngestService creates a new ingestion service. The embedding service
// and vector index are optional; without them chunks are not indexed for
// semantic ranking.
func NewIngestService(
	extractors driven.ExtractorRegistry,
	pipeline driven.PostProcessorPipeline,
	docStore driven.DocumentStore,
	embedding driven.EmbeddingService,
	vectorIndex driven.VectorIndex,
) *IngestService {
	return &IngestService{
		extractors:  extractors,
		pipeline:    pipeline,
		docStore:    docStore,
		embedding:   embedding,
		vectorIndex: vectorIndex,
	}
}

// Ingest extracts, redacts, classifies, chunks and stores one upload.
func (s *IngestService) Ingest(ctx context.Context, upload driving.Upload) (*driving.IngestResult, error) {
	if upload.Name == "" || upload.Reader == nil {
		return nil, fmt.Errorf("upload needs a name and content: %w", domain.ErrInvalidInput)
	}

	if !s.writeLock.TryLock() {
		return nil, domain.ErrIngestInProgress
	}
	defer s.writeLock.Unlock()

	logger.Section("Document Ingestion")
	logger.Info("Ingesting %s (%s)", upload.Name, upload.Kind)

	extractor, err := s.extractors.ForKind(upload.Kind)
	if err != nil {
		return nil, fmt.Errorf("select extractor for %s: %w", upload.Kind, err)
	}

	extracted, err := extractor.Extract(ctx, upload.Name, upload.Reader)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", upload.Name, err)
	}
	warnings := append([]string(nil), extracted.Warnings...)
	if extracted.Text == "" {
		warnings = append(warnings, "no text extracted")
	}

	tag := upload.Tag
	if tag == "" {
		tag = domain.TagInitial
	}

	docType := Classify(upload.Name, extracted.Text)
	doc := &domain.SourceDocument{
		ID:           uuid.NewString(),
		Name:         upload.Name,
		Kind:         upload.Kind,
		RawText:      extracted.Text,
		DocumentType: docType,
		EpisodeDate:  ExtractEpisodeDate(extracted.Text),
		Weight:       docType.Weight(),
		Tag:          tag,
		AddedAt:      time.Now().UTC(),
	}
	logger.Debug("Classified as %s, episode date %q", doc.DocumentType, doc.EpisodeDate)

	// Redaction rewrites doc.RawText before chunking, so unredacted text
	// never reaches the store or the chunk index.
	chunks, err := s.pipeline.Process(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", upload.Name, err)
	}

	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if err := s.docStore.SaveChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("save chunks: %w", err)
	}

	s.indexChunks(ctx, chunks)

	if err := s.reindexChronology(ctx); err != nil {
		logger.Warn("Chronology reindex failed: %v", err)
	}

	logger.Info("Stored %s: %d chunks", doc.ID, len(chunks))
	return &driving.IngestResult{
		Document:   *doc,
		ChunkCount: len(chunks),
		Warnings:   warnings,
	}, nil
}

// Remove deletes a document, its chunks and their vectors.
func (s *IngestService) Remove(ctx context.Context, documentID string) error {
	if !s.writeLock.TryLock() {
		return domain.ErrIngestInProgress
	}
	defer s.writeLock.Unlock()

	if s.vectorIndex != nil {
		chunks, err := s.docStore.GetChunks(ctx, documentID)
		if err == nil {
			for _, c := range chunks {
				if delErr := s.vectorIndex.Delete(ctx, c.ID); delErr != nil {
					logger.Warn("Vector delete for %s failed: %v", c.ID, delErr)
				}
			}
		}
	}

	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}

	if err := s.reindexChronology(ctx); err != nil {
		logger.Warn("Chronology reindex failed: %v", err)
	}
	logger.Info("Removed document %s", documentID)
	return nil
}

// List returns all stored documents.
func (s *IngestService) List(ctx context.Context) ([]domain.SourceDocument, error) {
	return s.docStore.ListDocuments(ctx)
}

// Correct replaces a document's classification or episode date. Empty
// arguments leave the respective field unchanged. Corrections propagate to
// the document's chunks so ranking sees the new weight immediately.
func (s *IngestService) Correct(ctx context.Context, documentID string, docType domain.DocumentType, episodeDate string) error {
	if !s.writeLock.TryLock() {
		return domain.ErrIngestInProgress
	}
	defer s.writeLock.Unlock()

	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document %s: %w", documentID, err)
	}

	if docType != "" {
		if !docType.IsValid() {
			return fmt.Errorf("document type %q: %w", docType, domain.ErrInvalidInput)
		}
		doc.DocumentType = docType
		doc.Weight = docType.Weight()
	}
	if episodeDate != "" {
		if _, err := time.Parse("2006-01-02", episodeDate); err != nil {
			return fmt.Errorf("episode date %q: %w", episodeDate, domain.ErrInvalidInput)
		}
		doc.EpisodeDate = episodeDate
	}

	if err := s.docStore.SaveDocument(ctx, doc); err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get chunks: %w", err)
	}
	for i := range chunks {
		chunks[i].DocumentType = doc.DocumentType
		chunks[i].EpisodeDate = doc.EpisodeDate
		chunks[i].DocWeight = doc.Weight
	}
	if err := s.docStore.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks: %w", err)
	}

	if err := s.reindexChronology(ctx); err != nil {
		logger.Warn("Chronology reindex failed: %v", err)
	}
	logger.Info("Corrected document %s (type=%s, date=%s)", documentID, doc.DocumentType, doc.EpisodeDate)
	return nil
}

// indexChunks embeds the chunks into the vector index. Opportunistic:
// failures are logged and semantic ranking simply stays unavailable for
// the affected chunks.
func (s *IngestService) indexChunks(ctx context.Context, chunks []domain.Chunk) {
	if s.embedding == nil || s.vectorIndex == nil || len(chunks) == 0 {
		return
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedding.EmbedBatch(ctx, texts)
	if err != nil {
		logger.Warn("Chunk embedding failed: %v", err)
		return
	}
	if len(vectors) != len(chunks) {
		logger.Warn("Embedding count mismatch: %d vectors for %d chunks", len(vectors), len(chunks))
		return
	}

	for i, c := range chunks {
		if err := s.vectorIndex.Add(ctx, c.ID, vectors[i]); err != nil {
			logger.Warn("Vector index add for %s failed: %v", c.ID, err)
		}
	}
	logger.Debug("Indexed %d chunk vectors", len(chunks))
}

// reindexChronology reassigns chronological order and episode clusters
// across the whole document set after any mutation.
func (s *IngestService) reindexChronology(ctx context.Context) error {
	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return err
	}

	episodes := AssignEpisodes(docs)
	for i := range docs {
		if err := s.docStore.SaveDocument(ctx, &docs[i]); err != nil {
			return err
		}
	}
	logger.Debug("Reindexed %d documents into %d episodes", len(docs), len(episodes))
	return nil
}
