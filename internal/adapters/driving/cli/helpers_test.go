package cli

import (
	"context"

	"github.com/editnori/psych-intake-brief-sub001/internal/adapters/driven/storage/memory"
	vectormem "github.com/editnori/psych-intake-brief-sub001/internal/adapters/driven/vector/memory"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/services"
	"github.com/editnori/psych-intake-brief-sub001/internal/extractors"
	"github.com/editnori/psych-intake-brief-sub001/internal/postprocessors"
	"github.com/editnori/psych-intake-brief-sub001/internal/postprocessors/chunker"
)

// stubGenerator stands in for the completion-backed generator in command
// tests. It records the last request and returns a canned result.
type stubGenerator struct {
	result       *domain.GenerationResult
	err          error
	lastSection  domain.SectionSpec
	lastEvidence []domain.Chunk
}

func (g *stubGenerator) Generate(
	_ context.Context,
	section domain.SectionSpec,
	evidence []domain.Chunk,
	_ driving.GenerateOptions,
) (*domain.GenerationResult, error) {
	g.lastSection = section
	g.lastEvidence = evidence
	if g.err != nil {
		return nil, g.err
	}
	if g.result != nil {
		return g.result, nil
	}
	return &domain.GenerationResult{
		Text: "Drafted section text.",
		Citations: []domain.Citation{
			{SourceID: "doc-1", SourceName: "note.txt", ChunkID: "doc-1#0"},
		},
	}, nil
}

// setupTestServices wires the commands against in-memory adapters and a
// stub generator. The returned cleanup restores the previous wiring.
func setupTestServices() (*stubGenerator, func()) {
	prevConfig := configStore
	prevDoc := docStore
	prevSection := sectionStore
	prevIngest := ingestService
	prevRanker := evidenceRanker
	prevGenerator := sectionGenerator
	prevBatch := batchRunner
	prevLedger := questionLedger
	prevReconciler := editReconciler
	prevSettings := generationSettings
	prevWired := wired

	memDocs := memory.NewDocumentStore()
	memSections := memory.NewSectionStore()
	generator := &stubGenerator{}

	settings := domain.GenerationSettings{}
	settings.Normalise()

	pipeline := postprocessors.NewPipeline(
		chunker.New(chunker.WithConfig(domain.StandardChunkConfig)))

	configStore = memory.NewConfigStore()
	docStore = memDocs
	sectionStore = memSections
	ingestService = services.NewIngestService(
		extractors.NewDefaultRegistry(), pipeline, memDocs, nil, vectormem.NewVectorIndex())
	evidenceRanker = services.NewEvidenceRanker(nil, nil)
	sectionGenerator = generator
	batchRunner = services.NewBatchService(evidenceRanker, generator, memDocs, memSections, settings)
	questionLedger = services.NewQuestionLedger(memory.NewQuestionStore())
	editReconciler = services.NewEditReconciler()
	generationSettings = settings
	wired = true

	return generator, func() {
		configStore = prevConfig
		docStore = prevDoc
		sectionStore = prevSection
		ingestService = prevIngest
		evidenceRanker = prevRanker
		sectionGenerator = prevGenerator
		batchRunner = prevBatch
		questionLedger = prevLedger
		editReconciler = prevReconciler
		generationSettings = prevSettings
		wired = prevWired
	}
}

// seedDocument stores one document with a single chunk so ranking has
// evidence to work with.
func seedDocument(id, name, text string, tag domain.DocumentTag) {
	doc := &domain.SourceDocument{
		ID:           id,
		Name:         name,
		Kind:         domain.KindText,
		RawText:      text,
		DocumentType: domain.TypeProgressNote,
		Weight:       domain.TypeProgressNote.Weight(),
		Tag:          tag,
	}
	//nolint:errcheck
	docStore.SaveDocument(context.Background(), doc)
	//nolint:errcheck
	docStore.SaveChunks(context.Background(), []domain.Chunk{{
		ID:         domain.ChunkID(id, 0),
		SourceID:   id,
		SourceName: name,
		Text:       text,
		EndOffset:  len(text),
		DocWeight:  doc.Weight,
	}})
}
