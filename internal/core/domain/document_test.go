package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentTypeWeight(t *testing.T) {
	assert.Equal(t, 1.5, TypeDischargeSummary.Weight())
	assert.Equal(t, 1.0, TypeProgressNote.Weight())
	assert.Equal(t, 0.8, TypeOther.Weight())

	// Unrecognised types fall back to the TypeOther weight.
	assert.Equal(t, TypeOther.Weight(), DocumentType("lab-report").Weight())
}

func TestDocumentTypeIsValid(t *testing.T) {
	for _, typ := range []DocumentType{
		TypeDischargeSummary, TypePsychEval, TypeProgressNote,
		TypeBiopsychosocial, TypeIntake, TypeOther,
	} {
		assert.True(t, typ.IsValid(), typ)
	}
	assert.False(t, DocumentType("lab-report").IsValid())
}

func TestDocumentKindIsValid(t *testing.T) {
	assert.True(t, KindText.IsValid())
	assert.True(t, KindWord.IsValid())
	assert.True(t, KindPDF.IsValid())
	assert.True(t, KindUnknown.IsValid())
	assert.False(t, DocumentKind("spreadsheet").IsValid())
}

func TestChunkID(t *testing.T) {
	assert.Equal(t, "doc-1#0", ChunkID("doc-1", 0))
	assert.Equal(t, "doc-1#12", ChunkID("doc-1", 12))
}

func TestChunkConfigFor(t *testing.T) {
	assert.Equal(t, StandardChunkConfig, ChunkConfigFor(PrivacyStandard))
	assert.Equal(t, FragmentChunkConfig, ChunkConfigFor(PrivacyFragment))

	// Unknown modes use the standard window.
	assert.Equal(t, StandardChunkConfig, ChunkConfigFor(PrivacyMode("paranoid")))
}

func TestGenerationSettingsNormalise(t *testing.T) {
	var s GenerationSettings
	s.Normalise()

	assert.Equal(t, PrivacyStandard, s.Privacy)
	assert.Equal(t, RankDiversityLexical, s.Strategy)
	assert.Equal(t, DefaultEvidenceLimit, s.EvidenceLimit)
	assert.Equal(t, 0, s.MaxWorkers)
}

func TestUsageAdd(t *testing.T) {
	u := Usage{PromptTokens: 10, CompletionTokens: 5}
	u.Add(Usage{PromptTokens: 3, CompletionTokens: 7})
	assert.Equal(t, 13, u.PromptTokens)
	assert.Equal(t, 12, u.CompletionTokens)
}

func TestBatchReportCounts(t *testing.T) {
	r := BatchReport{Outcomes: []JobOutcome{
		{TargetID: "a", Result: &GenerationResult{Text: "ok"}},
		{TargetID: "b", Err: ErrGenerationRejected},
		{TargetID: "c", Result: &GenerationResult{Text: "ok"}},
	}}
	assert.Equal(t, 2, r.Succeeded())
	assert.Equal(t, 1, r.Failed())
}
