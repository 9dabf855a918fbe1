package domain

import (
	"fmt"
	"time"
)

// DocumentKind identifies the file format a document arrived in.
type DocumentKind string

// Available document kinds.
const (
	// KindText is plain text content.
	KindText DocumentKind = "text"

	// KindWord is a word-processor document (docx).
	KindWord DocumentKind = "word"

	// KindPDF is a PDF whose text was extracted upstream.
	KindPDF DocumentKind = "pdf"

	// KindUnknown is content of unrecognised origin.
	KindUnknown DocumentKind = "unknown"
)

// IsValid returns true if the kind is recognised.
func (k DocumentKind) IsValid() bool {
	switch k {
	case KindText, KindWord, KindPDF, KindUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k DocumentKind) String() string {
	return string(k)
}

// DocumentType classifies the clinical content of a document.
// The type determines the document's ranking weight.
type DocumentType string

// Available document types.
const (
	TypeDischargeSummary DocumentType = "discharge-summary"
	TypePsychEval        DocumentType = "psych-eval"
	TypeProgressNote     DocumentType = "progress-note"
	TypeBiopsychosocial  DocumentType = "biopsychosocial"
	TypeIntake           DocumentType = "intake"
	TypeOther            DocumentType = "other"
)

// documentWeights maps each type to its fixed ranking weight.
// Weights are derived once at ingestion, never recomputed per query.
var documentWeights = map[DocumentType]float64{
	TypeDischargeSummary: 1.5,
	TypePsychEval:        1.4,
	TypeBiopsychosocial:  1.3,
	TypeIntake:           1.2,
	TypeProgressNote:     1.0,
	TypeOther:            0.8,
}

// Weight returns the ranking weight for the document type.
// Unrecognised types weigh the same as TypeOther.
func (t DocumentType) Weight() float64 {
	if w, ok := documentWeights[t]; ok {
		return w
	}
	return documentWeights[TypeOther]
}

// IsValid returns true if the document type is recognised.
func (t DocumentType) IsValid() bool {
	_, ok := documentWeights[t]
	return ok
}

// String returns the string representation.
func (t DocumentType) String() string {
	return string(t)
}

// DocumentTag marks whether a document belongs to the initial upload
// or arrived as a later update.
type DocumentTag string

// Available document tags.
const (
	// TagInitial marks documents present at the first generation run.
	TagInitial DocumentTag = "initial"

	// TagFollowup marks documents added afterwards. Followup documents
	// receive priority ordering during update re-generation.
	TagFollowup DocumentTag = "followup"
)

// SourceDocument is an uploaded document after text extraction.
// It is immutable once created; only DocumentType and EpisodeDate may be
// replaced via explicit correction.
type SourceDocument struct {
	// ID is the unique identifier for the document.
	ID string

	// Name is the original file name.
	Name string

	// Kind is the file format the document arrived in.
	Kind DocumentKind

	// RawText is the extracted (and redacted) text content.
	RawText string

	// DocumentType is the classified clinical content type.
	DocumentType DocumentType

	// EpisodeDate is the date of the care episode the document describes,
	// in YYYY-MM-DD form. Empty when no date could be extracted.
	EpisodeDate string

	// ChronologicalOrder is the document's position when sorted by
	// episode date. Zero until assigned.
	ChronologicalOrder int

	// EpisodeID groups documents whose dates fall in one episode window.
	// Empty until episode clustering has run.
	EpisodeID string

	// Weight is the ranking weight derived from DocumentType at ingestion.
	Weight float64

	// Tag marks initial versus followup documents.
	Tag DocumentTag

	// AddedAt is when the document was ingested.
	AddedAt time.Time
}

// Chunk is a fixed-size, overlapping slice of a document's text.
// Chunks are independently addressable and citable.
type Chunk struct {
	// ID is deterministic: sourceID plus ordinal. Stable across
	// re-chunking of unchanged text, which citation matching relies on.
	ID string

	// SourceID links to the owning SourceDocument.
	SourceID string

	// SourceName is the owning document's display name, carried along so
	// citations can be rendered without a store lookup.
	SourceName string

	// Text is the chunk content.
	Text string

	// StartOffset is the inclusive start position in the document text.
	StartOffset int

	// EndOffset is the exclusive end position in the document text.
	EndOffset int

	// DocumentType is copied from the owning document.
	DocumentType DocumentType

	// EpisodeDate is copied from the owning document.
	EpisodeDate string

	// DocWeight is copied from the owning document.
	DocWeight float64
}

// ChunkID builds the deterministic chunk identifier for a document
// and ordinal position.
func ChunkID(sourceID string, ordinal int) string {
	return fmt.Sprintf("%s#%d", sourceID, ordinal)
}
