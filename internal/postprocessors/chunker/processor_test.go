package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		if p.windowSize != DefaultWindowSize {
			t.Errorf("expected windowSize %d, got %d", DefaultWindowSize, p.windowSize)
		}
		if p.overlap != DefaultOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultOverlap, p.overlap)
		}
	})

	t.Run("custom window size", func(t *testing.T) {
		p := New(WithWindowSize(500))
		if p.windowSize != 500 {
			t.Errorf("expected windowSize 500, got %d", p.windowSize)
		}
	})

	t.Run("fragment config", func(t *testing.T) {
		p := New(WithConfig(domain.FragmentChunkConfig))
		if p.windowSize != domain.FragmentChunkConfig.WindowSize {
			t.Errorf("expected windowSize %d, got %d", domain.FragmentChunkConfig.WindowSize, p.windowSize)
		}
		if p.overlap != domain.FragmentChunkConfig.Overlap {
			t.Errorf("expected overlap %d, got %d", domain.FragmentChunkConfig.Overlap, p.overlap)
		}
	})

	t.Run("overlap exceeds window size", func(t *testing.T) {
		p := New(WithWindowSize(100), WithOverlap(150))
		if p.overlap >= p.windowSize {
			t.Error("overlap should be reduced when it exceeds window size")
		}
	})

	t.Run("zero values ignored", func(t *testing.T) {
		p := New(WithWindowSize(0), WithOverlap(-1))
		if p.windowSize != DefaultWindowSize {
			t.Errorf("expected default windowSize, got %d", p.windowSize)
		}
		if p.overlap != DefaultOverlap {
			t.Errorf("expected default overlap, got %d", p.overlap)
		}
	})
}

func TestProcessor_Name(t *testing.T) {
	p := New()
	if p.Name() != "chunker" {
		t.Errorf("expected name 'chunker', got '%s'", p.Name())
	}
}

func TestProcess_EmptyText(t *testing.T) {
	p := New()
	for _, text := range []string{"", "   \n\t  "} {
		doc := &domain.SourceDocument{ID: "doc-1", RawText: text}
		chunks, err := p.Process(context.Background(), doc, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != 0 {
			t.Errorf("expected zero chunks for %q, got %d", text, len(chunks))
		}
	}
}

func TestProcess_CoversFullText(t *testing.T) {
	p := New(WithWindowSize(100), WithOverlap(20))
	text := strings.Repeat("history of severe depression noted. ", 30)
	doc := &domain.SourceDocument{ID: "doc-1", Name: "note.txt", RawText: text}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}

	// First chunk starts at 0, last chunk ends at len(text).
	if chunks[0].StartOffset != 0 {
		t.Errorf("first chunk starts at %d, want 0", chunks[0].StartOffset)
	}
	if last := chunks[len(chunks)-1]; last.EndOffset != len(text) {
		t.Errorf("last chunk ends at %d, want %d", last.EndOffset, len(text))
	}

	for i, c := range chunks {
		if len(c.Text) > 100 {
			t.Errorf("chunk %d exceeds window size: %d", i, len(c.Text))
		}
		if c.Text != text[c.StartOffset:c.EndOffset] {
			t.Errorf("chunk %d text does not match its offsets", i)
		}
		// No gaps: each chunk starts inside or adjacent to the previous.
		if i > 0 && c.StartOffset > chunks[i-1].EndOffset {
			t.Errorf("gap before chunk %d", i)
		}
	}
}

func TestProcess_StableIDs(t *testing.T) {
	p := New(WithWindowSize(80), WithOverlap(10))
	text := strings.Repeat("patient reports poor sleep. ", 20)
	doc := &domain.SourceDocument{ID: "doc-1", RawText: text}

	first, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("chunk %d id changed: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
	if first[0].ID != "doc-1#0" {
		t.Errorf("expected deterministic id doc-1#0, got %s", first[0].ID)
	}
}

func TestProcess_CarriesDocumentMetadata(t *testing.T) {
	p := New()
	doc := &domain.SourceDocument{
		ID:           "doc-9",
		Name:         "Discharge Summary.docx",
		RawText:      "Patient admitted for stabilisation.",
		DocumentType: domain.TypeDischargeSummary,
		EpisodeDate:  "2023-03-04",
		Weight:       domain.TypeDischargeSummary.Weight(),
	}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	c := chunks[0]
	if c.SourceName != doc.Name || c.DocumentType != doc.DocumentType ||
		c.EpisodeDate != doc.EpisodeDate || c.DocWeight != doc.Weight {
		t.Error("chunk did not carry document metadata")
	}
}
