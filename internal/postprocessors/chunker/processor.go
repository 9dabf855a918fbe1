// Package chunker provides a fixed-size text chunking processor.
package chunker

import (
	"context"
	"strings"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// DefaultWindowSize is the default number of characters per chunk.
const DefaultWindowSize = 1200

// DefaultOverlap is the default number of overlapping characters.
const DefaultOverlap = 200

// Processor splits document text into fixed-size overlapping chunks.
// It implements the PostProcessor interface.
//
// Chunking is deterministic: the same text with the same configuration
// always yields the same boundaries and ids. Citation matching depends on
// this stability.
type Processor struct {
	windowSize int
	overlap    int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithWindowSize sets the chunk window size in characters.
func WithWindowSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.windowSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithConfig applies a chunk window configuration.
func WithConfig(cfg domain.ChunkConfig) Option {
	return func(p *Processor) {
		if cfg.WindowSize > 0 {
			p.windowSize = cfg.WindowSize
		}
		if cfg.Overlap >= 0 {
			p.overlap = cfg.Overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		windowSize: DefaultWindowSize,
		overlap:    DefaultOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed window size
	if p.overlap >= p.windowSize {
		p.overlap = p.windowSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document text into chunks.
// Input chunks are ignored; this processor creates new chunks from the
// document text. Empty or whitespace-only text yields zero chunks, not an
// error.
func (p *Processor) Process(_ context.Context, doc *domain.SourceDocument, _ []domain.Chunk) ([]domain.Chunk, error) {
	text := doc.RawText
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	textLen := len(text)
	estimated := (textLen / (p.windowSize - p.overlap)) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	start := 0
	ordinal := 0

	for start < textLen {
		end := start + p.windowSize
		if end > textLen {
			end = textLen
		}

		chunks = append(chunks, domain.Chunk{
			ID:           domain.ChunkID(doc.ID, ordinal),
			SourceID:     doc.ID,
			SourceName:   doc.Name,
			Text:         text[start:end],
			StartOffset:  start,
			EndOffset:    end,
			DocumentType: doc.DocumentType,
			EpisodeDate:  doc.EpisodeDate,
			DocWeight:    doc.Weight,
		})
		ordinal++

		if end >= textLen {
			break
		}
		start = end - p.overlap
	}

	return chunks, nil
}
