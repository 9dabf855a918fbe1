package extractors

import (
	"sort"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
	"github.com/editnori/psych-intake-brief-sub001/internal/extractors/plaintext"
	"github.com/editnori/psych-intake-brief-sub001/internal/extractors/word"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps document kinds to their extractors.
type Registry struct {
	byKind map[domain.DocumentKind]driven.TextExtractor
}

// NewRegistry creates an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{
		byKind: make(map[domain.DocumentKind]driven.TextExtractor),
	}
}

// NewDefaultRegistry creates a registry with all built-in extractors.
// PDF uploads carry text extracted upstream, so they share the plain
// text extractor.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	text := plaintext.New()
	r.Register(domain.KindText, text)
	r.Register(domain.KindPDF, text)
	r.Register(domain.KindWord, word.New())
	return r
}

// Register binds an extractor to a document kind. Registering the same
// kind twice replaces the earlier binding.
func (r *Registry) Register(kind domain.DocumentKind, extractor driven.TextExtractor) {
	r.byKind[kind] = extractor
}

// ForKind returns the extractor for a kind.
func (r *Registry) ForKind(kind domain.DocumentKind) (driven.TextExtractor, error) {
	extractor, ok := r.byKind[kind]
	if !ok {
		return nil, domain.ErrUnsupportedKind
	}
	return extractor, nil
}

// Kinds returns all registered kinds in stable order.
func (r *Registry) Kinds() []domain.DocumentKind {
	kinds := make([]domain.DocumentKind, 0, len(r.byKind))
	for kind := range r.byKind {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
