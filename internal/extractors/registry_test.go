package extractors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/extractors/plaintext"
	"github.com/editnori/psych-intake-brief-sub001/internal/extractors/word"
)

func TestDefaultRegistryCoversAllUploadKinds(t *testing.T) {
	r := NewDefaultRegistry()

	text, err := r.ForKind(domain.KindText)
	require.NoError(t, err)
	assert.IsType(t, &plaintext.Extractor{}, text)

	pdf, err := r.ForKind(domain.KindPDF)
	require.NoError(t, err)
	assert.Same(t, text, pdf, "pdf uploads carry pre-extracted text")

	docx, err := r.ForKind(domain.KindWord)
	require.NoError(t, err)
	assert.IsType(t, &word.Extractor{}, docx)
}

func TestForKindUnregistered(t *testing.T) {
	r := NewRegistry()

	_, err := r.ForKind(domain.KindText)
	assert.ErrorIs(t, err, domain.ErrUnsupportedKind)
}

func TestKindsStableOrder(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Equal(t,
		[]domain.DocumentKind{domain.KindPDF, domain.KindText, domain.KindWord},
		r.Kinds())
}
