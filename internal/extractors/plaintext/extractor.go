// Package plaintext extracts text from plain text uploads. It also
// serves PDF uploads, whose text is extracted before it reaches us.
package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Kind returns the document kind this extractor handles.
func (e *Extractor) Kind() domain.DocumentKind {
	return domain.KindText
}

// Extract reads the file and returns its text. Line endings are
// normalised to LF; invalid UTF-8 sequences are replaced and reported
// as a warning rather than failing the upload.
func (e *Extractor) Extract(_ context.Context, name string, r io.Reader) (*driven.ExtractResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	text := string(raw)
	result := &driven.ExtractResult{}

	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, string(utf8.RuneError))
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s: invalid UTF-8 sequences replaced", name))
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	result.Text = text
	return result, nil
}
