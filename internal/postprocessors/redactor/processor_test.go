package redactor

import (
	"context"
	"strings"
	"testing"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ssn", "SSN 123-45-6789 on file", "SSN [SSN] on file"},
		{"mrn with colon", "MRN: 8841255", "MRN [MRN]"},
		{"mrn with hash", "mrn#44123987", "MRN [MRN]"},
		{"dob labelled", "DOB: 04/12/1988, presents today", "DOB [DOB], presents today"},
		{"date of birth spelled out", "Date of Birth: 4-12-88", "DOB [DOB]"},
		{"phone parenthesised", "call (415) 555-0142 to confirm", "call [PHONE] to confirm"},
		{"phone dashed", "call 415-555-0142 to confirm", "call [PHONE] to confirm"},
		{"phone with country code", "call +1 415.555.0142", "call [PHONE]"},
		{"email", "sent to intake@clinic.example.org today", "sent to [EMAIL] today"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Redact(tt.in); got != tt.want {
				t.Errorf("Redact(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedact_PreservesEpisodeDates(t *testing.T) {
	in := "Date of Service: 03/04/2023. DOB: 01/02/1990."
	got := Redact(in)

	if !strings.Contains(got, "03/04/2023") {
		t.Errorf("episode date was redacted: %q", got)
	}
	if strings.Contains(got, "01/02/1990") {
		t.Errorf("DOB survived redaction: %q", got)
	}
}

func TestProcess_RewritesDocumentText(t *testing.T) {
	p := New()
	doc := &domain.SourceDocument{RawText: "Reach patient at 415-555-0142."}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Error("redactor should pass chunks through untouched")
	}
	if doc.RawText != "Reach patient at [PHONE]." {
		t.Errorf("text not redacted: %q", doc.RawText)
	}
}

func TestProcessor_Name(t *testing.T) {
	if New().Name() != "redactor" {
		t.Error("unexpected processor name")
	}
}
