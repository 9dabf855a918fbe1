package domain

import (
	"strings"
	"time"
	"unicode"
)

// QuestionStatus is the lifecycle state of an open question.
type QuestionStatus string

// Available question statuses.
const (
	// StatusOpen means the question awaits an answer.
	StatusOpen QuestionStatus = "open"

	// StatusAnswered means a later pass attached an answer.
	// Answered questions are preserved indefinitely.
	StatusAnswered QuestionStatus = "answered"

	// StatusResolved means the originating section output no longer
	// contains the question and it was never answered. Soft-deleted.
	StatusResolved QuestionStatus = "resolved"
)

// IsValid returns true if the status is recognised.
func (s QuestionStatus) IsValid() bool {
	switch s {
	case StatusOpen, StatusAnswered, StatusResolved:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s QuestionStatus) String() string {
	return string(s)
}

// CanTransition reports whether the status may move to next.
// Allowed transitions: open→answered, open→resolved, answered→open
// (manual clear). Resolved is terminal except by explicit removal.
func (s QuestionStatus) CanTransition(next QuestionStatus) bool {
	switch s {
	case StatusOpen:
		return next == StatusAnswered || next == StatusResolved
	case StatusAnswered:
		return next == StatusOpen
	default:
		return false
	}
}

// OpenQuestion is a clarifying question derived from generated text.
// Identity for merge purposes is the normalised text key, not the ID.
type OpenQuestion struct {
	// ID is the unique identifier.
	ID string

	// SectionID is the section whose output raised the question.
	SectionID string

	// Text is the question as extracted.
	Text string

	// Rationale explains why the question matters, when the model
	// provided one.
	Rationale string

	// Answer holds the attached answer once answered.
	Answer string

	// Status is the lifecycle state.
	Status QuestionStatus

	// CreatedAt is when the question was first extracted.
	CreatedAt time.Time

	// UpdatedAt is when the question last changed.
	UpdatedAt time.Time
}

// Key returns the merge identity for the question: its text case-folded
// with punctuation stripped and whitespace collapsed.
func (q *OpenQuestion) Key() string {
	return QuestionKey(q.Text)
}

// QuestionKey normalises question text into a merge key.
func QuestionKey(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
		// Punctuation is dropped entirely.
	}
	return strings.TrimSpace(b.String())
}
