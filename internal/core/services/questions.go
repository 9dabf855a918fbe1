package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
	"github.com/editnori/psych-intake-brief-sub001/internal/logger"
)

// Ensure QuestionLedger implements the interface.
var _ driving.QuestionLedger = (*QuestionLedger)(nil)

// questionBlockPattern marks the start of the question block inside
// generated section text.
var questionBlockPattern = regexp.MustCompile(
	`(?im)^\s*(?:open\s+questions?|questions?\s+for\s+(?:the\s+)?(?:clinician|provider))\s*:?\s*$`)

// questionDenyList filters out demographic and metadata questions. The
// model sometimes asks for facts that belong on the face sheet, not in
// the clinical ledger.
var questionDenyList = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:date\s+of\s+birth|dob|age)\b`),
	regexp.MustCompile(`(?i)\b(?:legal\s+)?name\b`),
	regexp.MustCompile(`(?i)\b(?:address|phone|email|contact\s+information)\b`),
	regexp.MustCompile(`(?i)\b(?:insurance|policy\s+number|member\s+id|authorisation|authorization)\b`),
	regexp.MustCompile(`(?i)\b(?:ssn|social\s+security|mrn|medical\s+record\s+number)\b`),
	regexp.MustCompile(`(?i)\b(?:gender|sex|marital\s+status|occupation)\b\s*\?`),
}

// bulletPrefix strips list markers from question lines.
var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// QuestionLedger maintains the open-question state derived from generated
// section text.
type QuestionLedger struct {
	store driven.QuestionStore
}

// NewQuestionLedger creates a new question ledger over the given store.
func NewQuestionLedger(store driven.QuestionStore) *QuestionLedger {
	return &QuestionLedger{store: store}
}

// Sync extracts questions from freshly generated section text and merges
// them idempotently against prior state. Returns the section's questions
// after the merge.
func (l *QuestionLedger) Sync(ctx context.Context, sectionID, generatedText string) ([]domain.OpenQuestion, error) {
	logger.Section("Question Sync")

	incoming := ExtractQuestions(generatedText)
	logger.Debug("Section %s: extracted %d questions", sectionID, len(incoming))

	existing, err := l.store.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("list questions for %s: %w", sectionID, err)
	}

	byKey := make(map[string]*domain.OpenQuestion, len(existing))
	for i := range existing {
		byKey[existing[i].Key()] = &existing[i]
	}

	now := time.Now().UTC()
	incomingKeys := make(map[string]bool, len(incoming))
	for _, text := range incoming {
		key := domain.QuestionKey(text)
		incomingKeys[key] = true

		if _, ok := byKey[key]; ok {
			// Known question: answered status and manual edits carry
			// forward untouched. Idempotent by construction.
			continue
		}

		q := &domain.OpenQuestion{
			ID:        uuid.NewString(),
			SectionID: sectionID,
			Text:      text,
			Status:    domain.StatusOpen,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := l.store.Save(ctx, q); err != nil {
			return nil, fmt.Errorf("save question: %w", err)
		}
		logger.Debug("New question: %q", text)
	}

	// Previously open questions absent from the new extraction resolve;
	// answered questions are preserved indefinitely.
	for i := range existing {
		q := &existing[i]
		if incomingKeys[q.Key()] || q.Status != domain.StatusOpen {
			continue
		}
		if !q.Status.CanTransition(domain.StatusResolved) {
			continue
		}
		q.Status = domain.StatusResolved
		q.UpdatedAt = now
		if err := l.store.Save(ctx, q); err != nil {
			return nil, fmt.Errorf("resolve question %s: %w", q.ID, err)
		}
		logger.Debug("Resolved question: %q", q.Text)
	}

	return l.store.ListBySection(ctx, sectionID)
}

// Answer attaches an answer and moves the question to answered.
func (l *QuestionLedger) Answer(ctx context.Context, questionID, answer string) error {
	if strings.TrimSpace(answer) == "" {
		return fmt.Errorf("empty answer: %w", domain.ErrInvalidInput)
	}

	q, err := l.store.Get(ctx, questionID)
	if err != nil {
		return fmt.Errorf("get question %s: %w", questionID, err)
	}
	if !q.Status.CanTransition(domain.StatusAnswered) {
		return fmt.Errorf("question %s is %s: %w", questionID, q.Status, domain.ErrInvalidInput)
	}

	q.Answer = answer
	q.Status = domain.StatusAnswered
	q.UpdatedAt = time.Now().UTC()
	return l.store.Save(ctx, q)
}

// ClearAnswer removes the answer and reopens the question.
func (l *QuestionLedger) ClearAnswer(ctx context.Context, questionID string) error {
	q, err := l.store.Get(ctx, questionID)
	if err != nil {
		return fmt.Errorf("get question %s: %w", questionID, err)
	}
	if !q.Status.CanTransition(domain.StatusOpen) {
		return fmt.Errorf("question %s is %s: %w", questionID, q.Status, domain.ErrInvalidInput)
	}

	q.Answer = ""
	q.Status = domain.StatusOpen
	q.UpdatedAt = time.Now().UTC()
	return l.store.Save(ctx, q)
}

// Remove hard-deletes a question. Explicit user removal only; the merge
// path soft-deletes via resolved.
func (l *QuestionLedger) Remove(ctx context.Context, questionID string) error {
	return l.store.Delete(ctx, questionID)
}

// List returns all questions across sections.
func (l *QuestionLedger) List(ctx context.Context) ([]domain.OpenQuestion, error) {
	return l.store.List(ctx)
}

// ExtractQuestions parses the question block out of generated text.
// Questions must end in a literal question mark, demographic questions
// are denied, and the result is capped to one question per section (the
// first surviving line wins).
func ExtractQuestions(text string) []string {
	block := questionBlock(text)
	if block == "" {
		return nil
	}

	seen := false
	for _, line := range strings.Split(block, "\n") {
		line = bulletPrefix.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line == "" {
			// A blank line after the block's content ends the block.
			if seen {
				break
			}
			continue
		}
		seen = true
		if !strings.Contains(line, "?") {
			continue
		}
		if denied(line) {
			continue
		}
		return []string{line}
	}
	return nil
}

// questionBlock returns the text following the question-block marker, or
// empty when no marker is present.
func questionBlock(text string) string {
	loc := questionBlockPattern.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	return text[loc[1]:]
}

// denied tests a question against the demographic deny-list.
func denied(question string) bool {
	for _, pattern := range questionDenyList {
		if pattern.MatchString(question) {
			return true
		}
	}
	return false
}
