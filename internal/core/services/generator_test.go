package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
)

// mockCompletion implements driven.CompletionService with scripted
// responses consumed in order. Each Complete or Stream call takes the
// next script entry.
type mockCompletion struct {
	responses []mockResponse
	calls     []driven.CompletionRequest
}

type mockResponse struct {
	content string
	usage   domain.Usage
	err     error
}

func (m *mockCompletion) next() mockResponse {
	if len(m.responses) == 0 {
		return mockResponse{err: errors.New("mock: no scripted response left")}
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	return r
}

func (m *mockCompletion) Complete(_ context.Context, req driven.CompletionRequest) (*driven.CompletionResponse, error) {
	m.calls = append(m.calls, req)
	r := m.next()
	if r.err != nil {
		return nil, r.err
	}
	return &driven.CompletionResponse{Content: r.content, Usage: r.usage}, nil
}

func (m *mockCompletion) Stream(_ context.Context, req driven.CompletionRequest) (<-chan driven.StreamEvent, error) {
	m.calls = append(m.calls, req)
	r := m.next()

	ch := make(chan driven.StreamEvent, 8)
	go func() {
		defer close(ch)
		if r.err != nil {
			ch <- driven.StreamEvent{Err: r.err}
			return
		}
		// Emit the content in two deltas before the terminal event.
		half := len(r.content) / 2
		ch <- driven.StreamEvent{Delta: r.content[:half]}
		ch <- driven.StreamEvent{Delta: r.content[half:]}
		ch <- driven.StreamEvent{Response: &driven.CompletionResponse{Content: r.content, Usage: r.usage}}
	}()
	return ch, nil
}

func (m *mockCompletion) ModelName() string            { return "mock-model" }
func (m *mockCompletion) Ping(_ context.Context) error { return nil }
func (m *mockCompletion) Close() error                 { return nil }

// mockPrompts implements driven.PromptStore with a fixed map.
type mockPrompts struct {
	prompts map[string]string
}

func (m *mockPrompts) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPrompts) Reload() {}

// --- Fixtures ---

func testSection() domain.SectionSpec {
	return domain.SectionSpec{
		ID:       "hpi",
		Title:    "History of Present Illness",
		Guidance: "Summarise the presenting problem and its course.",
	}
}

func testEvidence() []domain.Chunk {
	return []domain.Chunk{
		{ID: "doc1#0", SourceID: "doc1", SourceName: "Intake Form", Text: "Patient reports insomnia for three months."},
		{ID: "doc1#1", SourceID: "doc1", SourceName: "Intake Form", Text: "Sleep latency exceeds two hours most nights."},
		{ID: "doc2#0", SourceID: "doc2", SourceName: "Progress Note", Text: "Trialled melatonin without benefit."},
	}
}

// --- Tests ---

func TestGenerateAcceptsCitedResult(t *testing.T) {
	completion := &mockCompletion{responses: []mockResponse{
		{
			content: `{"text":"Patient reports three months of insomnia.","citations":[{"chunk_id":"doc1#0","excerpt":"insomnia for three months"}]}`,
			usage:   domain.Usage{PromptTokens: 100, CompletionTokens: 40},
		},
	}}
	g := NewSectionGenerator(completion)

	result, err := g.Generate(context.Background(), testSection(), testEvidence(), driving.GenerateOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Patient reports three months of insomnia.", result.Text)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "doc1#0", result.Citations[0].ChunkID)
	assert.Equal(t, "doc1", result.Citations[0].SourceID)
	assert.Equal(t, "Intake Form", result.Citations[0].SourceName)
	assert.Equal(t, domain.Usage{PromptTokens: 100, CompletionTokens: 40}, g.Usage())
}

func TestGenerateAcceptedResultInvariant(t *testing.T) {
	// Non-empty text with only unresolvable citations and no inline
	// markers must never come back as an accepted uncited result: the
	// ladder runs, and when it exhausts, the call is rejected.
	completion := &mockCompletion{responses: []mockResponse{
		{content: `{"text":"Unsupported claim.","citations":[{"chunk_id":"ghost#9"}]}`},
		// Recovery call, strict retry, widened retry, all uncited.
		{content: `{"citations":[]}`},
		{content: `{"text":"Still no support.","citations":[]}`},
		{content: `{"text":"Still nothing.","citations":[]}`},
	}}
	g := NewSectionGenerator(completion)

	result, err := g.Generate(context.Background(), testSection(), testEvidence(), driving.GenerateOptions{})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrGenerationRejected)
}

func TestGenerateEmptyTextRejectedImmediately(t *testing.T) {
	completion := &mockCompletion{responses: []mockResponse{
		{content: `{"text":"","citations":[]}`},
	}}
	g := NewSectionGenerator(completion)

	_, err := g.Generate(context.Background(), testSection(), testEvidence(), driving.GenerateOptions{})

	assert.ErrorIs(t, err, domain.ErrEmptyGeneration)
	// No repair call follows an empty generation.
	assert.Len(t, completion.calls, 1)
}

func TestGenerateInlineCitationScan(t *testing.T) {
	// Empty citations array but the text carries a chunk-id marker: the
	// first rung of the ladder synthesises the citation without another
	// model call.
	completion := &mockCompletion{responses: []mockResponse{
		{content: `{"text":"Patient reports insomnia [chunk doc1#0].","citations":[]}`},
	}}
	g := NewSectionGenerator(completion)

	result, err := g.Generate(context.Background(), testSection(), testEvidence(), driving.GenerateOptions{})

	require.NoError(t, err)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "doc1#0", result.Citations[0].ChunkID)
	assert.NotEmpty(t, result.Citations[0].Excerpt)
	assert.Len(t, completion.calls, 1, "inline scan must not issue a model call")
}

func TestGenerateRecoveryCallAfterScanMisses(t *testing.T) {
	// No inline marker in the text: the ladder escalates to the recovery
	// call rather than rejecting outright.
	completion := &mockCompletion{responses: []mockResponse{
		{content: `{"text":"Patient reports insomnia.","citations":[]}`},
		{content: `{"citations":[{"chunk_id":"doc1#0","excerpt":"insomnia for three months"}]}`},
	}}
	g := NewSectionGenerator(completion)

	result, err := g.Generate(context.Background(), testSection(), testEvidence(), driving.GenerateOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Patient reports insomnia.", result.Text, "recovery must not rewrite the text")
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "doc1#0", result.Citations[0].ChunkID)
	assert.Len(t, completion.calls, 2)
}

func TestGenerateStrictRetryAfterRecoveryFails(t *testing.T) {
	completion := &mockCompletion{responses: []mockResponse{
		{content: `{"text":"Patient reports insomnia.","citations":[]}`},
		{err: errors.New("recovery timeout")},
		{content: `{"text":"Patient reports insomnia per intake.","citations":[{"chunk_id":"doc1#0"}]}`},
	}}
	g := NewSectionGenerator(completion)

	result, err := g.Generate(context.Background(), testSection(), testEvidence(), driving.GenerateOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Patient reports insomnia per intake.", result.Text)
	require.Len(t, result.Citations, 1)
	assert.Len(t, completion.calls, 3)
}

func TestGenerateWidenedEvidenceRetry(t *testing.T) {
	pool := append(testEvidence(),
		domain.Chunk{ID: "doc3#0", SourceID: "doc3", SourceName: "Old Eval", Text: "Chronic insomnia noted in 2019."},
		domain.Chunk{ID: "doc3#1", SourceID: "doc3", SourceName: "Old Eval", Text: "Prior trials of trazodone."},
	)
	evidence := pool[:2]

	completion := &mockCompletion{responses: []mockResponse{
		{content: `{"text":"Patient reports insomnia.","citations":[]}`},
		// Recovery and strict retry fail; the widened call succeeds.
		{content: `{"citations":[]}`},
		{content: `{"text":"No luck.","citations":[]}`},
		{content: `{"text":"Chronic insomnia since 2019.","citations":[{"chunk_id":"doc3#0"}]}`},
	}}
	g := NewSectionGenerator(completion)

	result, err := g.Generate(context.Background(), testSection(), evidence,
		driving.GenerateOptions{EvidencePool: pool})

	require.NoError(t, err)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "doc3#0", result.Citations[0].ChunkID,
		"widened retry may cite chunks beyond the original selection")
	require.Len(t, completion.calls, 4)
	// The widened call's evidence block includes pool chunks the original
	// selection did not.
	assert.Contains(t, completion.calls[3].Input, "doc3#0")
	assert.NotContains(t, completion.calls[2].Input, "doc3#0")
}

func TestGenerateFiltersUnknownCitations(t *testing.T) {
	completion := &mockCompletion{responses: []mockResponse{
		{content: `{"text":"Insomnia with failed melatonin trial.","citations":[` +
			`{"chunk_id":"doc1#0"},{"chunk_id":"fabricated#7"},{"chunk_id":"doc2#0"},{"chunk_id":"doc1#0"}]}`},
	}}
	g := NewSectionGenerator(completion)

	result, err := g.Generate(context.Background(), testSection(), testEvidence(), driving.GenerateOptions{})

	require.NoError(t, err)
	require.Len(t, result.Citations, 2, "unknown ids dropped, duplicates collapsed")
	assert.Equal(t, "doc1#0", result.Citations[0].ChunkID)
	assert.Equal(t, "doc2#0", result.Citations[1].ChunkID)
}

func TestGenerateParseErrorRetriesOnce(t *testing.T) {
	completion := &mockCompletion{responses: []mockResponse{
		{content: `Sure! Here is the section you asked for:`},
		{content: `{"text":"Patient reports insomnia.","citations":[{"chunk_id":"doc1#0"}]}`},
	}}
	g := NewSectionGenerator(completion)

	result, err := g.Generate(context.Background(), testSection(), testEvidence(), driving.GenerateOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Patient reports insomnia.", result.Text)
	assert.Len(t, completion.calls, 2)
}

func TestGenerateToleratesCodeFences(t *testing.T) {
	completion := &mockCompletion{responses: []mockResponse{
		{content: "```json\n{\"text\":\"Fenced response.\",\"citations\":[{\"chunk_id\":\"doc1#0\"}]}\n```"},
	}}
	g := NewSectionGenerator(completion)

	result, err := g.Generate(context.Background(), testSection(), testEvidence(), driving.GenerateOptions{})

	require.NoError(t, err)
	assert.Equal(t, "Fenced response.", result.Text)
}

func TestGenerateStreamsPartials(t *testing.T) {
	completion := &mockCompletion{responses: []mockResponse{
		{content: `{"text":"Patient reports insomnia nightly.","citations":[{"chunk_id":"doc1#0"}]}`},
	}}
	g := NewSectionGenerator(completion)

	partials := make(chan string, 16)
	result, err := g.Generate(context.Background(), testSection(), testEvidence(),
		driving.GenerateOptions{Partials: partials})

	require.NoError(t, err)
	assert.Equal(t, "Patient reports insomnia nightly.", result.Text)

	// At least one in-progress partial arrived, and every partial is a
	// prefix of the final text.
	close(partials)
	var got []string
	for p := range partials {
		got = append(got, p)
	}
	require.NotEmpty(t, got)
	for _, p := range got {
		assert.True(t, len(p) <= len(result.Text))
	}
}

func TestGenerateStreamTransportError(t *testing.T) {
	completion := &mockCompletion{responses: []mockResponse{
		{err: errors.New("connection reset")},
	}}
	g := NewSectionGenerator(completion)

	partials := make(chan string, 1)
	_, err := g.Generate(context.Background(), testSection(), testEvidence(),
		driving.GenerateOptions{Partials: partials})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGeneratePromptStoreOverride(t *testing.T) {
	completion := &mockCompletion{responses: []mockResponse{
		{content: `{"text":"Done.","citations":[{"chunk_id":"doc1#0"}]}`},
	}}
	g := NewSectionGenerator(completion)
	g.SetPromptStore(&mockPrompts{prompts: map[string]string{
		driven.PromptSectionDraft: "CUSTOM %s / %s / %s",
	}})

	_, err := g.Generate(context.Background(), testSection(), testEvidence(), driving.GenerateOptions{})

	require.NoError(t, err)
	require.Len(t, completion.calls, 1)
	assert.Contains(t, completion.calls[0].Instructions, "CUSTOM History of Present Illness")
}

func TestGenerateNilCompletionService(t *testing.T) {
	g := NewSectionGenerator(nil)

	_, err := g.Generate(context.Background(), testSection(), testEvidence(), driving.GenerateOptions{})

	assert.ErrorIs(t, err, domain.ErrCompletionUnavailable)
}

func TestGenerateUsageAccumulatesAcrossCalls(t *testing.T) {
	completion := &mockCompletion{responses: []mockResponse{
		{content: `{"text":"First.","citations":[{"chunk_id":"doc1#0"}]}`, usage: domain.Usage{PromptTokens: 10, CompletionTokens: 5}},
		{content: `{"text":"Second.","citations":[{"chunk_id":"doc2#0"}]}`, usage: domain.Usage{PromptTokens: 20, CompletionTokens: 7}},
	}}
	g := NewSectionGenerator(completion)

	_, err := g.Generate(context.Background(), testSection(), testEvidence(), driving.GenerateOptions{})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), testSection(), testEvidence(), driving.GenerateOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.Usage{PromptTokens: 30, CompletionTokens: 12}, g.Usage())
}

func TestWidenEvidence(t *testing.T) {
	pool := testEvidence()
	evidence := pool[:1]

	widened := widenEvidence(evidence, pool)

	assert.Len(t, widened, 2)
	assert.Equal(t, "doc1#0", widened[0].ID, "original selection stays in front")

	// Nil pool disables widening entirely.
	assert.Equal(t, evidence, widenEvidence(evidence, nil))
}
