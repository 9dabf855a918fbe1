package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
	"github.com/editnori/psych-intake-brief-sub001/internal/logger"
	"github.com/editnori/psych-intake-brief-sub001/internal/streamjson"
)

// Ensure SectionGenerator implements the interfaces.
var (
	_ driving.SectionGenerator = (*SectionGenerator)(nil)
	_ driven.PromptStoreAware  = (*SectionGenerator)(nil)
)

// genState names the generator's position in its request lifecycle.
// Used for logging; the flow through Generate is otherwise linear.
type genState string

const (
	stateRequesting genState = "requesting"
	stateStreaming  genState = "streaming"
	stateValidating genState = "validating"
	stateRepairing  genState = "repairing"
	stateAccepted   genState = "accepted"
	stateRejected   genState = "rejected"
)

// textField is the streamed field name in the model's JSON envelope.
const textField = "text"

// defaultSectionDraftPrompt is the fallback when no PromptStore is configured.
const defaultSectionDraftPrompt = `You are drafting the "%s" section of a clinical intake brief.

%s

Formatting rules:
%s

Ground every sentence in the evidence excerpts provided. Cite the chunk id of each supporting excerpt. Respond with a JSON object of the form {"text": "...", "citations": [{"chunk_id": "...", "excerpt": "..."}]}. Do not include any other keys or commentary.`

// defaultCitationRecoveryPrompt is the fallback when no PromptStore is configured.
const defaultCitationRecoveryPrompt = `The following section text has already been written and must not be changed:

%s

Attach citations to it from these evidence excerpts:

%s

Respond with a JSON object {"citations": [{"chunk_id": "...", "excerpt": "..."}]} listing every excerpt that supports a statement in the text. Do not rewrite the text.`

// defaultStrictCitationsPrompt is the fallback when no PromptStore is configured.
const defaultStrictCitationsPrompt = `Every sentence MUST be supported by a cited evidence excerpt. Omit any statement you cannot cite. An empty citations array is not acceptable.`

// SectionGenerator orchestrates one citation-verified generation request.
//
// A request moves Requesting -> (StreamingPartial)* -> Validating and then
// either Accepted, or through the repair ladder back to Validating, or
// Rejected once every repair path is exhausted. Rejection is a soft,
// section-scoped outcome: the caller keeps whatever content it already had.
type SectionGenerator struct {
	completion      driven.CompletionService
	promptStore     driven.PromptStore
	limiter         *rate.Limiter
	maxOutputTokens int

	mu    sync.Mutex
	usage domain.Usage
}

// GeneratorOption configures the section generator.
type GeneratorOption func(*SectionGenerator)

// WithRateLimit throttles completion calls to r requests per second with
// the given burst. Zero or negative r disables throttling.
func WithRateLimit(r float64, burst int) GeneratorOption {
	return func(g *SectionGenerator) {
		if r > 0 {
			if burst < 1 {
				burst = 1
			}
			g.limiter = rate.NewLimiter(rate.Limit(r), burst)
		}
	}
}

// WithMaxOutputTokens bounds generated length per call. Zero means the
// provider default.
func WithMaxOutputTokens(n int) GeneratorOption {
	return func(g *SectionGenerator) {
		if n > 0 {
			g.maxOutputTokens = n
		}
	}
}

// NewSectionGenerator creates a new citation-verified generator.
func NewSectionGenerator(completion driven.CompletionService, opts ...GeneratorOption) *SectionGenerator {
	g := &SectionGenerator{completion: completion}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SetPromptStore sets the prompt store for loading customisable prompts.
// If not set, the generator uses hardcoded default prompts.
func (g *SectionGenerator) SetPromptStore(store driven.PromptStore) {
	g.promptStore = store
}

// Usage returns the cumulative token usage across all calls made by this
// generator. Safe for concurrent use.
func (g *SectionGenerator) Usage() domain.Usage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.usage
}

// modelEnvelope is the JSON shape requested from the completion service.
type modelEnvelope struct {
	Text      string             `json:"text"`
	Citations []envelopeCitation `json:"citations"`
}

// envelopeCitation is one citation as the model emits it.
type envelopeCitation struct {
	ChunkID string `json:"chunk_id"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Generate runs one generation request through validation and, when
// needed, the citation repair ladder.
func (g *SectionGenerator) Generate(
	ctx context.Context,
	section domain.SectionSpec,
	evidence []domain.Chunk,
	opts driving.GenerateOptions,
) (*domain.GenerationResult, error) {
	logger.Section("Section Generation")
	logger.Debug("Target: %s, evidence: %d chunks", section.ID, len(evidence))

	if g.completion == nil {
		return nil, domain.ErrCompletionUnavailable
	}

	instructions := g.draftInstructions(section)
	input := evidenceBlock(evidence)

	envelope, err := g.request(ctx, instructions, input, opts.Partials)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", section.ID, err)
	}

	g.logState(section.ID, stateValidating)
	if strings.TrimSpace(envelope.Text) == "" {
		// The caller preserves previously accepted content.
		return nil, fmt.Errorf("generate %s: %w", section.ID, domain.ErrEmptyGeneration)
	}

	citations := resolveCitations(envelope.Citations, evidence)
	if len(citations) > 0 {
		g.logState(section.ID, stateAccepted)
		return &domain.GenerationResult{Text: envelope.Text, Citations: citations}, nil
	}

	g.logState(section.ID, stateRepairing)
	result, err := g.repair(ctx, section, envelope.Text, evidence, opts)
	if err != nil {
		g.logState(section.ID, stateRejected)
		return nil, fmt.Errorf("generate %s: %w", section.ID, err)
	}

	g.logState(section.ID, stateAccepted)
	return result, nil
}

// repair runs the escalation ladder for a generation whose text arrived
// without usable citations. First success wins.
func (g *SectionGenerator) repair(
	ctx context.Context,
	section domain.SectionSpec,
	text string,
	evidence []domain.Chunk,
	opts driving.GenerateOptions,
) (*domain.GenerationResult, error) {
	// (a) Scan the generated text itself for inline chunk-id markers.
	if citations := scanInlineCitations(text, evidence); len(citations) > 0 {
		logger.Info("Repair: synthesised %d citations from inline markers", len(citations))
		return &domain.GenerationResult{Text: text, Citations: citations}, nil
	}

	// (b) Dedicated recovery call: attach citations to the existing text
	// without regenerating it.
	if citations := g.recoverCitations(ctx, text, evidence); len(citations) > 0 {
		logger.Info("Repair: recovery call attached %d citations", len(citations))
		return &domain.GenerationResult{Text: text, Citations: citations}, nil
	}

	// (c) Retry the original generation with a stricter prompt.
	strict := g.draftInstructions(section) + "\n\n" + g.loadPrompt(driven.PromptStrictCitations, defaultStrictCitationsPrompt)
	if result := g.retryGeneration(ctx, strict, evidence); result != nil {
		logger.Info("Repair: strict retry produced a cited result")
		return result, nil
	}

	// (d) Widen the evidence set and retry once more.
	widened := widenEvidence(evidence, opts.EvidencePool)
	if result := g.retryGeneration(ctx, strict, widened); result != nil {
		logger.Info("Repair: widened-evidence retry produced a cited result (%d chunks)", len(widened))
		return result, nil
	}

	return nil, domain.ErrGenerationRejected
}

// retryGeneration reruns a full generation and validates it. Returns nil
// on any failure: the ladder moves on.
func (g *SectionGenerator) retryGeneration(
	ctx context.Context, instructions string, evidence []domain.Chunk,
) *domain.GenerationResult {
	envelope, err := g.request(ctx, instructions, evidenceBlock(evidence), nil)
	if err != nil {
		logger.Warn("Repair retry failed: %v", err)
		return nil
	}
	if strings.TrimSpace(envelope.Text) == "" {
		return nil
	}
	citations := resolveCitations(envelope.Citations, evidence)
	if len(citations) == 0 {
		citations = scanInlineCitations(envelope.Text, evidence)
	}
	if len(citations) == 0 {
		return nil
	}
	return &domain.GenerationResult{Text: envelope.Text, Citations: citations}
}

// recoverCitations asks the model to attach citations to already-produced
// text. Failures are swallowed: the ladder moves on.
func (g *SectionGenerator) recoverCitations(
	ctx context.Context, text string, evidence []domain.Chunk,
) []domain.Citation {
	prompt := fmt.Sprintf(
		g.loadPrompt(driven.PromptCitationRecovery, defaultCitationRecoveryPrompt),
		text, evidenceBlock(evidence),
	)

	envelope, err := g.request(ctx, prompt, "", nil)
	if err != nil {
		logger.Warn("Citation recovery call failed: %v", err)
		return nil
	}
	return resolveCitations(envelope.Citations, evidence)
}

// request performs one completion call, streaming when a partials channel
// is supplied, and parses the JSON envelope. A parse failure counts as a
// transport failure: one direct, non-streaming retry is attempted before
// giving up.
func (g *SectionGenerator) request(
	ctx context.Context, instructions, input string, partials chan<- string,
) (*modelEnvelope, error) {
	content, err := g.complete(ctx, instructions, input, partials)
	if err != nil {
		return nil, err
	}

	envelope, parseErr := parseEnvelope(content)
	if parseErr == nil {
		return envelope, nil
	}
	logger.Warn("Envelope parse failed (%v), retrying without streaming", parseErr)

	content, err = g.complete(ctx, instructions, input, nil)
	if err != nil {
		return nil, err
	}
	envelope, parseErr = parseEnvelope(content)
	if parseErr != nil {
		return nil, fmt.Errorf("parse response: %w", parseErr)
	}
	return envelope, nil
}

// complete performs the raw transport call.
func (g *SectionGenerator) complete(
	ctx context.Context, instructions, input string, partials chan<- string,
) (string, error) {
	if err := g.wait(ctx); err != nil {
		return "", err
	}

	req := driven.CompletionRequest{
		Instructions:    instructions,
		Input:           input,
		JSONResponse:    true,
		MaxOutputTokens: g.maxOutputTokens,
	}

	if partials == nil {
		g.logState("", stateRequesting)
		resp, err := g.completion.Complete(ctx, req)
		if err != nil {
			return "", err
		}
		g.recordUsage(resp.Usage)
		return resp.Content, nil
	}

	g.logState("", stateStreaming)
	events, err := g.completion.Stream(ctx, req)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for event := range events {
		if event.Err != nil {
			return "", event.Err
		}
		if event.Response != nil {
			g.recordUsage(event.Response.Usage)
			return event.Response.Content, nil
		}
		buf.WriteString(event.Delta)
		if partial, ok := streamjson.Field(buf.String(), textField); ok {
			// Non-blocking: a slow receiver misses intermediate
			// states, never stalls the stream.
			select {
			case partials <- partial:
			default:
			}
		}
	}

	// Stream closed without a terminal event: use what accumulated.
	return buf.String(), nil
}

// wait applies the client-side rate limit, if any.
func (g *SectionGenerator) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

// recordUsage accumulates token usage from one response.
func (g *SectionGenerator) recordUsage(u domain.Usage) {
	g.mu.Lock()
	g.usage.Add(u)
	g.mu.Unlock()
}

// draftInstructions builds the section generation prompt.
func (g *SectionGenerator) draftInstructions(section domain.SectionSpec) string {
	format := section.Format
	if format == "" {
		format = "Narrative prose, clinical register, no headings."
	}
	return fmt.Sprintf(
		g.loadPrompt(driven.PromptSectionDraft, defaultSectionDraftPrompt),
		section.Title, section.Guidance, format,
	)
}

// loadPrompt loads a prompt from the store, falling back to the default if
// unavailable.
func (g *SectionGenerator) loadPrompt(name, fallback string) string {
	if g.promptStore == nil {
		return fallback
	}
	prompt, err := g.promptStore.Load(name)
	if err != nil {
		return fallback
	}
	return prompt
}

// logState logs a state transition.
func (g *SectionGenerator) logState(target string, state genState) {
	if target != "" {
		logger.Debug("Generator [%s] -> %s", target, state)
	} else {
		logger.Debug("Generator -> %s", state)
	}
}

// evidenceBlock serialises chunks into the prompt's evidence section. Each
// chunk is tagged with its id and source name so the model can cite by id.
func evidenceBlock(evidence []domain.Chunk) string {
	var b strings.Builder
	for _, c := range evidence {
		fmt.Fprintf(&b, "[chunk %s] (%s)\n%s\n\n", c.ID, c.SourceName, c.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// parseEnvelope decodes the model's JSON envelope, tolerating markdown
// code fences around it.
func parseEnvelope(content string) (*modelEnvelope, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var envelope modelEnvelope
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

// resolveCitations maps model citations back to evidence chunks.
// Citations whose chunk id is absent from the evidence set are dropped,
// never fabricated; duplicates collapse to the first occurrence.
func resolveCitations(raw []envelopeCitation, evidence []domain.Chunk) []domain.Citation {
	byID := make(map[string]domain.Chunk, len(evidence))
	for _, c := range evidence {
		byID[c.ID] = c
	}

	seen := make(map[string]bool, len(raw))
	out := make([]domain.Citation, 0, len(raw))
	for _, rc := range raw {
		chunk, ok := byID[rc.ChunkID]
		if !ok || seen[rc.ChunkID] {
			continue
		}
		seen[rc.ChunkID] = true

		excerpt := rc.Excerpt
		if excerpt == "" {
			excerpt = excerptOf(chunk.Text)
		}
		out = append(out, domain.Citation{
			SourceID:   chunk.SourceID,
			SourceName: chunk.SourceName,
			ChunkID:    chunk.ID,
			Excerpt:    excerpt,
		})
	}
	return out
}

// scanInlineCitations finds chunk-id markers the model wrote into the text
// itself (e.g. "[chunk doc-1#2]" or a bare "doc-1#2") and synthesises
// citations from them.
func scanInlineCitations(text string, evidence []domain.Chunk) []domain.Citation {
	out := make([]domain.Citation, 0, 4)
	for _, c := range evidence {
		if !strings.Contains(text, c.ID) {
			continue
		}
		out = append(out, domain.Citation{
			SourceID:   c.SourceID,
			SourceName: c.SourceName,
			ChunkID:    c.ID,
			Excerpt:    excerptOf(c.Text),
		})
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// excerptLen bounds synthesised citation excerpts.
const excerptLen = 240

// excerptOf returns the leading portion of chunk text for a synthesised
// citation.
func excerptOf(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= excerptLen {
		return text
	}
	return text[:excerptLen]
}

// widenEvidence roughly doubles the evidence selection from the ranked
// pool, bounded by the pool size. Chunks already selected stay in front.
func widenEvidence(evidence []domain.Chunk, pool []domain.Chunk) []domain.Chunk {
	if len(pool) == 0 {
		return evidence
	}

	target := len(evidence) * 2
	if target > len(pool) {
		target = len(pool)
	}
	if target <= len(evidence) {
		return evidence
	}

	have := make(map[string]bool, len(evidence))
	for _, c := range evidence {
		have[c.ID] = true
	}

	out := make([]domain.Chunk, 0, target)
	out = append(out, evidence...)
	for _, c := range pool {
		if len(out) >= target {
			break
		}
		if !have[c.ID] {
			have[c.ID] = true
			out = append(out, c)
		}
	}
	return out
}

// IsRejection reports whether err is the soft, section-scoped rejection
// produced when every repair path is exhausted.
func IsRejection(err error) bool {
	return errors.Is(err, domain.ErrGenerationRejected) ||
		errors.Is(err, domain.ErrEmptyGeneration)
}
