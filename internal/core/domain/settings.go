package domain

const unknownDescription = "Unknown"

// PrivacyMode controls how much document text is carried into chunks and
// prompts.
type PrivacyMode string

// Available privacy modes.
const (
	// PrivacyStandard uses the standard chunk window.
	PrivacyStandard PrivacyMode = "standard"

	// PrivacyFragment uses a narrower window so that only short
	// fragments of the source text travel to the model.
	PrivacyFragment PrivacyMode = "fragment"
)

// IsValid returns true if the privacy mode is recognised.
func (m PrivacyMode) IsValid() bool {
	switch m {
	case PrivacyStandard, PrivacyFragment:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m PrivacyMode) String() string {
	return string(m)
}

// ChunkConfig holds the window geometry for chunking. The two modes are
// alternate configurations of one code path, not separate chunkers.
type ChunkConfig struct {
	// WindowSize is the chunk length in characters.
	WindowSize int

	// Overlap is the number of characters shared between neighbouring
	// chunks.
	Overlap int
}

// Chunk window configurations per privacy mode.
var (
	// StandardChunkConfig is the default window.
	StandardChunkConfig = ChunkConfig{WindowSize: 1200, Overlap: 200}

	// FragmentChunkConfig is the narrower privacy window.
	FragmentChunkConfig = ChunkConfig{WindowSize: 500, Overlap: 80}
)

// ChunkConfigFor returns the chunk configuration for a privacy mode.
func ChunkConfigFor(mode PrivacyMode) ChunkConfig {
	if mode == PrivacyFragment {
		return FragmentChunkConfig
	}
	return StandardChunkConfig
}

// RankStrategy selects how evidence chunks are scored and ordered.
type RankStrategy string

// Available ranking strategies.
const (
	// RankWeightedLexical scores by token overlap weighted by document
	// weight and recency.
	RankWeightedLexical RankStrategy = "weighted_lexical"

	// RankDiversityLexical is weighted-lexical with round-robin source
	// coverage during selection.
	RankDiversityLexical RankStrategy = "diversity_lexical"

	// RankSemantic ranks by embedding similarity. Used opportunistically:
	// any failure falls back to the lexical result already computed.
	RankSemantic RankStrategy = "semantic"
)

// IsValid returns true if the ranking strategy is recognised.
func (s RankStrategy) IsValid() bool {
	switch s {
	case RankWeightedLexical, RankDiversityLexical, RankSemantic:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s RankStrategy) String() string {
	return string(s)
}

// Description returns a human-readable description of the strategy.
func (s RankStrategy) Description() string {
	switch s {
	case RankWeightedLexical:
		return "Weighted lexical (token overlap x document weight)"
	case RankDiversityLexical:
		return "Diversity lexical (round-robin source coverage)"
	case RankSemantic:
		return "Semantic (vector similarity with lexical fallback)"
	default:
		return unknownDescription
	}
}

// AIProvider identifies an AI service provider for completion or embeddings.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// CompletionSettings configures the generative model service.
type CompletionSettings struct {
	// Provider selects the completion adapter.
	Provider AIProvider

	// Model is the provider-specific model name.
	Model string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// APIKey authenticates cloud providers.
	APIKey string

	// MaxOutputTokens bounds generated length. Zero means the provider
	// default.
	MaxOutputTokens int

	// RequestsPerSecond throttles calls to the service. Zero disables
	// client-side throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true when a provider has been selected.
func (s *CompletionSettings) IsConfigured() bool {
	return s.Provider != ""
}

// EmbeddingSettings configures the optional embedding service.
type EmbeddingSettings struct {
	// Provider selects the embedding adapter.
	Provider AIProvider

	// Model is the provider-specific model name.
	Model string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// APIKey authenticates cloud providers.
	APIKey string
}

// IsConfigured returns true when a provider has been selected.
func (s *EmbeddingSettings) IsConfigured() bool {
	return s.Provider != ""
}

// GenerationSettings configures the generation core.
type GenerationSettings struct {
	// Privacy selects the chunk window configuration.
	Privacy PrivacyMode

	// Strategy is the evidence ranking strategy.
	Strategy RankStrategy

	// EvidenceLimit is the maximum number of chunks per request.
	EvidenceLimit int

	// MaxWorkers bounds batch concurrency. Zero means min(3, jobs).
	MaxWorkers int

	// Stream enables live partial-text display during generation.
	Stream bool

	// Redact enables the ingestion redaction filter.
	Redact bool
}

// Default generation settings values.
const (
	// DefaultEvidenceLimit is the default chunk count per request.
	DefaultEvidenceLimit = 8

	// DefaultMaxWorkers is the default batch worker budget.
	DefaultMaxWorkers = 3
)

// Normalise fills unset fields with defaults.
func (s *GenerationSettings) Normalise() {
	if !s.Privacy.IsValid() {
		s.Privacy = PrivacyStandard
	}
	if !s.Strategy.IsValid() {
		s.Strategy = RankDiversityLexical
	}
	if s.EvidenceLimit <= 0 {
		s.EvidenceLimit = DefaultEvidenceLimit
	}
	if s.MaxWorkers < 0 {
		s.MaxWorkers = 0
	}
}
