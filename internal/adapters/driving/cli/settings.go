package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/editnori/psych-intake-brief-sub001/internal/adapters/driven/ai"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

var (
	setProvider  string
	setModel     string
	setBaseURL   string
	setAPIKey    string
	setMaxTokens int
	setRPS       float64

	setPrivacy       string
	setStrategy      string
	setEvidenceLimit int
	setMaxWorkers    int
	setStream        bool
	setRedact        bool
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the completion provider, the optional embedding
provider and the generation defaults. Settings persist in
~/.intakebrief/config.toml.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsCompletionCmd = &cobra.Command{
	Use:   "completion",
	Short: "Configure the completion provider",
	Long: `Configure the generative model used for section drafting.

Providers: ollama (local, no key), openai, anthropic. The configuration is
validated against the live service before it is saved.`,
	RunE: runSettingsCompletion,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure the embedding provider",
	Long: `Configure the optional embedding provider for semantic evidence ranking.
Without one, ranking falls back to weighted lexical scoring.

Providers: ollama (local, no key), openai.`,
	RunE: runSettingsEmbedding,
}

var settingsGenerationCmd = &cobra.Command{
	Use:   "generation",
	Short: "Configure generation defaults",
	RunE:  runSettingsGeneration,
}

func init() {
	for _, cmd := range []*cobra.Command{settingsCompletionCmd, settingsEmbeddingCmd} {
		cmd.Flags().StringVar(&setProvider, "provider", "", "provider name (ollama, openai, anthropic)")
		cmd.Flags().StringVar(&setModel, "model", "", "model name")
		cmd.Flags().StringVar(&setBaseURL, "base-url", "", "endpoint override")
		cmd.Flags().StringVar(&setAPIKey, "api-key", "", "API key for cloud providers")
	}
	settingsCompletionCmd.Flags().IntVar(&setMaxTokens, "max-tokens", 0, "output token cap (0 = provider default)")
	settingsCompletionCmd.Flags().Float64Var(&setRPS, "rps", 0, "requests per second throttle (0 = off)")

	settingsGenerationCmd.Flags().StringVar(&setPrivacy, "privacy", "", "chunk privacy mode (standard, fragment)")
	settingsGenerationCmd.Flags().StringVar(&setStrategy, "strategy", "", "ranking strategy (weighted_lexical, diversity_lexical, semantic)")
	settingsGenerationCmd.Flags().IntVar(&setEvidenceLimit, "evidence-limit", 0, "chunks per generation request")
	settingsGenerationCmd.Flags().IntVar(&setMaxWorkers, "max-workers", 0, "concurrent batch workers")
	settingsGenerationCmd.Flags().BoolVar(&setStream, "stream", false, "stream partial text by default")
	settingsGenerationCmd.Flags().BoolVar(&setRedact, "redact", true, "redact identifiers at ingestion")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsCompletionCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsGenerationCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	completion := loadCompletionSettings()
	embedding := loadEmbeddingSettings()
	generation := loadGenerationSettings()

	cmd.Println("[Completion]")
	printProvider(cmd, string(completion.Provider), completion.Model, completion.BaseURL, completion.APIKey)
	if completion.MaxOutputTokens > 0 {
		cmd.Printf("  Max tokens: %d\n", completion.MaxOutputTokens)
	}
	if completion.RequestsPerSecond > 0 {
		cmd.Printf("  Throttle: %.1f req/s\n", completion.RequestsPerSecond)
	}
	cmd.Println()

	cmd.Println("[Embedding]")
	printProvider(cmd, string(embedding.Provider), embedding.Model, embedding.BaseURL, embedding.APIKey)
	cmd.Println()

	cmd.Println("[Generation]")
	cmd.Printf("  Privacy: %s\n", generation.Privacy)
	cmd.Printf("  Strategy: %s\n", generation.Strategy.Description())
	cmd.Printf("  Evidence limit: %d\n", generation.EvidenceLimit)
	workers := generation.MaxWorkers
	if workers == 0 {
		workers = domain.DefaultMaxWorkers
	}
	cmd.Printf("  Max workers: %d\n", workers)
	cmd.Printf("  Stream: %t\n", generation.Stream)
	cmd.Printf("  Redact: %t\n", generation.Redact)
	cmd.Println()

	cmd.Printf("Config: %s\n", configStore.Path())
	return nil
}

func printProvider(cmd *cobra.Command, provider, model, baseURL, apiKey string) {
	if provider == "" {
		cmd.Println("  Provider: (not configured)")
		return
	}
	cmd.Printf("  Provider: %s\n", provider)
	if model != "" {
		cmd.Printf("  Model: %s\n", model)
	}
	if baseURL != "" {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if domain.AIProvider(provider).RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
}

func runSettingsCompletion(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	if setProvider == "" {
		return fmt.Errorf("--provider is required: %w", domain.ErrInvalidInput)
	}

	settings := loadCompletionSettings()
	settings.Provider = domain.AIProvider(setProvider)
	if !settings.Provider.IsValid() {
		return fmt.Errorf("unknown provider %q: %w", setProvider, domain.ErrInvalidInput)
	}
	applyProviderFlags(cmd, &settings.Model, &settings.BaseURL, &settings.APIKey)
	if cmd.Flags().Changed("max-tokens") {
		settings.MaxOutputTokens = setMaxTokens
	}
	if cmd.Flags().Changed("rps") {
		settings.RequestsPerSecond = setRPS
	}

	cmd.Printf("Validating %s...\n", settings.Provider)
	if err := ai.ValidateCompletionConfig(&settings); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := saveAll(map[string]any{
		"completion.provider":            string(settings.Provider),
		"completion.model":               settings.Model,
		"completion.base_url":            settings.BaseURL,
		"completion.api_key":             settings.APIKey,
		"completion.max_output_tokens":   settings.MaxOutputTokens,
		"completion.requests_per_second": settings.RequestsPerSecond,
	}); err != nil {
		return err
	}

	cmd.Println("Completion provider saved.")
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	if setProvider == "" {
		return fmt.Errorf("--provider is required: %w", domain.ErrInvalidInput)
	}

	settings := loadEmbeddingSettings()
	settings.Provider = domain.AIProvider(setProvider)
	if !settings.Provider.IsValid() {
		return fmt.Errorf("unknown provider %q: %w", setProvider, domain.ErrInvalidInput)
	}
	applyProviderFlags(cmd, &settings.Model, &settings.BaseURL, &settings.APIKey)

	cmd.Printf("Validating %s...\n", settings.Provider)
	if err := ai.ValidateEmbeddingConfig(&settings); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := saveAll(map[string]any{
		"embedding.provider": string(settings.Provider),
		"embedding.model":    settings.Model,
		"embedding.base_url": settings.BaseURL,
		"embedding.api_key":  settings.APIKey,
	}); err != nil {
		return err
	}

	cmd.Println("Embedding provider saved.")
	return nil
}

func runSettingsGeneration(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	updates := make(map[string]any)
	if setPrivacy != "" {
		if !domain.PrivacyMode(setPrivacy).IsValid() {
			return fmt.Errorf("unknown privacy mode %q: %w", setPrivacy, domain.ErrInvalidInput)
		}
		updates["generation.privacy"] = setPrivacy
	}
	if setStrategy != "" {
		if !domain.RankStrategy(setStrategy).IsValid() {
			return fmt.Errorf("unknown strategy %q: %w", setStrategy, domain.ErrInvalidInput)
		}
		updates["generation.strategy"] = setStrategy
	}
	if setEvidenceLimit > 0 {
		updates["generation.evidence_limit"] = setEvidenceLimit
	}
	if setMaxWorkers > 0 {
		updates["generation.max_workers"] = setMaxWorkers
	}
	if cmd.Flags().Changed("stream") {
		updates["generation.stream"] = setStream
	}
	if cmd.Flags().Changed("redact") {
		updates["generation.redact"] = setRedact
	}

	if len(updates) == 0 {
		return fmt.Errorf("no settings given: %w", domain.ErrInvalidInput)
	}
	if err := saveAll(updates); err != nil {
		return err
	}

	cmd.Println("Generation settings saved.")
	return nil
}

// applyProviderFlags copies the shared provider flags that were set on the
// command line, leaving unset fields at their stored values.
func applyProviderFlags(cmd *cobra.Command, model, baseURL, apiKey *string) {
	if cmd.Flags().Changed("model") {
		*model = setModel
	}
	if cmd.Flags().Changed("base-url") {
		*baseURL = setBaseURL
	}
	if cmd.Flags().Changed("api-key") {
		*apiKey = setAPIKey
	}
}

func saveAll(updates map[string]any) error {
	for key, value := range updates {
		if err := configStore.Set(key, value); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	return nil
}

// maskAPIKey hides all but the edges of a key for display.
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
