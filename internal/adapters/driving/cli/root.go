// Package cli provides the cobra command-line interface for intakebrief.
// Commands are wired against the driving ports; the concrete services are
// assembled once per invocation in initServices.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/editnori/psych-intake-brief-sub001/internal/adapters/driven/ai"
	"github.com/editnori/psych-intake-brief-sub001/internal/adapters/driven/config/file"
	"github.com/editnori/psych-intake-brief-sub001/internal/adapters/driven/storage/sqlite"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/services"
	"github.com/editnori/psych-intake-brief-sub001/internal/extractors"
	"github.com/editnori/psych-intake-brief-sub001/internal/logger"
	"github.com/editnori/psych-intake-brief-sub001/internal/postprocessors"
)

// version is set at build time via -ldflags.
var version = "dev"

// verbose toggles debug logging for the whole invocation.
var verbose bool

// Services and stores the commands run against. Tests substitute these
// directly; initServices fills them for real invocations.
var (
	configStore       driven.ConfigStore
	promptStore       *file.PromptStore
	store             *sqlite.Store
	docStore          driven.DocumentStore
	sectionStore      driven.SectionStore
	completionService driven.CompletionService
	embeddingService  driven.EmbeddingService

	ingestService    driving.IngestService
	evidenceRanker   driving.EvidenceRanker
	sectionGenerator driving.SectionGenerator
	batchRunner      driving.BatchRunner
	questionLedger   driving.QuestionLedger
	editReconciler   driving.EditReconciler

	generationSettings domain.GenerationSettings

	// wired is true once the service vars are populated. Tests set it to
	// bypass initServices.
	wired bool
)

var rootCmd = &cobra.Command{
	Use:   "intakebrief",
	Short: "Evidence-grounded clinical intake brief drafting",
	Long: `intakebrief turns a folder of clinical documents into a citation-backed
intake brief. Documents are chunked into an evidence index; each brief
section is generated against ranked evidence and accepted only when every
claim resolves to a stored chunk.`,
	SilenceUsage:      true,
	PersistentPreRunE: initServices,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command. It is the single entry point called from
// main.
func Execute() error {
	defer closeServices()
	return rootCmd.Execute()
}

// initServices assembles the adapter stack and the core services. It runs
// once per invocation; commands that need no services (version, help) skip
// the filesystem entirely.
func initServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if wired || cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	var err error
	configStore, err = file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	configDir := filepath.Dir(configStore.Path())

	promptStore, err = file.NewPromptStore(filepath.Join(configDir, "prompts"))
	if err != nil {
		return fmt.Errorf("open prompt store: %w", err)
	}

	store, err = sqlite.NewStore(filepath.Join(configDir, "data"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	docStore = store.DocumentStore()
	sectionStore = store.SectionStore()

	completionSettings := loadCompletionSettings()
	embeddingSettings := loadEmbeddingSettings()
	generationSettings = loadGenerationSettings()

	completionService, err = ai.CreateCompletionService(&completionSettings)
	if err != nil {
		return fmt.Errorf("completion service: %w", err)
	}
	embeddingService, err = ai.CreateEmbeddingService(&embeddingSettings)
	if err != nil {
		return fmt.Errorf("embedding service: %w", err)
	}

	// Vectors persist with the chunks, so embeddings written during
	// ingest serve semantic ranking in later invocations.
	vectorIndex := store.VectorIndex()

	pipeline, err := buildIngestPipeline(generationSettings)
	if err != nil {
		return fmt.Errorf("ingest pipeline: %w", err)
	}

	ingestService = services.NewIngestService(
		extractors.NewDefaultRegistry(),
		pipeline,
		docStore,
		embeddingService,
		vectorIndex,
	)
	evidenceRanker = services.NewEvidenceRanker(embeddingService, vectorIndex)

	if completionService != nil {
		var opts []services.GeneratorOption
		if completionSettings.RequestsPerSecond > 0 {
			opts = append(opts, services.WithRateLimit(completionSettings.RequestsPerSecond, 1))
		}
		if completionSettings.MaxOutputTokens > 0 {
			opts = append(opts, services.WithMaxOutputTokens(completionSettings.MaxOutputTokens))
		}
		generator := services.NewSectionGenerator(completionService, opts...)
		generator.SetPromptStore(promptStore)
		sectionGenerator = generator
		batchRunner = services.NewBatchService(
			evidenceRanker, sectionGenerator, docStore, sectionStore, generationSettings)
	}

	questionLedger = services.NewQuestionLedger(store.QuestionStore())
	editReconciler = services.NewEditReconciler()

	wired = true
	return nil
}

// buildIngestPipeline assembles the ingestion post-processors from the
// registry. Redaction rewrites text before chunking; the chunk window
// follows the privacy mode.
func buildIngestPipeline(settings domain.GenerationSettings) (*postprocessors.Pipeline, error) {
	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)

	pipeline := postprocessors.NewPipeline()
	if settings.Redact {
		p, err := registry.Build("redactor", nil)
		if err != nil {
			return nil, err
		}
		pipeline.Add(p)
	}

	cfg := domain.ChunkConfigFor(settings.Privacy)
	p, err := registry.Build("chunker", map[string]any{
		"window_size": cfg.WindowSize,
		"overlap":     cfg.Overlap,
	})
	if err != nil {
		return nil, err
	}
	pipeline.Add(p)

	return pipeline, nil
}

// closeServices releases everything initServices opened. Safe to call
// when nothing was wired.
func closeServices() {
	if completionService != nil {
		completionService.Close()
	}
	if embeddingService != nil {
		embeddingService.Close()
	}
	if promptStore != nil {
		promptStore.Close() //nolint:errcheck
	}
	if store != nil {
		store.Close() //nolint:errcheck
	}
}

// loadCompletionSettings reads the completion provider block from config.
func loadCompletionSettings() domain.CompletionSettings {
	return domain.CompletionSettings{
		Provider:          domain.AIProvider(configStore.GetString("completion.provider")),
		Model:             configStore.GetString("completion.model"),
		BaseURL:           configStore.GetString("completion.base_url"),
		APIKey:            configStore.GetString("completion.api_key"),
		MaxOutputTokens:   configStore.GetInt("completion.max_output_tokens"),
		RequestsPerSecond: configStore.GetFloat("completion.requests_per_second"),
	}
}

// loadEmbeddingSettings reads the embedding provider block from config.
func loadEmbeddingSettings() domain.EmbeddingSettings {
	return domain.EmbeddingSettings{
		Provider: domain.AIProvider(configStore.GetString("embedding.provider")),
		Model:    configStore.GetString("embedding.model"),
		BaseURL:  configStore.GetString("embedding.base_url"),
		APIKey:   configStore.GetString("embedding.api_key"),
	}
}

// loadGenerationSettings reads the generation block from config and fills
// defaults.
func loadGenerationSettings() domain.GenerationSettings {
	settings := domain.GenerationSettings{
		Privacy:       domain.PrivacyMode(configStore.GetString("generation.privacy")),
		Strategy:      domain.RankStrategy(configStore.GetString("generation.strategy")),
		EvidenceLimit: configStore.GetInt("generation.evidence_limit"),
		MaxWorkers:    configStore.GetInt("generation.max_workers"),
		Stream:        configStore.GetBool("generation.stream"),
		Redact:        true,
	}
	if _, ok := configStore.Get("generation.redact"); ok {
		settings.Redact = configStore.GetBool("generation.redact")
	}
	settings.Normalise()
	return settings
}
