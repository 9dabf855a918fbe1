package cli

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
)

var (
	generateSections []string
	generateStream   bool
	generateWorkers  int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the intake brief from stored evidence",
	Long: `Generates every section of the intake brief against the evidence index.
Each section is drafted, validated and accepted only when all of its claims
cite stored chunks. Sections whose citations cannot be repaired are
reported as failed without blocking the rest.

Use --section to regenerate specific sections, and --stream to watch the
draft as it is produced (single section only).`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringSliceVarP(&generateSections, "section", "s", nil, "section ids to generate (default: all)")
	generateCmd.Flags().BoolVar(&generateStream, "stream", false, "stream partial text while generating")
	generateCmd.Flags().IntVar(&generateWorkers, "workers", 0, "concurrent generation workers (0 = default)")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	if sectionGenerator == nil || batchRunner == nil {
		return fmt.Errorf("%w: run 'intakebrief settings completion' first",
			domain.ErrCompletionUnavailable)
	}

	selected, err := selectSections(generateSections)
	if err != nil {
		return err
	}

	if generateStream || generationSettings.Stream {
		if len(selected) == 1 {
			return streamSection(cmd, selected[0], nil)
		}
		cmd.PrintErrln("Streaming needs a single --section; running as a batch.")
	}

	jobs := make([]domain.GenerationJob, len(selected))
	for i, s := range selected {
		jobs[i] = domain.GenerationJob{
			TargetID: s.spec.ID,
			Section:  s.spec,
			Query:    s.query,
		}
	}

	report := batchRunner.RunAll(cmd.Context(), jobs, generateWorkers)
	printReport(cmd, report)
	if report.Failed() > 0 {
		return fmt.Errorf("%d of %d sections failed", report.Failed(), len(report.Outcomes))
	}
	return nil
}

// selectSections resolves section ids against the standard outline; an
// empty selection means the whole brief.
func selectSections(ids []string) ([]briefSection, error) {
	if len(ids) == 0 {
		return briefSections, nil
	}

	selected := make([]briefSection, 0, len(ids))
	for _, id := range ids {
		s, ok := sectionByID(id)
		if !ok {
			return nil, fmt.Errorf("unknown section %q", id)
		}
		selected = append(selected, s)
	}
	return selected, nil
}

// streamSection generates one section outside the batch runner so partial
// text can be shown live. prioritySources is non-nil on the revise path.
func streamSection(cmd *cobra.Command, section briefSection, prioritySources []string) error {
	if docStore == nil {
		return errors.New("document store not configured")
	}

	index, err := docStore.ListChunks(cmd.Context())
	if err != nil {
		return fmt.Errorf("load evidence index: %w", err)
	}

	opts := driving.RankOptions{
		Strategy:                generationSettings.Strategy,
		IncludeUnmatchedSources: true,
		PrioritySourceIDs:       prioritySources,
	}
	evidence := evidenceRanker.Rank(cmd.Context(), section.query, index, generationSettings.EvidenceLimit, opts)
	pool := evidenceRanker.Rank(cmd.Context(), section.query, index, len(index), opts)

	// Partials are full snapshots; print only what each one appends.
	partials := make(chan string, 16)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printed := 0
		for snapshot := range partials {
			if len(snapshot) > printed {
				cmd.Print(snapshot[printed:])
				printed = len(snapshot)
			}
		}
	}()

	cmd.Printf("## %s\n\n", section.spec.Title)
	result, err := sectionGenerator.Generate(cmd.Context(), section.spec, evidence, driving.GenerateOptions{
		Partials:      partials,
		EvidenceLimit: generationSettings.EvidenceLimit,
		EvidencePool:  pool,
	})
	close(partials)
	wg.Wait()
	if err != nil {
		return err
	}

	cmd.Printf("\n\nCitations: %d\n", len(result.Citations))
	if sectionStore != nil {
		if err := sectionStore.SaveResult(cmd.Context(), section.spec.ID, result); err != nil {
			return fmt.Errorf("save section: %w", err)
		}
	}
	if questionLedger != nil {
		if _, err := questionLedger.Sync(cmd.Context(), section.spec.ID, result.Text); err != nil {
			return fmt.Errorf("sync questions: %w", err)
		}
	}
	return nil
}

// printReport renders a batch report and syncs the question ledger for
// every accepted section.
func printReport(cmd *cobra.Command, report *domain.BatchReport) {
	cmd.Println()
	for _, outcome := range report.Outcomes {
		if outcome.Err != nil {
			cmd.Printf("  FAILED %-20s %v\n", outcome.TargetID, outcome.Err)
			continue
		}
		cmd.Printf("  OK     %-20s %d citations\n", outcome.TargetID, len(outcome.Result.Citations))
		if questionLedger != nil {
			if _, err := questionLedger.Sync(cmd.Context(), outcome.TargetID, outcome.Result.Text); err != nil {
				cmd.PrintErrf("  warning: question sync for %s: %v\n", outcome.TargetID, err)
			}
		}
	}

	if len(report.UncitedSources) > 0 {
		cmd.Println("\nDocuments never cited in this run:")
		for _, id := range report.UncitedSources {
			cmd.Printf("  %s\n", id)
		}
	}
	if report.Usage.PromptTokens > 0 || report.Usage.CompletionTokens > 0 {
		cmd.Printf("\nTokens: %d prompt, %d completion\n",
			report.Usage.PromptTokens, report.Usage.CompletionTokens)
	}
}
