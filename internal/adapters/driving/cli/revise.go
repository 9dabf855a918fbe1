package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
)

var (
	editFind    string
	editReplace string
	editOnMiss  string
)

var reviseCmd = &cobra.Command{
	Use:   "revise [section-ids...]",
	Short: "Regenerate sections against followup documents",
	Long: `Re-runs generation with priority given to documents ingested with
--followup, so new information is worked into the existing brief. Without
arguments every section that has accepted text is revised.`,
	RunE: runRevise,
}

var reviseEditCmd = &cobra.Command{
	Use:   "edit [section-id]",
	Short: "Apply a targeted edit to accepted section text",
	Long: `Replaces one excerpt of a section's accepted text. The excerpt is located
with progressively looser matching; --on-miss decides what happens when no
match is found (append, replace_all or reject).`,
	Args: cobra.ExactArgs(1),
	RunE: runReviseEdit,
}

func init() {
	reviseEditCmd.Flags().StringVar(&editFind, "find", "", "excerpt to locate in the section text")
	reviseEditCmd.Flags().StringVar(&editReplace, "replace", "", "replacement text")
	reviseEditCmd.Flags().StringVar(&editOnMiss, "on-miss", string(driving.MissReject),
		"what to do when the excerpt is not found: append, replace_all or reject")
	reviseEditCmd.MarkFlagRequired("replace") //nolint:errcheck

	reviseCmd.AddCommand(reviseEditCmd)
	rootCmd.AddCommand(reviseCmd)
}

func runRevise(cmd *cobra.Command, args []string) error {
	if sectionGenerator == nil || batchRunner == nil {
		return fmt.Errorf("%w: run 'intakebrief settings completion' first",
			domain.ErrCompletionUnavailable)
	}
	if sectionStore == nil {
		return errors.New("section store not configured")
	}

	prior, err := sectionStore.ListResults(cmd.Context())
	if err != nil {
		return fmt.Errorf("load accepted sections: %w", err)
	}

	var selected []briefSection
	if len(args) > 0 {
		selected, err = selectSections(args)
		if err != nil {
			return err
		}
	} else {
		for _, s := range briefSections {
			if _, ok := prior[s.spec.ID]; ok {
				selected = append(selected, s)
			}
		}
		if len(selected) == 0 {
			cmd.Println("Nothing to revise: no sections have accepted text yet.")
			return nil
		}
	}

	followups, err := followupSourceIDs(cmd)
	if err != nil {
		return err
	}
	if len(followups) == 0 {
		cmd.Println("Note: no followup documents found; revising against the full index.")
	}

	jobs := make([]domain.GenerationJob, len(selected))
	for i, s := range selected {
		jobs[i] = domain.GenerationJob{
			TargetID:          s.spec.ID,
			Section:           revisionSpec(s.spec, prior[s.spec.ID]),
			Query:             s.query,
			PrioritySourceIDs: followups,
		}
	}

	report := batchRunner.RunAll(cmd.Context(), jobs, generateWorkers)
	printReport(cmd, report)
	if report.Failed() > 0 {
		return fmt.Errorf("%d of %d sections failed", report.Failed(), len(report.Outcomes))
	}
	return nil
}

// followupSourceIDs lists the documents tagged as followup updates.
func followupSourceIDs(cmd *cobra.Command) ([]string, error) {
	if ingestService == nil {
		return nil, errors.New("ingest service not configured")
	}

	docs, err := ingestService.List(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var ids []string
	for _, doc := range docs {
		if doc.Tag == domain.TagFollowup {
			ids = append(ids, doc.ID)
		}
	}
	return ids, nil
}

// revisionSpec frames a re-generation against the section's prior text
// using the revision prompt. Sections with no accepted text keep their
// original guidance.
func revisionSpec(spec domain.SectionSpec, prior *domain.GenerationResult) domain.SectionSpec {
	if prior == nil || prior.Text == "" || promptStore == nil {
		return spec
	}

	template, err := promptStore.Load(driven.PromptRevision)
	if err != nil {
		return spec
	}

	spec.Guidance = fmt.Sprintf(template, prior.Text, spec.Guidance)
	return spec
}

func runReviseEdit(cmd *cobra.Command, args []string) error {
	if editReconciler == nil {
		return errors.New("edit reconciler not configured")
	}
	if sectionStore == nil {
		return errors.New("section store not configured")
	}

	policy := driving.MissPolicy(editOnMiss)
	if !policy.IsValid() {
		return fmt.Errorf("invalid --on-miss value %q: %w", editOnMiss, domain.ErrInvalidInput)
	}

	sectionID := args[0]
	result, err := sectionStore.GetResult(cmd.Context(), sectionID)
	if err != nil {
		return fmt.Errorf("load section %s: %w", sectionID, err)
	}

	merged, err := editReconciler.Reconcile(result.Text, editFind, editReplace, policy)
	if err != nil {
		if errors.Is(err, domain.ErrNoMatch) {
			return fmt.Errorf("excerpt not found in %s (use --on-miss append or replace_all): %w",
				sectionID, err)
		}
		return err
	}

	// Citations are kept: they reference evidence chunks, not spans of
	// the section text.
	result.Text = merged
	if err := sectionStore.SaveResult(cmd.Context(), sectionID, result); err != nil {
		return fmt.Errorf("save section: %w", err)
	}

	cmd.Printf("Updated %s.\n", sectionID)
	return nil
}
