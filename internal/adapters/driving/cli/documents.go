package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/services"
)

var (
	correctType string
	correctDate string
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage ingested documents",
	Long:  `List ingested documents, correct their classification, or remove them.`,
	RunE:  runDocumentsList,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingested documents",
	RunE:  runDocumentsList,
}

var documentsRemoveCmd = &cobra.Command{
	Use:   "remove [doc-id]",
	Short: "Remove a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsRemove,
}

var documentsCorrectCmd = &cobra.Command{
	Use:   "correct [doc-id]",
	Short: "Correct a document's classification or episode date",
	Long: `Replaces the classified document type and/or episode date. Chronological
order is reindexed afterwards. Fields not given are left unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentsCorrect,
}

var documentsEpisodesCmd = &cobra.Command{
	Use:   "episodes",
	Short: "Show documents grouped into care episodes",
	Long: `Groups dated documents into episodes: documents whose episode dates fall
within 30 days of each other belong to the same episode. The grouping is
informational only; it does not influence evidence ranking.`,
	RunE: runDocumentsEpisodes,
}

func init() {
	documentsCorrectCmd.Flags().StringVar(&correctType, "type", "", "document type (discharge-summary, psych-eval, progress-note, biopsychosocial, intake, other)")
	documentsCorrectCmd.Flags().StringVar(&correctDate, "date", "", "episode date (YYYY-MM-DD)")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsRemoveCmd)
	documentsCmd.AddCommand(documentsCorrectCmd)
	documentsCmd.AddCommand(documentsEpisodesCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	docs, err := ingestService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents ingested yet.")
		return nil
	}

	for i := range docs {
		doc := &docs[i]
		cmd.Printf("  %s\n", doc.ID)
		cmd.Printf("    Name: %s\n", doc.Name)
		cmd.Printf("    Type: %s (weight %.1f)\n", doc.DocumentType, doc.Weight)
		if doc.EpisodeDate != "" {
			cmd.Printf("    Date: %s (order %d)\n", doc.EpisodeDate, doc.ChronologicalOrder)
		}
		if doc.Tag == domain.TagFollowup {
			cmd.Printf("    Tag:  followup\n")
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentsRemove(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if err := ingestService.Remove(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("remove document: %w", err)
	}

	cmd.Printf("Removed %s.\n", args[0])
	return nil
}

func runDocumentsCorrect(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	if correctType == "" && correctDate == "" {
		return fmt.Errorf("nothing to correct, pass --type and/or --date: %w", domain.ErrInvalidInput)
	}

	docType := domain.DocumentType(correctType)
	if correctType != "" && !docType.IsValid() {
		return fmt.Errorf("unknown document type %q: %w", correctType, domain.ErrInvalidInput)
	}

	if err := ingestService.Correct(cmd.Context(), args[0], docType, correctDate); err != nil {
		return fmt.Errorf("correct document: %w", err)
	}

	cmd.Printf("Corrected %s.\n", args[0])
	return nil
}

func runDocumentsEpisodes(cmd *cobra.Command, _ []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	docs, err := ingestService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	episodes := services.AssignEpisodes(docs)
	if len(episodes) == 0 {
		cmd.Println("No dated documents to group.")
		return nil
	}

	names := make(map[string]string, len(docs))
	for i := range docs {
		names[docs[i].ID] = docs[i].Name
	}

	for _, ep := range episodes {
		if ep.Start == ep.End {
			cmd.Printf("  Episode %s (%s)\n", ep.ID, ep.Start)
		} else {
			cmd.Printf("  Episode %s (%s to %s)\n", ep.ID, ep.Start, ep.End)
		}
		for _, id := range ep.DocumentIDs {
			cmd.Printf("    %s  %s\n", id, names[id])
		}
		cmd.Println()
	}
	return nil
}
