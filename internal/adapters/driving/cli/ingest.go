package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
)

// ingestFollowup marks the uploads as followup documents.
var ingestFollowup bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Ingest documents into the evidence index",
	Long: `Extracts text from the given files, classifies each document, chunks the
text and stores it as citable evidence.

Supported formats: plain text (.txt, .md), Word (.docx) and PDF files whose
text was extracted upstream. Documents added after the first generation run
should carry --followup so revisions prioritise them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestFollowup, "followup", false, "tag documents as followup updates")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	tag := domain.TagInitial
	if ingestFollowup {
		tag = domain.TagFollowup
	}

	var failed int
	for _, path := range args {
		if err := ingestOne(cmd, path, tag); err != nil {
			failed++
			cmd.PrintErrf("  %s: %v\n", filepath.Base(path), err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func ingestOne(cmd *cobra.Command, path string, tag domain.DocumentTag) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	name := filepath.Base(path)
	result, err := ingestService.Ingest(cmd.Context(), driving.Upload{
		Name:   name,
		Kind:   kindForFile(name),
		Reader: f,
		Tag:    tag,
	})
	if err != nil {
		return err
	}

	doc := result.Document
	cmd.Printf("Ingested %s\n", doc.Name)
	cmd.Printf("  ID:     %s\n", doc.ID)
	cmd.Printf("  Type:   %s (weight %.1f)\n", doc.DocumentType, doc.Weight)
	if doc.EpisodeDate != "" {
		cmd.Printf("  Date:   %s\n", doc.EpisodeDate)
	}
	cmd.Printf("  Chunks: %d\n", result.ChunkCount)
	for _, w := range result.Warnings {
		cmd.Printf("  Warning: %s\n", w)
	}
	return nil
}

// kindForFile maps a file extension to a document kind.
func kindForFile(name string) domain.DocumentKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".text":
		return domain.KindText
	case ".docx":
		return domain.KindWord
	case ".pdf":
		return domain.KindPDF
	default:
		return domain.KindUnknown
	}
}
