package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

func TestSelectSections(t *testing.T) {
	t.Run("empty selection is the whole brief", func(t *testing.T) {
		selected, err := selectSections(nil)
		require.NoError(t, err)
		assert.Len(t, selected, len(briefSections))
	})

	t.Run("resolves named sections", func(t *testing.T) {
		selected, err := selectSections([]string{"risk-assessment", "presenting-problem"})
		require.NoError(t, err)
		require.Len(t, selected, 2)
		assert.Equal(t, "risk-assessment", selected[0].spec.ID)
		assert.Equal(t, "presenting-problem", selected[1].spec.ID)
	})

	t.Run("unknown section fails", func(t *testing.T) {
		_, err := selectSections([]string{"billing"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "billing")
	})
}

func TestGenerateCmd_WithoutCompletionProvider(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	sectionGenerator = nil
	batchRunner = nil

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"generate"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCompletionUnavailable)
}

func TestGenerateCmd_GeneratesAllSections(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	seedDocument("doc-1", "note.txt", "Patient reports improved sleep on current dose.", domain.TagInitial)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"generate"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	for _, s := range briefSections {
		assert.Contains(t, buf.String(), s.spec.ID)
	}
	assert.Contains(t, buf.String(), "OK")

	// Accepted results reach the section store.
	results, err := sectionStore.ListResults(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, len(briefSections))
}

func TestGenerateCmd_SingleSection(t *testing.T) {
	generator, cleanup := setupTestServices()
	defer cleanup()
	seedDocument("doc-1", "note.txt", "Risk: denies suicidal ideation, safety plan in place.", domain.TagInitial)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"generate", "--section", "risk-assessment"})
	defer func() {
		rootCmd.SetArgs(nil)
		generateSections = nil
	}()

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, "risk-assessment", generator.lastSection.ID)
	assert.NotEmpty(t, generator.lastEvidence)

	results, err := sectionStore.ListResults(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestGenerateCmd_UnknownSectionFails(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"generate", "--section", "billing"})
	defer func() {
		rootCmd.SetArgs(nil)
		generateSections = nil
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown section")
}

func TestGenerateCmd_FailedSectionsAreReported(t *testing.T) {
	generator, cleanup := setupTestServices()
	defer cleanup()
	generator.err = errors.New("citation repair exhausted")
	seedDocument("doc-1", "note.txt", "Some evidence.", domain.TagInitial)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"generate", "--section", "formulation"})
	defer func() {
		rootCmd.SetArgs(nil)
		generateSections = nil
	}()

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 sections failed")
	assert.Contains(t, buf.String(), "FAILED")
	assert.Contains(t, buf.String(), "citation repair exhausted")

	// A failed section never reaches the store.
	results, listErr := sectionStore.ListResults(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, results)
}

func TestGenerateCmd_SyncsQuestions(t *testing.T) {
	generator, cleanup := setupTestServices()
	defer cleanup()
	generator.result = &domain.GenerationResult{
		Text: "History is unclear.\n\nOpen questions:\n- Any prior admissions?",
		Citations: []domain.Citation{
			{SourceID: "doc-1", SourceName: "note.txt", ChunkID: "doc-1#0"},
		},
	}
	seedDocument("doc-1", "note.txt", "Sparse history.", domain.TagInitial)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"generate", "--section", "psychiatric-history"})
	defer func() {
		rootCmd.SetArgs(nil)
		generateSections = nil
	}()

	err := rootCmd.Execute()
	require.NoError(t, err)

	questions, err := questionLedger.List(context.Background())
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "Any prior admissions?", questions[0].Text)
	assert.Equal(t, domain.StatusOpen, questions[0].Status)
}
