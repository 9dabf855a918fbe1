package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// questionsAll includes resolved questions in the listing.
var questionsAll bool

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Manage the open-question ledger",
	Long: `Generation raises clarifying questions when the evidence is silent on
something a section needs. Questions persist across runs: answer them,
reopen them, or remove them outright.`,
	RunE: runQuestionsList,
}

var questionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List questions",
	RunE:  runQuestionsList,
}

var questionsAnswerCmd = &cobra.Command{
	Use:   "answer [question-id] [answer...]",
	Short: "Attach an answer to a question",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runQuestionsAnswer,
}

var questionsClearCmd = &cobra.Command{
	Use:   "clear [question-id]",
	Short: "Remove an answer and reopen the question",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuestionsClear,
}

var questionsRemoveCmd = &cobra.Command{
	Use:   "remove [question-id]",
	Short: "Delete a question",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuestionsRemove,
}

func init() {
	questionsCmd.PersistentFlags().BoolVarP(&questionsAll, "all", "a", false, "include resolved questions")

	questionsCmd.AddCommand(questionsListCmd)
	questionsCmd.AddCommand(questionsAnswerCmd)
	questionsCmd.AddCommand(questionsClearCmd)
	questionsCmd.AddCommand(questionsRemoveCmd)
	rootCmd.AddCommand(questionsCmd)
}

func runQuestionsList(cmd *cobra.Command, _ []string) error {
	if questionLedger == nil {
		return errors.New("question ledger not configured")
	}

	questions, err := questionLedger.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	shown := 0
	for i := range questions {
		q := &questions[i]
		if q.Status == domain.StatusResolved && !questionsAll {
			continue
		}
		shown++

		cmd.Printf("  [%s] %s (%s)\n", q.Status, q.Text, q.SectionID)
		cmd.Printf("      ID: %s\n", q.ID)
		if q.Rationale != "" {
			cmd.Printf("      Why: %s\n", q.Rationale)
		}
		if q.Answer != "" {
			cmd.Printf("      Answer: %s\n", q.Answer)
		}
		cmd.Println()
	}

	if shown == 0 {
		cmd.Println("No open questions.")
	}
	return nil
}

func runQuestionsAnswer(cmd *cobra.Command, args []string) error {
	if questionLedger == nil {
		return errors.New("question ledger not configured")
	}

	questionID := args[0]
	answer := strings.Join(args[1:], " ")

	if err := questionLedger.Answer(cmd.Context(), questionID, answer); err != nil {
		return fmt.Errorf("answer question: %w", err)
	}

	cmd.Printf("Answered %s.\n", questionID)
	return nil
}

func runQuestionsClear(cmd *cobra.Command, args []string) error {
	if questionLedger == nil {
		return errors.New("question ledger not configured")
	}

	if err := questionLedger.ClearAnswer(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("clear answer: %w", err)
	}

	cmd.Printf("Reopened %s.\n", args[0])
	return nil
}

func runQuestionsRemove(cmd *cobra.Command, args []string) error {
	if questionLedger == nil {
		return errors.New("question ledger not configured")
	}

	if err := questionLedger.Remove(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("remove question: %w", err)
	}

	cmd.Printf("Removed %s.\n", args[0])
	return nil
}
