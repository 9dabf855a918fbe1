package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driving"
)

// RankInput is the input schema for the rank_evidence tool.
type RankInput struct {
	Query string `json:"query" jsonschema:"the clinical topic or question to find evidence for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of chunks to return (default 8)"`
}

// RankOutput is the output schema for the rank_evidence tool.
type RankOutput struct {
	Chunks []ChunkOutput `json:"chunks"`
	Count  int           `json:"count"`
}

// ChunkOutput represents a single ranked evidence chunk.
type ChunkOutput struct {
	ChunkID      string `json:"chunk_id"`
	SourceID     string `json:"source_id"`
	SourceName   string `json:"source_name"`
	DocumentType string `json:"document_type,omitempty"`
	EpisodeDate  string `json:"episode_date,omitempty"`
	Text         string `json:"text"`
}

// GenerateInput is the input schema for the generate_section tool.
type GenerateInput struct {
	SectionID string `json:"section_id" jsonschema:"identifier of the brief section to generate"`
	Title     string `json:"title" jsonschema:"the section heading"`
	Guidance  string `json:"guidance,omitempty" jsonschema:"section-specific drafting instructions"`
	Format    string `json:"format,omitempty" jsonschema:"formatting rules such as narrative or bullet list"`
	Query     string `json:"query,omitempty" jsonschema:"evidence ranking query (defaults to the title)"`
	Limit     int    `json:"limit,omitempty" jsonschema:"evidence chunk budget (default 8)"`
}

// GenerateOutput is the output schema for the generate_section tool.
type GenerateOutput struct {
	SectionID string           `json:"section_id"`
	Text      string           `json:"text"`
	Citations []CitationOutput `json:"citations"`
}

// CitationOutput represents a single resolved citation.
type CitationOutput struct {
	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`
	ChunkID    string `json:"chunk_id"`
	Excerpt    string `json:"excerpt,omitempty"`
}

// QuestionsInput is the input schema for the list_questions tool.
type QuestionsInput struct {
	SectionID string `json:"section_id,omitempty" jsonschema:"restrict to questions raised by one section"`
	Status    string `json:"status,omitempty" jsonschema:"restrict to one status: open, answered or resolved"`
}

// QuestionsOutput is the output schema for the list_questions tool.
type QuestionsOutput struct {
	Questions []QuestionOutput `json:"questions"`
	Count     int              `json:"count"`
}

// QuestionOutput represents a single ledger entry.
type QuestionOutput struct {
	ID        string `json:"id"`
	SectionID string `json:"section_id"`
	Text      string `json:"text"`
	Rationale string `json:"rationale,omitempty"`
	Answer    string `json:"answer,omitempty"`
	Status    string `json:"status"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "rank_evidence",
		Description: "Rank stored document chunks by relevance to a clinical query",
	}, s.handleRankEvidence)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "generate_section",
		Description: "Generate a citation-verified intake brief section from stored evidence",
	}, s.handleGenerateSection)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_questions",
		Description: "List open questions raised during brief generation",
	}, s.handleListQuestions)
}

// handleRankEvidence handles the rank_evidence tool invocation.
func (s *Server) handleRankEvidence(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RankInput,
) (*mcp.CallToolResult, RankOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = domain.DefaultEvidenceLimit
	}

	chunks, err := s.ports.Documents.ListChunks(ctx)
	if err != nil {
		return nil, RankOutput{}, fmt.Errorf("listing chunks: %w", err)
	}

	opts := driving.RankOptions{
		Strategy:            domain.RankDiversityLexical,
		SourceCoverageFirst: true,
	}
	ranked := s.ports.Ranker.Rank(ctx, input.Query, chunks, limit, opts)

	output := RankOutput{
		Chunks: make([]ChunkOutput, len(ranked)),
		Count:  len(ranked),
	}
	for i := range ranked {
		output.Chunks[i] = ChunkOutput{
			ChunkID:      ranked[i].ID,
			SourceID:     ranked[i].SourceID,
			SourceName:   ranked[i].SourceName,
			DocumentType: ranked[i].DocumentType.String(),
			EpisodeDate:  ranked[i].EpisodeDate,
			Text:         ranked[i].Text,
		}
	}

	return nil, output, nil
}

// handleGenerateSection handles the generate_section tool invocation.
func (s *Server) handleGenerateSection(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateInput,
) (*mcp.CallToolResult, GenerateOutput, error) {
	if s.ports.Generator == nil {
		return nil, GenerateOutput{}, fmt.Errorf(
			"%w: run 'intakebrief settings' to configure a provider",
			domain.ErrCompletionUnavailable)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = domain.DefaultEvidenceLimit
	}

	query := input.Query
	if query == "" {
		query = input.Title
	}

	chunks, err := s.ports.Documents.ListChunks(ctx)
	if err != nil {
		return nil, GenerateOutput{}, fmt.Errorf("listing chunks: %w", err)
	}

	// Rank the full pool once; the evidence block is its head and the
	// remainder feeds the widened-evidence repair step.
	opts := driving.RankOptions{
		Strategy:                domain.RankDiversityLexical,
		IncludeUnmatchedSources: true,
		SourceCoverageFirst:     true,
	}
	pool := s.ports.Ranker.Rank(ctx, query, chunks, len(chunks), opts)

	evidence := pool
	if len(evidence) > limit {
		evidence = evidence[:limit]
	}

	section := domain.SectionSpec{
		ID:       input.SectionID,
		Title:    input.Title,
		Guidance: input.Guidance,
		Format:   input.Format,
	}

	result, err := s.ports.Generator.Generate(ctx, section, evidence, driving.GenerateOptions{
		EvidenceLimit: limit,
		EvidencePool:  pool,
	})
	if err != nil {
		return nil, GenerateOutput{}, err
	}

	if s.ports.Sections != nil {
		if err := s.ports.Sections.SaveResult(ctx, section.ID, result); err != nil {
			return nil, GenerateOutput{}, fmt.Errorf("saving section: %w", err)
		}
	}
	if s.ports.Questions != nil {
		if _, err := s.ports.Questions.Sync(ctx, section.ID, result.Text); err != nil {
			return nil, GenerateOutput{}, fmt.Errorf("syncing questions: %w", err)
		}
	}

	output := GenerateOutput{
		SectionID: section.ID,
		Text:      result.Text,
		Citations: make([]CitationOutput, len(result.Citations)),
	}
	for i := range result.Citations {
		output.Citations[i] = CitationOutput{
			SourceID:   result.Citations[i].SourceID,
			SourceName: result.Citations[i].SourceName,
			ChunkID:    result.Citations[i].ChunkID,
			Excerpt:    result.Citations[i].Excerpt,
		}
	}

	return nil, output, nil
}

// handleListQuestions handles the list_questions tool invocation.
func (s *Server) handleListQuestions(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QuestionsInput,
) (*mcp.CallToolResult, QuestionsOutput, error) {
	output := QuestionsOutput{Questions: []QuestionOutput{}}
	if s.ports.Questions == nil {
		return nil, output, nil
	}

	questions, err := s.ports.Questions.List(ctx)
	if err != nil {
		return nil, QuestionsOutput{}, fmt.Errorf("listing questions: %w", err)
	}

	for i := range questions {
		q := &questions[i]
		if input.SectionID != "" && q.SectionID != input.SectionID {
			continue
		}
		if input.Status != "" && q.Status != domain.QuestionStatus(input.Status) {
			continue
		}
		output.Questions = append(output.Questions, QuestionOutput{
			ID:        q.ID,
			SectionID: q.SectionID,
			Text:      q.Text,
			Rationale: q.Rationale,
			Answer:    q.Answer,
			Status:    q.Status.String(),
		})
	}
	output.Count = len(output.Questions)

	return nil, output, nil
}
