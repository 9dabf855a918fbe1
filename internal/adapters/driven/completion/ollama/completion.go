// Package ollama provides a completion service adapter using a local
// Ollama instance.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
	"github.com/editnori/psych-intake-brief-sub001/internal/core/ports/driven"
)

// Ensure CompletionService implements the interface.
var _ driven.CompletionService = (*CompletionService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 300 * time.Second
)

// Config holds configuration for the Ollama completion service.
type Config struct {
	// BaseURL is the Ollama server URL (default: http://localhost:11434).
	BaseURL string

	// Model is the model to use (default: llama3.2).
	Model string

	// Timeout is the request timeout (default: 300s, local models are
	// slow on first load).
	Timeout time.Duration
}

// CompletionService provides completions using a local Ollama instance.
type CompletionService struct {
	client  *http.Client
	baseURL string
	model   string
}

// NewCompletionService creates a new Ollama completion service.
func NewCompletionService(cfg Config) (*CompletionService, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &CompletionService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
	}, nil
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []chatMsg `json:"messages"`
	Format   string    `json:"format,omitempty"`
	Stream   bool      `json:"stream"`
	Options  *options  `json:"options,omitempty"`
}

// chatMsg is the Ollama chat message format.
type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// options carries model parameters.
type options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

// chatResponse is one Ollama /api/chat response object. Streaming
// responses are newline-delimited objects of this shape; the final one
// has done=true and carries the token counts.
type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// Complete produces a full completion in one round trip.
func (s *CompletionService) Complete(ctx context.Context, req driven.CompletionRequest) (*driven.CompletionResponse, error) {
	resp, err := s.send(ctx, s.buildRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if chatResp.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", chatResp.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	return &driven.CompletionResponse{
		Content: chatResp.Message.Content,
		Usage: domain.Usage{
			PromptTokens:     chatResp.PromptEvalCount,
			CompletionTokens: chatResp.EvalCount,
		},
	}, nil
}

// Stream produces the same completion incrementally. Ollama streams
// newline-delimited JSON objects rather than SSE.
func (s *CompletionService) Stream(ctx context.Context, req driven.CompletionRequest) (<-chan driven.StreamEvent, error) {
	resp, err := s.send(ctx, s.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	events := make(chan driven.StreamEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		var content strings.Builder
		var usage domain.Usage

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var chunk chatResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				continue
			}
			if chunk.Error != "" {
				events <- driven.StreamEvent{Err: fmt.Errorf("ollama: %s", chunk.Error)}
				return
			}

			if chunk.Message.Content != "" {
				content.WriteString(chunk.Message.Content)
				events <- driven.StreamEvent{Delta: chunk.Message.Content}
			}
			if chunk.Done {
				usage.PromptTokens = chunk.PromptEvalCount
				usage.CompletionTokens = chunk.EvalCount
				events <- driven.StreamEvent{Response: &driven.CompletionResponse{
					Content: content.String(),
					Usage:   usage,
				}}
				return
			}
		}

		if err := scanner.Err(); err != nil {
			events <- driven.StreamEvent{Err: fmt.Errorf("read stream: %w", err)}
			return
		}
		events <- driven.StreamEvent{Response: &driven.CompletionResponse{
			Content: content.String(),
			Usage:   usage,
		}}
	}()
	return events, nil
}

// buildRequest maps the generic completion request onto the chat format.
func (s *CompletionService) buildRequest(req driven.CompletionRequest, stream bool) chatRequest {
	messages := make([]chatMsg, 0, 2)
	if req.Instructions != "" {
		messages = append(messages, chatMsg{Role: "system", Content: req.Instructions})
	}
	messages = append(messages, chatMsg{Role: "user", Content: req.Input})

	out := chatRequest{
		Model:    s.model,
		Messages: messages,
		Stream:   stream,
	}
	if req.JSONResponse {
		out.Format = "json"
	}
	if req.Temperature > 0 || req.MaxOutputTokens > 0 {
		out.Options = &options{
			Temperature: req.Temperature,
			NumPredict:  req.MaxOutputTokens,
		}
	}
	return out
}

// send posts the request body to /api/chat.
func (s *CompletionService) send(ctx context.Context, body chatRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/api/chat",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}

// ModelName returns the name of the model being used.
func (s *CompletionService) ModelName() string {
	return s.model
}

// Ping validates the server is reachable by checking the version endpoint.
func (s *CompletionService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/version", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed (is Ollama running?): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: server returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (s *CompletionService) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
