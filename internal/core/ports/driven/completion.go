package driven

import (
	"context"

	"github.com/editnori/psych-intake-brief-sub001/internal/core/domain"
)

// CompletionService is the generic streaming text-completion contract the
// generation core depends on. The core needs exactly two capabilities:
// "can request JSON-shaped output" and "can stream partial text". Nothing
// vendor-specific leaks past this interface.
//
// Implementations may include:
//   - OpenAI (chat completions)
//   - Anthropic (messages)
//   - Ollama (local models)
type CompletionService interface {
	// Complete produces a full completion in one round trip.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Stream produces the same completion incrementally. The returned
	// channel yields text deltas as they arrive and is closed after a
	// terminal event carrying either the full response or an error.
	// Cancelling ctx abandons the stream.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CompletionRequest describes one generation call.
type CompletionRequest struct {
	// Instructions is the system-level guidance for the call.
	Instructions string

	// Input is the user-level content (evidence block plus task).
	Input string

	// JSONResponse requests a JSON-shaped response body.
	JSONResponse bool

	// MaxOutputTokens bounds the generated length. Zero means the
	// provider default.
	MaxOutputTokens int

	// Temperature controls randomness. Zero means the provider default.
	Temperature float64
}

// CompletionResponse is a completed generation.
type CompletionResponse struct {
	// Content is the full response text.
	Content string

	// Usage is the token accounting for this call, when the provider
	// reports it.
	Usage domain.Usage
}

// StreamEvent is one event on a completion stream. Exactly one terminal
// event (Response or Err set) precedes channel close.
type StreamEvent struct {
	// Delta is an incremental piece of response text.
	Delta string

	// Response is the assembled final response. Set only on the terminal
	// event of a successful stream.
	Response *CompletionResponse

	// Err is the transport failure that ended the stream, if any.
	Err error
}

// Terminal reports whether this event ends the stream.
func (e StreamEvent) Terminal() bool {
	return e.Response != nil || e.Err != nil
}
