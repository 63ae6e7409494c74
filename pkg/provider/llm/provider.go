// Package llm defines the Provider interface for the answer-generation
// collaborator.
//
// A provider wraps a remote or local language-model API and exposes a
// uniform completion interface. The decision core never waits on a
// provider: requests are dispatched fire-and-forget after an ALLOW, and a
// provider failure only means the answer is absent — it never feeds back
// into gate state.
//
// Implementations must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream
// ends or when the supplied context is cancelled.
package llm

import "context"

// Message is one turn of a model conversation.
type Message struct {
	// Role is "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// Usage holds token accounting returned by the backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input.
	PromptTokens int

	// CompletionTokens is the number of tokens generated.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a
// response. A zero-value request is invalid; Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically
	// the "user" turn that drives the response.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction injected
	// before the conversation.
	SystemPrompt string

	// Temperature controls output randomness in [0.0, 2.0]. Zero requests
	// the provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero means provider default.
	MaxTokens int
}

// Chunk is a single fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental content. May be empty on the final chunk.
	Text string

	// FinishReason is set on the final chunk: "stop", "length", or
	// "error" (with the error text in Text).
	FinishReason string
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the model's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any language-model backend.
//
// Implementations must propagate context cancellation promptly: when ctx
// is cancelled the method must return (or close its channel) as quickly as
// possible.
type Provider interface {
	// StreamCompletion sends req and returns a read-only channel emitting
	// chunks as they arrive. The channel is closed when generation
	// finishes or ctx is cancelled; callers must drain it. Errors after
	// the stream opens surface as a Chunk with FinishReason "error".
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
