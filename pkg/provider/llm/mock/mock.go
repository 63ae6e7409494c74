// Package mock provides a scripted LLM provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/sotto-ai/sotto/pkg/provider/llm"
)

// Provider is a test double implementing [llm.Provider].
type Provider struct {
	mu       sync.Mutex
	requests []llm.CompletionRequest

	// CompleteResult is returned from Complete when CompleteErr is nil.
	CompleteResult *llm.CompletionResponse

	// CompleteErr, when non-nil, is returned from Complete.
	CompleteErr error

	// StreamChunks is emitted, in order, by StreamCompletion.
	StreamChunks []llm.Chunk

	// StreamErr, when non-nil, is returned from StreamCompletion.
	StreamErr error
}

// Requests returns all requests received so far.
func (p *Provider) Requests() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.CompletionRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

func (p *Provider) record(req llm.CompletionRequest) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
}

// StreamCompletion implements [llm.Provider].
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	if p.StreamErr != nil {
		return nil, p.StreamErr
	}
	p.record(req)

	ch := make(chan llm.Chunk, len(p.StreamChunks))
	go func() {
		defer close(ch)
		for _, c := range p.StreamChunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Complete implements [llm.Provider].
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.CompleteErr != nil {
		return nil, p.CompleteErr
	}
	p.record(req)
	if p.CompleteResult != nil {
		return p.CompleteResult, nil
	}
	return &llm.CompletionResponse{Content: "ok"}, nil
}
