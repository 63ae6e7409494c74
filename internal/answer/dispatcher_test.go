package answer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sotto-ai/sotto/pkg/provider/llm"
	llmmock "github.com/sotto-ai/sotto/pkg/provider/llm/mock"
)

func TestDispatchDeliversAnswer(t *testing.T) {
	provider := &llmmock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "Use a hash map "},
			{Text: "with a doubly linked list.", FinishReason: "stop"},
		},
	}
	d := NewDispatcher(provider)

	plan := NewFormatter(PreferenceProfile{}).Format(remoteEvent("Can you implement an LRU cache?"), nil)
	d.Dispatch(context.Background(), plan)

	select {
	case ans := <-d.Results():
		if ans.Content != "Use a hash map with a doubly linked list." {
			t.Errorf("content = %q", ans.Content)
		}
		if ans.Plan.ID != plan.ID {
			t.Errorf("plan ID = %q, want %q", ans.Plan.ID, plan.ID)
		}
		if ans.Elapsed <= 0 {
			t.Error("elapsed not recorded")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the answer")
	}

	reqs := provider.Requests()
	if len(reqs) != 1 {
		t.Fatalf("provider saw %d requests, want 1", len(reqs))
	}
	if reqs[0].SystemPrompt == "" || len(reqs[0].Messages) != 1 {
		t.Errorf("malformed request: %+v", reqs[0])
	}
}

func TestDispatchFailureIsSilent(t *testing.T) {
	provider := &llmmock.Provider{StreamErr: errors.New("upstream down")}
	d := NewDispatcher(provider)

	plan := NewFormatter(PreferenceProfile{}).Format(remoteEvent("Can you hear me?"), nil)
	d.Dispatch(context.Background(), plan)
	d.Wait()

	select {
	case ans := <-d.Results():
		t.Fatalf("failed generation produced an answer: %+v", ans)
	default:
	}
}

func TestDispatchMidStreamErrorIsSilent(t *testing.T) {
	provider := &llmmock.Provider{
		StreamChunks: []llm.Chunk{
			{Text: "partial"},
			{Text: "boom", FinishReason: "error"},
		},
	}
	d := NewDispatcher(provider)

	plan := NewFormatter(PreferenceProfile{}).Format(remoteEvent("Can you hear me?"), nil)
	d.Dispatch(context.Background(), plan)
	d.Wait()

	select {
	case ans := <-d.Results():
		t.Fatalf("errored stream produced an answer: %+v", ans)
	default:
	}
}

func TestDispatchDoesNotBlockCaller(t *testing.T) {
	provider := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "ok", FinishReason: "stop"}},
	}
	d := NewDispatcher(provider)
	plan := NewFormatter(PreferenceProfile{}).Format(remoteEvent("Quick one?"), nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			d.Dispatch(context.Background(), plan)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked the caller")
	}
	d.Wait()
}
