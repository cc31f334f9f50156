package dialog

import (
	"context"
	"testing"
	"time"

	"github.com/agentplexus/reflectcall/internal/adapters/llm"
	"github.com/agentplexus/reflectcall/internal/models"
)

func TestDecideEndpointPauseBelowMin(t *testing.T) {
	cfg := DefaultConfig()
	mock := &llm.Mock{}
	done, err := decideEndpoint(context.Background(), mock, cfg, models.PromptSnapshot{PromptText: "How was work?"}, "I went to the", 1*time.Second)
	if err != nil {
		t.Fatalf("decideEndpoint: %v", err)
	}
	if done {
		t.Error("decideEndpoint: expected not done while pause < PauseMin")
	}
}

func TestDecideEndpointPauseHardFailsafe(t *testing.T) {
	cfg := DefaultConfig()
	mock := &llm.Mock{CompletionResults: []llm.CompletionCheck{{Complete: false}}}
	done, err := decideEndpoint(context.Background(), mock, cfg, models.PromptSnapshot{PromptText: "How was work?"}, "it was fine", 13*time.Second)
	if err != nil {
		t.Fatalf("decideEndpoint: %v", err)
	}
	if !done {
		t.Error("decideEndpoint: expected PAUSE_HARD failsafe to end turn regardless of LLM verdict")
	}
}

func TestDecideEndpointPauseHardEmptyBufferNotDone(t *testing.T) {
	cfg := DefaultConfig()
	mock := &llm.Mock{}
	done, err := decideEndpoint(context.Background(), mock, cfg, models.PromptSnapshot{PromptText: "How was work?"}, "", 13*time.Second)
	if err != nil {
		t.Fatalf("decideEndpoint: %v", err)
	}
	if done {
		t.Error("decideEndpoint: empty buffer should never end a turn, even past PAUSE_HARD")
	}
}

func TestDecideEndpointRatingPromptOnlyNeedsPause(t *testing.T) {
	cfg := DefaultConfig()
	mock := &llm.Mock{}
	done, err := decideEndpoint(context.Background(), mock, cfg, models.PromptSnapshot{IsRatingPrompt: true}, "four", 3500*time.Millisecond)
	if err != nil {
		t.Fatalf("decideEndpoint: %v", err)
	}
	if !done {
		t.Error("decideEndpoint: rating prompt should complete on pause alone, without consulting the LLM")
	}
}

func TestDecideEndpointLLMCompletionCheck(t *testing.T) {
	cfg := DefaultConfig()
	mock := &llm.Mock{CompletionResults: []llm.CompletionCheck{{Complete: true}}}
	done, err := decideEndpoint(context.Background(), mock, cfg, models.PromptSnapshot{PromptText: "How was work?"}, "it went well, thanks", 5*time.Second)
	if err != nil {
		t.Fatalf("decideEndpoint: %v", err)
	}
	if !done {
		t.Error("decideEndpoint: expected LLM Complete=true to end the turn")
	}
}

func TestDecideEndpointLLMErrorFallsBackToIncomplete(t *testing.T) {
	cfg := DefaultConfig()
	mock := &erroringProvider{}
	done, err := decideEndpoint(context.Background(), mock, cfg, models.PromptSnapshot{PromptText: "How was work?"}, "it went", 5*time.Second)
	if err != nil {
		t.Fatalf("decideEndpoint: %v", err)
	}
	if done {
		t.Error("decideEndpoint: LLM error should be treated as isComplete=false, relying on PAUSE_HARD")
	}
}

type erroringProvider struct{}

func (erroringProvider) CheckCompletion(ctx context.Context, prompt, response string) (llm.CompletionCheck, error) {
	return llm.CompletionCheck{}, context.DeadlineExceeded
}

func (erroringProvider) ExtractRating(ctx context.Context, response string) (int, bool, error) {
	return 0, false, context.DeadlineExceeded
}
