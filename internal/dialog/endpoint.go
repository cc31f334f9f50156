package dialog

import (
	"context"
	"time"

	"github.com/agentplexus/reflectcall/internal/adapters/llm"
	"github.com/agentplexus/reflectcall/internal/models"
)

// endpoint applies spec §4.4 step 3's turn-endpointing decision and reports
// whether the current turn should end now. It is called both on every new
// final STT transcript and on the periodic tick.
func (r *Runtime) endpoint(ctx context.Context, prompt models.PromptSnapshot, buffer string, lastSpeech time.Time) (bool, error) {
	pause := r.clock.Now().Sub(lastSpeech)
	return decideEndpoint(ctx, r.llm, r.cfg, prompt, buffer, pause)
}

// decideEndpoint is the pure decision table behind endpoint, split out so
// tests can drive it directly against a scripted llm.Provider without
// constructing a whole Runtime.
func decideEndpoint(ctx context.Context, provider llm.Provider, cfg Config, prompt models.PromptSnapshot, buffer string, pause time.Duration) (bool, error) {
	if pause < cfg.PauseMin {
		return false, nil
	}
	if pause >= cfg.PauseHard {
		return buffer != "", nil
	}
	if prompt.IsRatingPrompt {
		return pause >= cfg.RatingPause && buffer != "", nil
	}
	if buffer == "" {
		return false, nil
	}
	check, err := provider.CheckCompletion(ctx, prompt.PromptText, buffer)
	if err != nil {
		// spec §4.4 failure handling: LLM error in checkCompletion is treated
		// as isComplete=false, relying on PAUSE_HARD as the failsafe.
		return false, nil
	}
	// check.Complete is already gated at llm.CompletionConfidenceThreshold by
	// the provider (spec §4.4 step 3: "isComplete ∧ confidence≥0.6").
	return check.Complete, nil
}
