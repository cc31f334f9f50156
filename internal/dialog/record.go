package dialog

import (
	"context"
	"time"

	"github.com/agentplexus/reflectcall/internal/apperr"
	"github.com/agentplexus/reflectcall/internal/models"
)

// recordTurn writes the outcome of one completed turn (spec §4.4 step 4).
// A rating prompt's answer updates the session's rating field and produces
// no PromptResponse row; every other prompt writes exactly one
// PromptResponse at the next contiguous position.
func (r *Runtime) recordTurn(ctx context.Context, pc *models.PhoneCall, prompt models.PromptSnapshot, outcome turnOutcome, turnStart time.Time) error {
	if prompt.IsRatingPrompt {
		rating, ok, err := r.llm.ExtractRating(ctx, outcome.buffer)
		if err != nil {
			return apperr.Transientf("dialog.recordTurn", err)
		}
		if !ok {
			r.log.Printf("dialog: no confident rating extracted for session %s, leaving unset", pc.ReflectionSessionID)
			return nil
		}
		if err := r.store.SetRating(ctx, pc.ReflectionSessionID, rating); err != nil {
			return apperr.Transientf("dialog.recordTurn", err)
		}
		return nil
	}

	resp := &models.PromptResponse{
		SessionID:        pc.ReflectionSessionID,
		PromptID:         prompt.PromptID,
		PromptText:       prompt.PromptText,
		Position:         pc.CurrentPromptIndex + 1,
		ResponseText:     outcome.buffer,
		ResponseStarted:  turnStart,
		ResponseFinished: r.clock.Now(),
	}
	if err := r.store.AppendPromptResponse(ctx, resp); err != nil {
		return apperr.Transientf("dialog.recordTurn", err)
	}
	return nil
}
