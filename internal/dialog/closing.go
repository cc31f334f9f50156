package dialog

import (
	"context"
	"fmt"
	"time"

	"github.com/agentplexus/reflectcall/internal/adapters/telephony"
	"github.com/agentplexus/reflectcall/internal/adapters/tts"
	"github.com/agentplexus/reflectcall/internal/apperr"
	"github.com/agentplexus/reflectcall/internal/ids"
	"github.com/agentplexus/reflectcall/internal/models"
)

const closingMessage = "Thank you for reflecting with me today. Talk to you next time."

// close runs spec §4.4's closing sequence once every prompt has been
// answered. Step ordering is load-bearing: the closing audio is pushed to
// the provider BEFORE the local COMPLETED write, because once the adapter
// sees COMPLETED it refuses further instructions on that call.
func (r *Runtime) close(ctx context.Context, pc *models.PhoneCall) {
	url, err := r.ttsCache.SynthesizeURL(ctx, closingMessage, tts.Params{Voice: r.cfg.TTSVoice, Model: r.cfg.TTSModel})
	instr := telephony.Instructions{Kind: telephony.InstructionPlayThenHangup, AudioURL: url}
	if err != nil {
		r.log.Printf("dialog: closing tts synthesis failed for call %s, sending instruction without audio: %v", pc.ID, err)
		instr = telephony.Instructions{Kind: telephony.InstructionPlayThenHangup, AudioURL: ""}
	}
	if err := r.telephony.SendInlineInstructions(ctx, pc.ProviderCallSID, instr); err != nil {
		r.log.Printf("dialog: closing: send instructions for call %s: %v", pc.ID, err)
		r.abandon(ctx, pc, "closing instruction delivery failed")
		return
	}

	if err := r.validateResponseCount(ctx, pc); err != nil {
		r.log.Printf("dialog: closing: %v", err)
		r.abandon(ctx, pc, err.Error())
		return
	}

	now := r.clock.Now()

	if err := r.store.FinishSession(ctx, pc.ReflectionSessionID, models.SessionCompleted, now); err != nil {
		r.log.Printf("dialog: closing: finish session %s: %v", pc.ReflectionSessionID, err)
		return
	}
	if _, err := r.store.CASPhoneCallStatus(ctx, pc.ID, pc.Status, models.PhoneCallCompleted); err != nil {
		r.log.Printf("dialog: closing: CAS phone call %s: %v", pc.ID, err)
	}
	if err := r.store.SetPhoneCallEnded(ctx, pc.ID, models.PhoneCallCompleted, now); err != nil {
		r.log.Printf("dialog: closing: set ended %s: %v", pc.ID, err)
	}

	if err := r.materializeJournalEntry(ctx, pc, now); err != nil {
		r.log.Printf("dialog: closing: materialize journal entry for session %s: %v", pc.ReflectionSessionID, err)
	}

	if pc.ScheduledCallID != "" {
		if err := r.store.SetScheduledCallStatus(ctx, pc.ScheduledCallID, models.ScheduledCallCompleted); err != nil {
			r.log.Printf("dialog: closing: set scheduled call %s completed: %v", pc.ScheduledCallID, err)
		}
	}
}

// validateResponseCount enforces spec §4.4 closing step 2: the count of
// recorded PromptResponses must equal the number of non-rating prompts,
// catching prompt-list drift between materialization and the runtime.
func (r *Runtime) validateResponseCount(ctx context.Context, pc *models.PhoneCall) error {
	responses, err := r.store.ListPromptResponses(ctx, pc.ReflectionSessionID)
	if err != nil {
		return apperr.Transientf("dialog.close", err)
	}
	want := pc.NonRatingPromptCount()
	if len(responses) != want {
		return apperr.Faultf("dialog.close", fmt.Errorf(
			"recorded %d prompt responses, expected %d non-rating prompts for session %s",
			len(responses), want, pc.ReflectionSessionID))
	}
	return nil
}

// materializeJournalEntry creates the immutable JournalEntry from the
// session's responses, keyed by (user, localDate) (spec §4.4 closing step 5).
func (r *Runtime) materializeJournalEntry(ctx context.Context, pc *models.PhoneCall, endedAt time.Time) error {
	profile, err := r.store.GetProfile(ctx, pc.UserID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	localDate := r.clock.LocalDate(profile.Timezone, endedAt)

	responses, err := r.store.ListPromptResponses(ctx, pc.ReflectionSessionID)
	if err != nil {
		return fmt.Errorf("list prompt responses: %w", err)
	}

	session, err := r.store.GetReflectionSession(ctx, pc.ReflectionSessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	entry := &models.JournalEntry{
		ID:                  ids.New(),
		UserID:              pc.UserID,
		ReflectionSessionID: pc.ReflectionSessionID,
		LocalDate:           localDate,
		Rating:              session.Rating,
		Responses:           responses,
		CreatedAt:           endedAt,
	}
	if err := r.store.CreateJournalEntry(ctx, entry); err != nil {
		// The store already returns nil for a retry from the same session
		// (spec §8 round-trip law); an apperr.Uniqueness error here means
		// another session's entry holds this (user, date), and is reported.
		return fmt.Errorf("create journal entry: %w", err)
	}
	return nil
}
