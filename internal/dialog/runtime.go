// Package dialog is the Streaming Dialog Runtime (spec §4.4): one long-lived
// task per active call that fuses the inbound media stream with STT, TTS,
// and LLM-based turn-endpointing to drive the prompt sequence end to end.
// This is the hardest subsystem in the engine — the concurrency pattern
// (one goroutine per call, serialized internal state) is grounded on the
// teacher's pkg/callmanager.Manager, which owns one call loop per active
// call in exactly the same shape.
package dialog

import (
	"context"
	"log"
	"time"

	"github.com/agentplexus/reflectcall/internal/adapters/crypto"
	"github.com/agentplexus/reflectcall/internal/adapters/llm"
	"github.com/agentplexus/reflectcall/internal/adapters/stt"
	"github.com/agentplexus/reflectcall/internal/adapters/telephony"
	"github.com/agentplexus/reflectcall/internal/adapters/tts"
	"github.com/agentplexus/reflectcall/internal/apperr"
	"github.com/agentplexus/reflectcall/internal/clock"
	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/registry"
	"github.com/agentplexus/reflectcall/internal/store"
)

// Config tunes the turn-endpointing thresholds and per-call ceilings (spec
// §4.4/§5). The serve command takes PauseMin, TTSVoice, TTSModel and
// STTLanguage from the process environment; the other fields keep their
// DefaultConfig values.
type Config struct {
	PauseMin         time.Duration // default 3s
	PauseHard        time.Duration // default 12s
	RatingPause      time.Duration // default 3s
	EndpointTick     time.Duration // default 250ms
	WallClockCeiling time.Duration // default 15min
	TTSVoice         string
	TTSModel         string
	STTLanguage      string
}

// DefaultConfig returns the spec's documented default thresholds.
func DefaultConfig() Config {
	return Config{
		PauseMin:         3 * time.Second,
		PauseHard:        12 * time.Second,
		RatingPause:      3 * time.Second,
		EndpointTick:     250 * time.Millisecond,
		WallClockCeiling: 15 * time.Minute,
		TTSVoice:         "Rachel",
		TTSModel:         "eleven_turbo_v2_5",
		STTLanguage:      "en",
	}
}

// Runtime owns the turn loop and closing sequence for every live call.
type Runtime struct {
	cfg       Config
	store     store.Store
	telephony telephony.Provider
	stt       stt.Provider
	ttsCache  *tts.Cache
	llm       llm.Provider
	crypto    *crypto.Encryptor
	clock     clock.Clock
	registry  *registry.Registry
	log       *log.Logger
}

// New constructs a Runtime from its capability adapters.
func New(cfg Config, st store.Store, tel telephony.Provider, sttp stt.Provider, ttsCache *tts.Cache, llmp llm.Provider, enc *crypto.Encryptor, clk clock.Clock, reg *registry.Registry, logger *log.Logger) *Runtime {
	if logger == nil {
		logger = log.Default()
	}
	return &Runtime{
		cfg:       cfg,
		store:     st,
		telephony: tel,
		stt:       sttp,
		ttsCache:  ttsCache,
		llm:       llmp,
		crypto:    enc,
		clock:     clk,
		registry:  reg,
		log:       logger,
	}
}

// Run drives one PhoneCall from CONNECTED through the closing sequence. It
// is invoked by the webhook front once the media-stream handler has
// registered the live Call in the registry (spec §4.7). Run returns once
// the call is finalized (COMPLETED, ABANDONED, or FAILED) and never returns
// an error for ordinary call-ending conditions — those are reflected in the
// persisted status instead (spec §7's propagation policy: typed
// success/failure at adapter boundaries, not exceptions across components).
func (r *Runtime) Run(parent context.Context, phoneCallID string) {
	ctx, cancel := context.WithTimeout(parent, r.cfg.WallClockCeiling)
	defer cancel()

	pc, err := r.store.GetPhoneCall(ctx, phoneCallID)
	if err != nil {
		r.log.Printf("dialog: run: load phone call %s: %v", phoneCallID, err)
		return
	}

	live := r.registry.Lookup(pc.ProviderCallSID)
	if live == nil {
		r.log.Printf("dialog: run: no live call registered for sid %s", pc.ProviderCallSID)
		r.abandon(ctx, pc, "no live call registered")
		return
	}
	defer r.registry.Unregister(pc.ProviderCallSID)

	for pc.CurrentPromptIndex < len(pc.Prompts) {
		select {
		case <-ctx.Done():
			r.abandon(ctx, pc, "wall-clock ceiling exceeded")
			return
		default:
		}

		prompt := pc.Prompts[pc.CurrentPromptIndex]
		turnStart := r.clock.Now()
		outcome, err := r.runTurn(ctx, pc, live, prompt)
		if err != nil {
			if cat, ok := apperr.Of(err); ok && cat == apperr.Hangup {
				r.abandon(ctx, pc, "user hangup")
				return
			}
			r.log.Printf("dialog: run: turn %d on call %s: %v", pc.CurrentPromptIndex, phoneCallID, err)
			r.abandon(ctx, pc, err.Error())
			return
		}

		if err := r.recordTurn(ctx, pc, prompt, outcome, turnStart); err != nil {
			r.log.Printf("dialog: run: record turn %d on call %s: %v", pc.CurrentPromptIndex, phoneCallID, err)
			r.abandon(ctx, pc, err.Error())
			return
		}

		pc.CurrentPromptIndex++
		pc.CurrentResponseBuffer = ""
		if err := r.store.AdvancePrompt(ctx, pc.ID); err != nil {
			r.log.Printf("dialog: run: advance prompt on call %s: %v", phoneCallID, err)
			r.abandon(ctx, pc, err.Error())
			return
		}
	}

	r.close(ctx, pc)
}

// abandon finalizes pc and its session as ABANDONED (spec §4.4's failure
// handling: STT/cancellation/unexpected errors inside the loop never leave
// the call non-terminal).
func (r *Runtime) abandon(ctx context.Context, pc *models.PhoneCall, reason string) {
	now := r.clock.Now()
	if applied, err := r.store.CASPhoneCallStatus(ctx, pc.ID, pc.Status, models.PhoneCallAbandoned); err != nil {
		r.log.Printf("dialog: abandon: CAS phone call %s: %v", pc.ID, err)
	} else if applied {
		pc.Status = models.PhoneCallAbandoned
	}
	if err := r.store.SetPhoneCallEnded(ctx, pc.ID, models.PhoneCallAbandoned, now); err != nil {
		r.log.Printf("dialog: abandon: set ended %s: %v", pc.ID, err)
	}
	if err := r.store.FinishSession(ctx, pc.ReflectionSessionID, models.SessionAbandoned, now); err != nil {
		r.log.Printf("dialog: abandon: finish session %s: %v", pc.ReflectionSessionID, err)
	}
	r.log.Printf("dialog: call %s abandoned: %s", pc.ID, reason)
	_ = r.telephony.EndCall(ctx, pc.ProviderCallSID)
}
