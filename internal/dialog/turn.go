package dialog

import (
	"context"
	"fmt"
	"time"

	"github.com/agentplexus/reflectcall/internal/adapters/stt"
	"github.com/agentplexus/reflectcall/internal/adapters/telephony"
	"github.com/agentplexus/reflectcall/internal/adapters/tts"
	"github.com/agentplexus/reflectcall/internal/apperr"
	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/registry"
)

// turnOutcome is what one iteration of the turn loop produced, before it is
// written to the store by recordTurn.
type turnOutcome struct {
	buffer string
}

// runTurn executes one full iteration of spec §4.4's turn loop: speak
// prompt.PromptText, listen for the response, and decide when the user's
// answer has ended.
func (r *Runtime) runTurn(ctx context.Context, pc *models.PhoneCall, live *registry.Call, prompt models.PromptSnapshot) (turnOutcome, error) {
	if err := r.speak(ctx, pc, live, prompt.PromptText); err != nil {
		return turnOutcome{}, fmt.Errorf("dialog: speak: %w", err)
	}
	buffer, err := r.listenAndEndpoint(ctx, pc, live, prompt)
	if err != nil {
		return turnOutcome{}, err
	}
	return turnOutcome{buffer: buffer}, nil
}

// speak synthesizes text (cache hit preferred) and hands the hosted URL to
// the telephony adapter as a play-then-continue instruction, then waits for
// either playback completion or barge-in (spec §4.4 step 1). A TTS
// synthesis failure does not abort the call: the instruction is sent with
// an empty AudioURL, so nothing is spoken for that prompt; no built-in
// voice is substituted.
func (r *Runtime) speak(ctx context.Context, pc *models.PhoneCall, live *registry.Call, text string) error {
	url, err := r.ttsCache.SynthesizeURL(ctx, text, tts.Params{Voice: r.cfg.TTSVoice, Model: r.cfg.TTSModel})
	instr := telephony.Instructions{Kind: telephony.InstructionPlayThenContinue, AudioURL: url}
	if err != nil {
		r.log.Printf("dialog: tts synthesis failed for call %s, sending instruction without audio: %v", pc.ID, err)
		instr = telephony.Instructions{Kind: telephony.InstructionPlayThenContinue, AudioURL: ""}
	}
	if err := r.telephony.SendInlineInstructions(ctx, pc.ProviderCallSID, instr); err != nil {
		return apperr.Transientf("dialog.speak", err)
	}

	for {
		select {
		case <-ctx.Done():
			return apperr.Hangupf("dialog.speak", ctx.Err())
		case ev, ok := <-live.Events:
			if !ok {
				return apperr.Hangupf("dialog.speak", fmt.Errorf("call ended during playback"))
			}
			if ev.Kind == registry.EventPlaybackComplete || ev.Kind == registry.EventBargeIn {
				return nil
			}
		}
	}
}

// listenAndEndpoint streams inbound audio into an STT duplex and applies
// spec §4.4 steps 2-3's endpointing decision on every final transcript and
// on a periodic tick.
func (r *Runtime) listenAndEndpoint(ctx context.Context, pc *models.PhoneCall, live *registry.Call, prompt models.PromptSnapshot) (string, error) {
	stream, err := r.stt.OpenStream(ctx, stt.Config{
		Encoding:   "mulaw",
		SampleRate: 8000,
		Channels:   1,
		Language:   r.cfg.STTLanguage,
		Punctuate:  true,
	})
	if err != nil {
		return "", apperr.Transientf("dialog.listen", err)
	}
	defer stream.Close()

	buffer := pc.CurrentResponseBuffer
	lastSpeech := r.clock.Now()

	tick := time.NewTicker(r.cfg.EndpointTick)
	defer tick.Stop()

	audioDone := make(chan struct{})
	go func() {
		defer close(audioDone)
		for frame := range live.Inbound {
			if err := stream.WriteAudio(frame); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return buffer, apperr.Hangupf("dialog.listen", ctx.Err())

		case ev, ok := <-stream.Events():
			if !ok {
				return buffer, nil
			}
			if ev.Error != nil {
				return buffer, apperr.Transientf("dialog.listen", ev.Error)
			}
			lastSpeech = r.clock.Now()
			if ev.IsFinal {
				if buffer == "" {
					buffer = ev.Text
				} else {
					buffer = buffer + " " + ev.Text
				}
				if err := r.store.AppendToBuffer(ctx, pc.ID, ev.Text, lastSpeech); err != nil {
					return buffer, apperr.Transientf("dialog.listen", err)
				}
				done, derr := r.endpoint(ctx, prompt, buffer, lastSpeech)
				if derr != nil {
					return buffer, derr
				}
				if done {
					return buffer, nil
				}
			} else {
				if err := r.store.TouchLastSpeechTime(ctx, pc.ID, lastSpeech); err != nil {
					return buffer, apperr.Transientf("dialog.listen", err)
				}
			}

		case <-tick.C:
			done, derr := r.endpoint(ctx, prompt, buffer, lastSpeech)
			if derr != nil {
				return buffer, derr
			}
			if done {
				return buffer, nil
			}
		}
	}
}
