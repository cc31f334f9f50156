package webhook

import (
	"net/http"

	"github.com/agentplexus/reflectcall/internal/adapters/telephony"
	"github.com/agentplexus/reflectcall/internal/adapters/tts"
	"github.com/agentplexus/reflectcall/internal/models"
)

// Answer handles the provider's answer webhook (spec §4.7): look up the
// PhoneCall by providerCallSid, flip it CONNECTED, and respond with the
// greeting + media-stream-open instruction document.
func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	sid, err := formValue(r, "CallSid")
	if err != nil || sid == "" {
		writeXML(w, h.telephony.Render(telephony.Instructions{Kind: telephony.InstructionPlayThenHangup}))
		return
	}

	pc, err := h.store.GetPhoneCallBySID(r.Context(), sid)
	if err != nil {
		h.log.Printf("webhook: answer: no phone call for sid %s: %v", sid, err)
		writeXML(w, h.telephony.Render(telephony.Instructions{Kind: telephony.InstructionPlayThenHangup}))
		return
	}

	if applied, err := h.store.CASPhoneCallStatus(r.Context(), pc.ID, models.PhoneCallInitiated, models.PhoneCallConnected); err != nil {
		h.log.Printf("webhook: answer: CAS phone call %s: %v", pc.ID, err)
		writeXML(w, h.telephony.Render(telephony.Instructions{Kind: telephony.InstructionPlayThenHangup}))
		return
	} else if !applied {
		// Already connected (duplicate webhook delivery) or in a status the
		// answer event doesn't apply to; re-open the stream idempotently.
		h.log.Printf("webhook: answer: phone call %s was not INITIATED, proceeding idempotently", pc.ID)
	}
	if err := h.store.SetPhoneCallConnected(r.Context(), pc.ID, h.clock.Now()); err != nil {
		h.log.Printf("webhook: answer: set connected %s: %v", pc.ID, err)
	}

	greeting := "Hello, this is your reflection call."
	if len(pc.Prompts) > 0 {
		greeting = pc.Prompts[0].PromptText
	}
	audioURL, err := h.ttsCache.SynthesizeURL(r.Context(), greeting, tts.Params{Voice: h.cfg.TTSVoice, Model: h.cfg.TTSModel})
	if err != nil {
		h.log.Printf("webhook: answer: tts synthesis failed for call %s, sending greeting without audio: %v", pc.ID, err)
		audioURL = ""
	}

	instr := telephony.Instructions{
		Kind:           telephony.InstructionGreetThenOpenMediaStream,
		AudioURL:       audioURL,
		MediaStreamURL: h.streamURLFor(sid),
	}
	// The Dialog Runtime is handed off from the media-stream WebSocket
	// handler once the provider actually opens the stream (spec §4.7): the
	// registry.Call it reads from doesn't exist yet at this point.
	writeXML(w, h.telephony.Render(instr))
}
