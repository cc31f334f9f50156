package webhook

import (
	"context"
	"net/http"

	"github.com/agentplexus/reflectcall/internal/callstate"
	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/scheduler"
)

// Status handles the provider's status callback (spec §4.7). A "completed"
// delivery after the runtime already finalized the call is a no-op; one
// that arrives while the call is still CONNECTED/INITIATED means the user
// hung up early (or the call never connected), so this finalizes the call
// itself and retries the ScheduledCall if attempts remain.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	sid, err := formValue(r, "CallSid")
	if err != nil || sid == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}
	callStatus, _ := formValue(r, "CallStatus")

	pc, err := h.store.GetPhoneCallBySID(r.Context(), sid)
	if err != nil {
		h.log.Printf("webhook: status: no phone call for sid %s (status %s): %v", sid, callStatus, err)
		w.WriteHeader(http.StatusOK)
		return
	}

	if pc.Status.IsTerminal() {
		w.WriteHeader(http.StatusOK)
		return
	}

	event, ok := statusEvent(callStatus)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	to, err := callstate.Transition(pc.Status, event)
	if err != nil {
		h.log.Printf("webhook: status: %v", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	now := h.clock.Now()
	if _, err := h.store.CASPhoneCallStatus(r.Context(), pc.ID, pc.Status, to); err != nil {
		h.log.Printf("webhook: status: CAS phone call %s: %v", pc.ID, err)
	}
	if err := h.store.SetPhoneCallEnded(r.Context(), pc.ID, to, now); err != nil {
		h.log.Printf("webhook: status: set ended %s: %v", pc.ID, err)
	}
	if err := h.store.FinishSession(r.Context(), pc.ReflectionSessionID, models.SessionAbandoned, now); err != nil {
		h.log.Printf("webhook: status: finish session %s: %v", pc.ReflectionSessionID, err)
	}

	h.retryScheduledCall(r.Context(), pc, callStatus)
	w.WriteHeader(http.StatusOK)
}

// statusEvent maps a provider CallStatus value to the callstate.Event it
// represents (spec §6's telephony event vocabulary).
func statusEvent(callStatus string) (callstate.Event, bool) {
	switch callStatus {
	case "no-answer":
		return callstate.EventNoAnswer, true
	case "busy":
		return callstate.EventBusy, true
	case "failed":
		return callstate.EventProviderError, true
	case "completed":
		return callstate.EventUserHangup, true
	default:
		return "", false
	}
}

func (h *Handler) retryScheduledCall(ctx context.Context, pc *models.PhoneCall, lastError string) {
	if pc.ScheduledCallID == "" {
		return
	}
	sc, err := h.store.GetScheduledCall(ctx, pc.ScheduledCallID)
	if err != nil {
		h.log.Printf("webhook: status: load scheduled call %s: %v", pc.ScheduledCallID, err)
		return
	}
	if sc.Status.IsTerminal() {
		return
	}
	if err := scheduler.RetryOrFail(ctx, h.store, h.clock, sc, h.cfg.RetryBackoff, "early hangup: "+lastError); err != nil {
		h.log.Printf("webhook: status: retry scheduled call %s: %v", sc.ID, err)
	}
}
