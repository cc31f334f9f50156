package webhook

import "net/http"

// Recording handles the provider's recording-available callback (spec
// §4.7): encrypt the recording URL at rest and attach it to the session.
func (h *Handler) Recording(w http.ResponseWriter, r *http.Request) {
	sid, err := formValue(r, "CallSid")
	if err != nil || sid == "" {
		http.Error(w, "missing CallSid", http.StatusBadRequest)
		return
	}
	recordingURL, err := formValue(r, "RecordingUrl")
	if err != nil || recordingURL == "" {
		http.Error(w, "missing RecordingUrl", http.StatusBadRequest)
		return
	}

	pc, err := h.store.GetPhoneCallBySID(r.Context(), sid)
	if err != nil {
		h.log.Printf("webhook: recording: no phone call for sid %s: %v", sid, err)
		w.WriteHeader(http.StatusOK)
		return
	}

	ciphertext, err := h.crypto.Encrypt(pc.UserID, recordingURL)
	if err != nil {
		h.log.Printf("webhook: recording: encrypt for call %s: %v", pc.ID, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.store.SetRecordingURL(r.Context(), pc.ReflectionSessionID, ciphertext); err != nil {
		h.log.Printf("webhook: recording: set recording url for session %s: %v", pc.ReflectionSessionID, err)
	}
	w.WriteHeader(http.StatusOK)
}
