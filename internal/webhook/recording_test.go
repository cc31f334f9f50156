package webhook

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/agentplexus/reflectcall/internal/models"
)

func TestRecordingEncryptsAndAttachesURL(t *testing.T) {
	h, st, _, _ := newTestHandler(t)
	pc := seedPhoneCall(t, st, models.PhoneCallConnected, "CA123")
	sess := &models.ReflectionSession{
		ID:     pc.ReflectionSessionID,
		UserID: pc.UserID,
		Method: models.MethodPhone,
		Status: models.SessionInProgress,
	}
	if err := st.CreateReflectionSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateReflectionSession: %v", err)
	}

	rr := postForm(t, h.Recording, url.Values{
		"CallSid":      {"CA123"},
		"RecordingUrl": {"https://provider.example/recordings/abc.wav"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	got, err := st.GetReflectionSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetReflectionSession: %v", err)
	}
	if got.RecordingURL == "" {
		t.Fatalf("expected a recording URL to be set")
	}
	if got.RecordingURL == "https://provider.example/recordings/abc.wav" {
		t.Fatalf("expected the recording URL to be encrypted at rest, got plaintext")
	}

	plaintext, err := h.crypto.Decrypt(pc.UserID, got.RecordingURL)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plaintext != "https://provider.example/recordings/abc.wav" {
		t.Fatalf("decrypted recording URL mismatch: %q", plaintext)
	}
}

func TestRecordingMissingFieldsAreBadRequest(t *testing.T) {
	h, _, _, _ := newTestHandler(t)

	rr := postForm(t, h.Recording, url.Values{"RecordingUrl": {"https://provider.example/r.wav"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing CallSid, got %d", rr.Code)
	}

	rr = postForm(t, h.Recording, url.Values{"CallSid": {"CA1"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing RecordingUrl, got %d", rr.Code)
	}
}

func TestRecordingUnknownSidReturnsOK(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rr := postForm(t, h.Recording, url.Values{
		"CallSid":      {"missing"},
		"RecordingUrl": {"https://provider.example/r.wav"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for an unknown sid, got %d", rr.Code)
	}
}
