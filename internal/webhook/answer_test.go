package webhook

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/agentplexus/reflectcall/internal/adapters/telephony"
	"github.com/agentplexus/reflectcall/internal/models"
)

func TestAnswerConnectsAndRendersGreeting(t *testing.T) {
	h, st, _, _ := newTestHandler(t)
	pc := seedPhoneCall(t, st, models.PhoneCallInitiated, "CA123")

	rr := postForm(t, h.Answer, url.Values{"CallSid": {"CA123"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), string(telephony.InstructionGreetThenOpenMediaStream)) {
		t.Fatalf("expected greet-then-open-media-stream instruction, got %s", rr.Body.String())
	}

	got, err := st.GetPhoneCall(context.Background(), pc.ID)
	if err != nil {
		t.Fatalf("GetPhoneCall: %v", err)
	}
	if got.Status != models.PhoneCallConnected {
		t.Fatalf("expected CONNECTED, got %s", got.Status)
	}
}

func TestAnswerUnknownSidRendersHangup(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rr := postForm(t, h.Answer, url.Values{"CallSid": {"does-not-exist"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), string(telephony.InstructionPlayThenHangup)) {
		t.Fatalf("expected play-then-hangup fallback, got %s", rr.Body.String())
	}
}

func TestAnswerMissingSidRendersHangup(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rr := postForm(t, h.Answer, url.Values{})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), string(telephony.InstructionPlayThenHangup)) {
		t.Fatalf("expected play-then-hangup fallback, got %s", rr.Body.String())
	}
}

func TestAnswerIsIdempotentForAlreadyConnectedCall(t *testing.T) {
	h, st, _, _ := newTestHandler(t)
	seedPhoneCall(t, st, models.PhoneCallConnected, "CA456")

	rr := postForm(t, h.Answer, url.Values{"CallSid": {"CA456"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), string(telephony.InstructionGreetThenOpenMediaStream)) {
		t.Fatalf("expected the stream to still be (re)opened idempotently, got %s", rr.Body.String())
	}
}
