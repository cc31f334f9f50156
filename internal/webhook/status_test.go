package webhook

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/agentplexus/reflectcall/internal/ids"
	"github.com/agentplexus/reflectcall/internal/models"
)

func TestStatusCompletedAfterAnswerAbandonsSession(t *testing.T) {
	h, st, _, clk := newTestHandler(t)
	pc := seedPhoneCall(t, st, models.PhoneCallConnected, "CA123")
	sess := &models.ReflectionSession{
		ID:        pc.ReflectionSessionID,
		UserID:    pc.UserID,
		Method:    models.MethodPhone,
		Status:    models.SessionInProgress,
		StartedAt: clk.Now(),
	}
	if err := st.CreateReflectionSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateReflectionSession: %v", err)
	}

	rr := postForm(t, h.Status, url.Values{"CallSid": {"CA123"}, "CallStatus": {"completed"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	gotPC, err := st.GetPhoneCall(context.Background(), pc.ID)
	if err != nil {
		t.Fatalf("GetPhoneCall: %v", err)
	}
	if !gotPC.Status.IsTerminal() {
		t.Fatalf("expected terminal phone call status, got %s", gotPC.Status)
	}

	gotSess, err := st.GetReflectionSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetReflectionSession: %v", err)
	}
	if gotSess.Status != models.SessionAbandoned {
		t.Fatalf("expected ABANDONED session, got %s", gotSess.Status)
	}
}

func TestStatusOnAlreadyTerminalCallIsNoop(t *testing.T) {
	h, st, _, _ := newTestHandler(t)
	pc := seedPhoneCall(t, st, models.PhoneCallCompleted, "CA789")

	rr := postForm(t, h.Status, url.Values{"CallSid": {"CA789"}, "CallStatus": {"completed"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	got, err := st.GetPhoneCall(context.Background(), pc.ID)
	if err != nil {
		t.Fatalf("GetPhoneCall: %v", err)
	}
	if got.Status != models.PhoneCallCompleted {
		t.Fatalf("expected status unchanged, got %s", got.Status)
	}
}

func TestStatusUnknownSidReturnsOK(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rr := postForm(t, h.Status, url.Values{"CallSid": {"missing"}, "CallStatus": {"completed"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 even for an unknown sid, got %d", rr.Code)
	}
}

func TestStatusMissingSidIsBadRequest(t *testing.T) {
	h, _, _, _ := newTestHandler(t)
	rr := postForm(t, h.Status, url.Values{"CallStatus": {"completed"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing CallSid, got %d", rr.Code)
	}
}

func TestStatusRetriesScheduledCallOnEarlyHangup(t *testing.T) {
	h, st, _, clk := newTestHandler(t)
	sc := &models.ScheduledCall{
		ID:           ids.New(),
		UserID:       "user-1",
		PhoneNumber:  "+15551234567",
		ScheduledFor: clk.Now(),
		Status:       models.ScheduledCallInProgress,
		AttemptCount: 0,
		MaxRetries:   3,
	}
	if err := st.CreateScheduledCall(context.Background(), sc); err != nil {
		t.Fatalf("CreateScheduledCall: %v", err)
	}
	pc := &models.PhoneCall{
		ID:                  ids.New(),
		UserID:              "user-1",
		ReflectionSessionID: "sess-" + ids.New(),
		ScheduledCallID:     sc.ID,
		ProviderCallSID:     "CA999",
		Status:              models.PhoneCallInitiated,
		Prompts:             []models.PromptSnapshot{{PromptID: "p1", PromptText: "q1"}},
		InitiatedAt:         clk.Now(),
	}
	if err := st.CreatePhoneCall(context.Background(), pc); err != nil {
		t.Fatalf("CreatePhoneCall: %v", err)
	}

	rr := postForm(t, h.Status, url.Values{"CallSid": {"CA999"}, "CallStatus": {"no-answer"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	gotSC, err := st.GetScheduledCall(context.Background(), sc.ID)
	if err != nil {
		t.Fatalf("GetScheduledCall: %v", err)
	}
	if gotSC.AttemptCount != 1 {
		t.Fatalf("expected AttemptCount 1 after early hangup, got %d", gotSC.AttemptCount)
	}
	if gotSC.Status != models.ScheduledCallPending {
		t.Fatalf("expected retry to re-PEND the scheduled call, got %s", gotSC.Status)
	}
}
