package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/agentplexus/reflectcall/internal/adapters/telephony"
	"github.com/agentplexus/reflectcall/internal/clock"
	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/store/memory"
)

func seededDispatchFixture(t *testing.T, now time.Time) (*memory.Store, *models.ScheduledCall) {
	t.Helper()
	st := memory.New()
	st.SeedProfile(models.Profile{UserID: "u1", PhoneNumber: "+15551230000", Timezone: "America/New_York", MaxRetries: 2})
	st.SeedPrompts("u1", []models.PromptTemplate{
		{UserID: "u1", PromptID: "p1", PromptText: "How was your day?", Position: 1, Active: true},
	})

	sess := &models.ReflectionSession{
		ID:      "sess1",
		UserID:  "u1",
		Method:  models.MethodPhone,
		Status:  models.SessionInProgress,
		Prompts: []models.PromptSnapshot{{PromptID: "p1", PromptText: "How was your day?"}},
	}
	if err := st.CreateReflectionSession(context.Background(), sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	sc := &models.ScheduledCall{
		ID:                  "sc1",
		UserID:              "u1",
		ReflectionSessionID: "sess1",
		PhoneNumber:         "+15551230000",
		ScheduledFor:        now.Add(-1 * time.Minute),
		Status:              models.ScheduledCallPending,
		MaxRetries:          2,
	}
	if err := st.CreateScheduledCall(context.Background(), sc); err != nil {
		t.Fatalf("seed scheduled call: %v", err)
	}
	return st, sc
}

func TestDispatchWorkerPlacesCallOnSuccess(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	st, sc := seededDispatchFixture(t, fake.Now())
	tel := telephony.NewMock()

	w := NewDispatchWorker(st, tel, fake, DispatchConfig{FromE164: "+15550000000"}, 0, nil)
	w.RunOnce(context.Background())

	updated, err := st.GetScheduledCall(context.Background(), sc.ID)
	if err != nil {
		t.Fatalf("get scheduled call: %v", err)
	}
	if updated.Status != models.ScheduledCallInProgress {
		t.Errorf("expected scheduled call IN_PROGRESS after claim, got %s", updated.Status)
	}
	if len(tel.PlacedCalls()) != 1 {
		t.Fatalf("expected exactly one PlaceCall, got %d", len(tel.PlacedCalls()))
	}

	phoneCall, err := st.GetPhoneCallBySID(context.Background(), "mock-call-sid-1")
	if err != nil {
		t.Fatalf("expected a phone call keyed by the provider sid: %v", err)
	}
	if phoneCall.ScheduledCallID != sc.ID {
		t.Errorf("expected phone call to link back to scheduled call %s, got %s", sc.ID, phoneCall.ScheduledCallID)
	}
	if phoneCall.Status != models.PhoneCallInitiated {
		t.Errorf("expected phone call status INITIATED, got %s", phoneCall.Status)
	}
}

func TestDispatchWorkerRetriesOnPlaceCallFailure(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	st, sc := seededDispatchFixture(t, fake.Now())
	tel := telephony.NewMock()
	tel.FailNextPlaceCalls(1)

	w := NewDispatchWorker(st, tel, fake, DispatchConfig{FromE164: "+15550000000"}, 0, nil)
	w.RunOnce(context.Background())

	updated, err := st.GetScheduledCall(context.Background(), sc.ID)
	if err != nil {
		t.Fatalf("get scheduled call: %v", err)
	}
	if updated.Status != models.ScheduledCallPending {
		t.Errorf("expected retry to reset status to PENDING, got %s", updated.Status)
	}
	if updated.AttemptCount != 1 {
		t.Errorf("expected attemptCount 1, got %d", updated.AttemptCount)
	}
	if updated.NextAttemptAt == nil {
		t.Fatal("expected nextAttemptAt to be set after a retry")
	}
}

func TestDispatchWorkerFailsTerminallyAfterMaxRetries(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	st, sc := seededDispatchFixture(t, fake.Now())

	tel := telephony.NewMock()
	tel.FailNextPlaceCalls(1)

	// One prior failed attempt already recorded; MaxRetries=2, so this
	// next failure is the terminal one.
	if err := st.UpdateScheduledCallRetry(context.Background(), sc.ID, 1, nil, models.ScheduledCallPending, ""); err != nil {
		t.Fatalf("seed attempt count: %v", err)
	}

	w := NewDispatchWorker(st, tel, fake, DispatchConfig{FromE164: "+15550000000"}, 0, nil)
	w.RunOnce(context.Background())

	updated, err := st.GetScheduledCall(context.Background(), sc.ID)
	if err != nil {
		t.Fatalf("get scheduled call: %v", err)
	}
	if updated.Status != models.ScheduledCallFailed {
		t.Errorf("expected FAILED after exhausting retries, got %s", updated.Status)
	}

	session, err := st.GetReflectionSession(context.Background(), sc.ReflectionSessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Status != models.SessionAbandoned {
		t.Errorf("expected session ABANDONED once its scheduled call fails terminally, got %s", session.Status)
	}
}
