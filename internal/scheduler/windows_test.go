package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/agentplexus/reflectcall/internal/clock"
	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/store/memory"
)

func seedWindowFixture(t *testing.T, st *memory.Store, day time.Weekday) {
	t.Helper()
	st.SeedProfile(models.Profile{
		UserID:              "u1",
		PhoneNumber:         "+15551230000",
		Timezone:            "UTC",
		MaxRetries:          3,
		IncludeRatingPrompt: true,
	})
	st.SeedPrompts("u1", []models.PromptTemplate{
		{UserID: "u1", PromptID: "p1", PromptText: "How was your day?", Position: 1, Active: true},
	})
	if err := st.CreateCallWindow(context.Background(), &models.CallWindow{
		ID:        "w1",
		UserID:    "u1",
		Variant:   models.WindowRecurring,
		DayOfWeek: models.DayOfWeek(day),
		StartTime: "09:00",
		EndTime:   "10:00",
	}); err != nil {
		t.Fatalf("seed window: %v", err)
	}
}

func TestWindowMaterializerCreatesScheduledCallInsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) // Monday
	fake := clock.NewFake(now)
	st := memory.New()
	seedWindowFixture(t, st, now.Weekday())

	w := NewWindowMaterializer(st, fake, 0, nil)
	w.RunOnce(context.Background())

	nonTerminal, err := st.HasNonTerminalForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check non-terminal: %v", err)
	}
	if !nonTerminal {
		t.Fatal("expected a ScheduledCall to be materialized while inside the window")
	}
}

func TestWindowMaterializerSkipsOutsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC) // Monday, well past the window
	fake := clock.NewFake(now)
	st := memory.New()
	seedWindowFixture(t, st, now.Weekday())

	w := NewWindowMaterializer(st, fake, 0, nil)
	w.RunOnce(context.Background())

	nonTerminal, err := st.HasNonTerminalForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check non-terminal: %v", err)
	}
	if nonTerminal {
		t.Fatal("expected no ScheduledCall outside the window")
	}
}

func TestWindowMaterializerSkipsUserWithNonTerminalCall(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	fake := clock.NewFake(now)
	st := memory.New()
	seedWindowFixture(t, st, now.Weekday())

	existing := &models.ReflectionSession{ID: "existing-sess", UserID: "u1", Status: models.SessionInProgress, Method: models.MethodPhone}
	if err := st.CreateReflectionSession(context.Background(), existing); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := st.CreateScheduledCall(context.Background(), &models.ScheduledCall{
		ID: "existing-sc", UserID: "u1", ReflectionSessionID: "existing-sess",
		Status: models.ScheduledCallPending, ScheduledFor: now,
	}); err != nil {
		t.Fatalf("seed scheduled call: %v", err)
	}

	w := NewWindowMaterializer(st, fake, 0, nil)
	w.RunOnce(context.Background())

	if _, err := st.GetScheduledCall(context.Background(), "existing-sc"); err != nil {
		t.Fatalf("expected existing scheduled call to remain: %v", err)
	}
	nonTerminal, err := st.HasNonTerminalForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check non-terminal: %v", err)
	}
	if !nonTerminal {
		t.Fatal("expected the pre-existing non-terminal call to still be present")
	}
}

func TestWindowMaterializerSkipsUserAlreadyJournaledToday(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	fake := clock.NewFake(now)
	st := memory.New()
	seedWindowFixture(t, st, now.Weekday())

	if err := st.CreateJournalEntry(context.Background(), &models.JournalEntry{
		ID: "entry1", UserID: "u1", LocalDate: "2026-03-02", ReflectionSessionID: "sess-x", CreatedAt: now,
	}); err != nil {
		t.Fatalf("seed journal entry: %v", err)
	}

	w := NewWindowMaterializer(st, fake, 0, nil)
	w.RunOnce(context.Background())

	nonTerminal, err := st.HasNonTerminalForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check non-terminal: %v", err)
	}
	if nonTerminal {
		t.Fatal("expected no ScheduledCall once a journal entry already exists for today")
	}
}
