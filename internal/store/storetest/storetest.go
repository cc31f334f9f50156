// Package storetest is the shared conformance suite for store.Store
// backends (spec §4.2). Run exercises every backend identically through
// the interface alone so internal/store/memory, internal/store/sqlite,
// and internal/store/postgres are all held to the same contract.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/agentplexus/reflectcall/internal/ids"
	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/store"
)

// Run exercises st against the store.Store contract, except GetProfile and
// ActivePrompts, which the suite does not call. Callers own
// opening/closing st; Run never closes it.
func Run(t *testing.T, st store.Store) {
	t.Helper()
	t.Run("ScheduledCallLifecycle", func(t *testing.T) { testScheduledCallLifecycle(t, st) })
	t.Run("ReflectionSessionLifecycle", func(t *testing.T) { testReflectionSessionLifecycle(t, st) })
	t.Run("PromptResponseContiguity", func(t *testing.T) { testPromptResponseContiguity(t, st) })
	t.Run("PhoneCallLifecycle", func(t *testing.T) { testPhoneCallLifecycle(t, st) })
	t.Run("JournalEntryIdempotence", func(t *testing.T) { testJournalEntryIdempotence(t, st) })
	t.Run("CallWindowsAndDayModes", func(t *testing.T) { testCallWindowsAndDayModes(t, st) })
}

func testScheduledCallLifecycle(t *testing.T, st store.Store) {
	ctx := context.Background()
	userID := "user-" + ids.New()
	sessionID := "sess-" + ids.New()
	now := time.Now().UTC().Truncate(time.Second)

	sc := &models.ScheduledCall{
		ID:                  ids.New(),
		UserID:              userID,
		ReflectionSessionID: sessionID,
		PhoneNumber:         "+15551234567",
		ScheduledFor:        now,
		Status:              models.ScheduledCallPending,
		AttemptCount:        0,
		MaxRetries:          3,
	}
	if err := st.CreateScheduledCall(ctx, sc); err != nil {
		t.Fatalf("CreateScheduledCall: %v", err)
	}

	got, err := st.GetScheduledCall(ctx, sc.ID)
	if err != nil {
		t.Fatalf("GetScheduledCall: %v", err)
	}
	if got.PhoneNumber != sc.PhoneNumber || got.Status != models.ScheduledCallPending {
		t.Fatalf("GetScheduledCall mismatch: %+v", got)
	}

	has, err := st.HasNonTerminalForUser(ctx, userID)
	if err != nil {
		t.Fatalf("HasNonTerminalForUser: %v", err)
	}
	if !has {
		t.Fatalf("expected HasNonTerminalForUser true for pending call")
	}
	has, err = st.HasNonTerminalForSession(ctx, sessionID)
	if err != nil {
		t.Fatalf("HasNonTerminalForSession: %v", err)
	}
	if !has {
		t.Fatalf("expected HasNonTerminalForSession true")
	}

	due, err := st.DueScheduledCalls(ctx, now.Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("DueScheduledCalls: %v", err)
	}
	found := false
	for _, d := range due {
		if d.ID == sc.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected DueScheduledCalls to include %s", sc.ID)
	}

	applied, err := st.CASScheduledCallStatus(ctx, sc.ID, models.ScheduledCallPending, models.ScheduledCallInProgress)
	if err != nil {
		t.Fatalf("CASScheduledCallStatus: %v", err)
	}
	if !applied {
		t.Fatalf("expected first CAS to apply")
	}
	applied, err = st.CASScheduledCallStatus(ctx, sc.ID, models.ScheduledCallPending, models.ScheduledCallInProgress)
	if err != nil {
		t.Fatalf("CASScheduledCallStatus (race loser): %v", err)
	}
	if applied {
		t.Fatalf("expected race-loser CAS to not apply")
	}

	next := now.Add(5 * time.Minute)
	if err := st.UpdateScheduledCallRetry(ctx, sc.ID, 1, &next, models.ScheduledCallPending, "no-answer"); err != nil {
		t.Fatalf("UpdateScheduledCallRetry: %v", err)
	}
	got, err = st.GetScheduledCall(ctx, sc.ID)
	if err != nil {
		t.Fatalf("GetScheduledCall after retry: %v", err)
	}
	if got.AttemptCount != 1 || got.Status != models.ScheduledCallPending || got.LastError != "no-answer" {
		t.Fatalf("retry bookkeeping mismatch: %+v", got)
	}
	if got.NextAttemptAt == nil || !got.NextAttemptAt.Equal(next) {
		t.Fatalf("expected next attempt at %v, got %v", next, got.NextAttemptAt)
	}

	if err := st.SetScheduledCallStatus(ctx, sc.ID, models.ScheduledCallFailed); err != nil {
		t.Fatalf("SetScheduledCallStatus: %v", err)
	}
	got, err = st.GetScheduledCall(ctx, sc.ID)
	if err != nil {
		t.Fatalf("GetScheduledCall after terminal: %v", err)
	}
	if got.Status != models.ScheduledCallFailed {
		t.Fatalf("expected FAILED, got %s", got.Status)
	}

	if _, err := st.GetScheduledCall(ctx, "missing-"+ids.New()); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testReflectionSessionLifecycle(t *testing.T, st store.Store) {
	ctx := context.Background()
	userID := "user-" + ids.New()
	now := time.Now().UTC().Truncate(time.Second)

	sess := &models.ReflectionSession{
		ID:     ids.New(),
		UserID: userID,
		Method: models.MethodPhone,
		Status: models.SessionInProgress,
		Prompts: []models.PromptSnapshot{
			{PromptID: "p1", PromptText: "How was today?"},
		},
		StartedAt: now,
	}
	if err := st.CreateReflectionSession(ctx, sess); err != nil {
		t.Fatalf("CreateReflectionSession: %v", err)
	}

	has, err := st.HasInProgressForUser(ctx, userID)
	if err != nil {
		t.Fatalf("HasInProgressForUser: %v", err)
	}
	if !has {
		t.Fatalf("expected in-progress session to be found")
	}

	newPrompts := []models.PromptSnapshot{
		{PromptID: "p1", PromptText: "How was today?"},
		{PromptID: "rating", PromptText: "Rate your day", IsRatingPrompt: true},
	}
	if err := st.UpdatePrompts(ctx, sess.ID, newPrompts); err != nil {
		t.Fatalf("UpdatePrompts: %v", err)
	}
	got, err := st.GetReflectionSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetReflectionSession: %v", err)
	}
	if len(got.Prompts) != 2 {
		t.Fatalf("expected 2 prompts after update, got %d", len(got.Prompts))
	}

	if err := st.SetRating(ctx, sess.ID, 4); err != nil {
		t.Fatalf("SetRating: %v", err)
	}
	if err := st.SetRecordingURL(ctx, sess.ID, "ciphertext"); err != nil {
		t.Fatalf("SetRecordingURL: %v", err)
	}
	endedAt := now.Add(10 * time.Minute)
	if err := st.FinishSession(ctx, sess.ID, models.SessionCompleted, endedAt); err != nil {
		t.Fatalf("FinishSession: %v", err)
	}

	got, err = st.GetReflectionSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetReflectionSession after finish: %v", err)
	}
	if got.Status != models.SessionCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}
	if got.Rating == nil || *got.Rating != 4 {
		t.Fatalf("expected rating 4, got %v", got.Rating)
	}
	if got.RecordingURL != "ciphertext" {
		t.Fatalf("expected recording url set, got %q", got.RecordingURL)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(endedAt) {
		t.Fatalf("expected ended at %v, got %v", endedAt, got.EndedAt)
	}

	// UpdatePrompts is only legal while IN_PROGRESS; the session is now
	// COMPLETED, so this must fail.
	if err := st.UpdatePrompts(ctx, sess.ID, newPrompts); err == nil {
		t.Fatalf("expected UpdatePrompts to fail on a finished session")
	}

	has, err = st.HasInProgressForUser(ctx, userID)
	if err != nil {
		t.Fatalf("HasInProgressForUser after finish: %v", err)
	}
	if has {
		t.Fatalf("expected no in-progress session after finish")
	}
}

func testPromptResponseContiguity(t *testing.T, st store.Store) {
	ctx := context.Background()
	sessionID := "sess-" + ids.New()
	now := time.Now().UTC().Truncate(time.Second)

	r1 := &models.PromptResponse{
		SessionID: sessionID, PromptID: "p1", PromptText: "q1", Position: 1,
		ResponseText: "a1", ResponseStarted: now, ResponseFinished: now.Add(time.Second),
	}
	if err := st.AppendPromptResponse(ctx, r1); err != nil {
		t.Fatalf("AppendPromptResponse position 1: %v", err)
	}

	// Out-of-order position must be rejected (P4).
	bad := &models.PromptResponse{SessionID: sessionID, PromptID: "p3", Position: 3, ResponseStarted: now, ResponseFinished: now}
	if err := st.AppendPromptResponse(ctx, bad); err == nil {
		t.Fatalf("expected non-contiguous position to be rejected")
	}

	r2 := &models.PromptResponse{
		SessionID: sessionID, PromptID: "p2", PromptText: "q2", Position: 2,
		ResponseText: "a2", ResponseStarted: now, ResponseFinished: now.Add(2 * time.Second),
	}
	if err := st.AppendPromptResponse(ctx, r2); err != nil {
		t.Fatalf("AppendPromptResponse position 2: %v", err)
	}

	list, err := st.ListPromptResponses(ctx, sessionID)
	if err != nil {
		t.Fatalf("ListPromptResponses: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(list))
	}
	if list[0].Position != 1 || list[1].Position != 2 {
		t.Fatalf("expected responses in position order, got %+v", list)
	}
}

func testPhoneCallLifecycle(t *testing.T, st store.Store) {
	ctx := context.Background()
	userID := "user-" + ids.New()
	now := time.Now().UTC().Truncate(time.Second)

	pc := &models.PhoneCall{
		ID:                  ids.New(),
		UserID:              userID,
		ReflectionSessionID: "sess-" + ids.New(),
		Status:              models.PhoneCallInitiated,
		Prompts:             []models.PromptSnapshot{{PromptID: "p1", PromptText: "q1"}},
		InitiatedAt:         now,
	}
	if err := st.CreatePhoneCall(ctx, pc); err != nil {
		t.Fatalf("CreatePhoneCall: %v", err)
	}

	has, err := st.HasNonTerminalPhoneCallForUser(ctx, userID)
	if err != nil {
		t.Fatalf("HasNonTerminalPhoneCallForUser: %v", err)
	}
	if !has {
		t.Fatalf("expected non-terminal phone call to be found")
	}

	sid := "CA" + ids.New()
	if err := st.SetProviderCallSID(ctx, pc.ID, sid); err != nil {
		t.Fatalf("SetProviderCallSID: %v", err)
	}
	// P9: assigning a second SID must fail.
	if err := st.SetProviderCallSID(ctx, pc.ID, "CA-other"); err == nil {
		t.Fatalf("expected second SetProviderCallSID to fail")
	}

	got, err := st.GetPhoneCallBySID(ctx, sid)
	if err != nil {
		t.Fatalf("GetPhoneCallBySID: %v", err)
	}
	if got.ID != pc.ID {
		t.Fatalf("expected GetPhoneCallBySID to find %s, got %s", pc.ID, got.ID)
	}

	applied, err := st.CASPhoneCallStatus(ctx, pc.ID, models.PhoneCallInitiated, models.PhoneCallConnected)
	if err != nil {
		t.Fatalf("CASPhoneCallStatus: %v", err)
	}
	if !applied {
		t.Fatalf("expected CAS to apply")
	}
	if err := st.SetPhoneCallConnected(ctx, pc.ID, now); err != nil {
		t.Fatalf("SetPhoneCallConnected: %v", err)
	}

	if err := st.AdvancePrompt(ctx, pc.ID); err != nil {
		t.Fatalf("AdvancePrompt: %v", err)
	}
	if err := st.AppendToBuffer(ctx, pc.ID, "hello", now); err != nil {
		t.Fatalf("AppendToBuffer: %v", err)
	}
	if err := st.AppendToBuffer(ctx, pc.ID, "world", now.Add(time.Second)); err != nil {
		t.Fatalf("AppendToBuffer (second): %v", err)
	}
	if err := st.TouchLastSpeechTime(ctx, pc.ID, now.Add(2*time.Second)); err != nil {
		t.Fatalf("TouchLastSpeechTime: %v", err)
	}

	got, err = st.GetPhoneCall(ctx, pc.ID)
	if err != nil {
		t.Fatalf("GetPhoneCall: %v", err)
	}
	if got.CurrentPromptIndex != 1 {
		t.Fatalf("expected CurrentPromptIndex 1, got %d", got.CurrentPromptIndex)
	}
	if got.CurrentResponseBuffer != "hello world" {
		t.Fatalf("expected buffer 'hello world', got %q", got.CurrentResponseBuffer)
	}

	endedAt := now.Add(time.Minute)
	if err := st.SetPhoneCallEnded(ctx, pc.ID, models.PhoneCallCompleted, endedAt); err != nil {
		t.Fatalf("SetPhoneCallEnded: %v", err)
	}
	got, err = st.GetPhoneCall(ctx, pc.ID)
	if err != nil {
		t.Fatalf("GetPhoneCall after ended: %v", err)
	}
	if got.Status != models.PhoneCallCompleted || got.EndedAt == nil {
		t.Fatalf("expected terminal phone call, got %+v", got)
	}

	has, err = st.HasNonTerminalPhoneCallForUser(ctx, userID)
	if err != nil {
		t.Fatalf("HasNonTerminalPhoneCallForUser after completion: %v", err)
	}
	if has {
		t.Fatalf("expected no non-terminal phone call after completion")
	}
}

func testJournalEntryIdempotence(t *testing.T, st store.Store) {
	ctx := context.Background()
	userID := "user-" + ids.New()
	sessionID := "sess-" + ids.New()
	localDate := "2026-07-31"
	now := time.Now().UTC().Truncate(time.Second)
	rating := 5

	entry := &models.JournalEntry{
		ID:                  ids.New(),
		UserID:              userID,
		ReflectionSessionID: sessionID,
		LocalDate:           localDate,
		Rating:              &rating,
		Responses: []models.PromptResponse{
			{SessionID: sessionID, PromptID: "p1", PromptText: "q1", Position: 1, ResponseText: "a1", ResponseStarted: now, ResponseFinished: now},
		},
		CreatedAt: now,
	}
	if err := st.CreateJournalEntry(ctx, entry); err != nil {
		t.Fatalf("CreateJournalEntry: %v", err)
	}

	// A retry with the same (userID, sessionID, localDate) identity is
	// idempotent success, not a uniqueness error (spec §8 round-trip law).
	retry := *entry
	retry.ID = ids.New()
	if err := st.CreateJournalEntry(ctx, &retry); err != nil {
		t.Fatalf("expected idempotent retry to succeed, got %v", err)
	}

	got, err := st.GetJournalEntryByDate(ctx, userID, localDate)
	if err != nil {
		t.Fatalf("GetJournalEntryByDate: %v", err)
	}
	if got.UserID != userID || *got.Rating != rating {
		t.Fatalf("GetJournalEntryByDate mismatch: %+v", got)
	}
	if len(got.Responses) != 1 || got.Responses[0].ResponseText != "a1" {
		t.Fatalf("expected 1 response snapshot, got %+v", got.Responses)
	}

	if _, err := st.GetJournalEntryByDate(ctx, userID, "2099-01-01"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound for unjournaled date, got %v", err)
	}

	if err := st.DeleteJournalEntry(ctx, got.ID); err != nil {
		t.Fatalf("DeleteJournalEntry: %v", err)
	}
	if _, err := st.GetJournalEntryByDate(ctx, userID, localDate); err != store.ErrNotFound {
		t.Fatalf("expected entry gone after delete, got %v", err)
	}
}

func testCallWindowsAndDayModes(t *testing.T, st store.Store) {
	ctx := context.Background()
	userID := "user-" + ids.New()

	recurring := &models.CallWindow{
		ID:        ids.New(),
		UserID:    userID,
		Variant:   models.WindowRecurring,
		DayOfWeek: models.DayOfWeek(time.Monday),
		StartTime: "08:00",
		EndTime:   "09:00",
	}
	if err := st.CreateCallWindow(ctx, recurring); err != nil {
		t.Fatalf("CreateCallWindow (recurring): %v", err)
	}
	oneOff := &models.CallWindow{
		ID:        ids.New(),
		UserID:    userID,
		Variant:   models.WindowOneOff,
		Date:      "2026-08-03",
		StartTime: "18:00",
		EndTime:   "19:00",
	}
	if err := st.CreateCallWindow(ctx, oneOff); err != nil {
		t.Fatalf("CreateCallWindow (one-off): %v", err)
	}

	rec, err := st.RecurringWindows(ctx, userID, time.Monday)
	if err != nil {
		t.Fatalf("RecurringWindows: %v", err)
	}
	if len(rec) != 1 || rec[0].StartTime != "08:00" {
		t.Fatalf("expected 1 recurring window, got %+v", rec)
	}

	oo, err := st.OneOffWindows(ctx, userID, "2026-08-03")
	if err != nil {
		t.Fatalf("OneOffWindows: %v", err)
	}
	if len(oo) != 1 || oo[0].StartTime != "18:00" {
		t.Fatalf("expected 1 one-off window, got %+v", oo)
	}

	users, err := st.ListUsersWithWindows(ctx)
	if err != nil {
		t.Fatalf("ListUsersWithWindows: %v", err)
	}
	found := false
	for _, u := range users {
		if u == userID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s in ListUsersWithWindows, got %v", userID, users)
	}

	// No DayMode row exists yet: default is recurring windows apply.
	dm, err := st.GetDayMode(ctx, userID, "2026-08-04")
	if err != nil {
		t.Fatalf("GetDayMode (default): %v", err)
	}
	if !dm.UseRecurring {
		t.Fatalf("expected default DayMode to use recurring windows")
	}
}
