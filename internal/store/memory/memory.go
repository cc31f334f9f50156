// Package memory is an in-process store.Store used by component tests that
// need persistence as a dependency, not as the system under test. Modeled
// on haasonsaas-nexus's jobs.MemoryStore: maps guarded by one mutex,
// defensive copies in and out.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agentplexus/reflectcall/internal/apperr"
	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/store"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.Mutex

	profiles   map[string]models.Profile
	windows    map[string]models.CallWindow // keyed by window ID
	prompts    map[string][]models.PromptTemplate
	dayModes   map[string]models.DayMode // keyed by userID+"|"+date
	scheduled  map[string]models.ScheduledCall
	sessions   map[string]models.ReflectionSession
	responses  map[string][]models.PromptResponse // keyed by sessionID
	phoneCalls map[string]models.PhoneCall
	entries    map[string]models.JournalEntry
}

// New returns an empty memory store, ready to use and to seed via the
// Seed* helpers below.
func New() *Store {
	return &Store{
		profiles:   make(map[string]models.Profile),
		windows:    make(map[string]models.CallWindow),
		prompts:    make(map[string][]models.PromptTemplate),
		dayModes:   make(map[string]models.DayMode),
		scheduled:  make(map[string]models.ScheduledCall),
		sessions:   make(map[string]models.ReflectionSession),
		responses:  make(map[string][]models.PromptResponse),
		phoneCalls: make(map[string]models.PhoneCall),
		entries:    make(map[string]models.JournalEntry),
	}
}

func (s *Store) Close() error { return nil }

// ---- seeding helpers (test-only, not part of store.Store) ----

func (s *Store) SeedProfile(p models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
}

func (s *Store) SeedPrompts(userID string, prompts []models.PromptTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]models.PromptTemplate, len(prompts))
	copy(cp, prompts)
	s.prompts[userID] = cp
}

func (s *Store) SeedDayMode(dm models.DayMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dayModes[dm.UserID+"|"+dm.Date] = dm
}

// ---- Profiles ----

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListUsersWithWindows(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, w := range s.windows {
		if !seen[w.UserID] {
			seen[w.UserID] = true
			out = append(out, w.UserID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ---- PromptTemplates ----

func (s *Store) ActivePrompts(ctx context.Context, userID string) ([]models.PromptTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PromptTemplate
	for _, pt := range s.prompts[userID] {
		if pt.Active {
			out = append(out, pt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// ---- CallWindows ----

func (s *Store) RecurringWindows(ctx context.Context, userID string, day time.Weekday) ([]models.CallWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CallWindow
	for _, w := range s.windows {
		if w.UserID == userID && w.Variant == models.WindowRecurring && w.DayOfWeek == models.DayOfWeek(day) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) OneOffWindows(ctx context.Context, userID string, date string) ([]models.CallWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CallWindow
	for _, w := range s.windows {
		if w.UserID == userID && w.Variant == models.WindowOneOff && w.Date == date {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Store) CreateCallWindow(ctx context.Context, w *models.CallWindow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.windows {
		if existing.UserID != w.UserID || existing.StartTime != w.StartTime {
			continue
		}
		if w.Variant == models.WindowRecurring && existing.Variant == models.WindowRecurring && existing.DayOfWeek == w.DayOfWeek {
			return apperr.Uniquenessf("memory.CreateCallWindow", errAlreadyExists)
		}
		if w.Variant == models.WindowOneOff && existing.Variant == models.WindowOneOff && existing.Date == w.Date {
			return apperr.Uniquenessf("memory.CreateCallWindow", errAlreadyExists)
		}
	}
	s.windows[w.ID] = *w
	return nil
}

// ---- DayModes ----

func (s *Store) GetDayMode(ctx context.Context, userID, date string) (*models.DayMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dm, ok := s.dayModes[userID+"|"+date]; ok {
		return &dm, nil
	}
	return &models.DayMode{UserID: userID, Date: date, UseRecurring: true}, nil
}

// ---- ScheduledCalls ----

func (s *Store) CreateScheduledCall(ctx context.Context, sc *models.ScheduledCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scheduled[sc.ID]; ok {
		return apperr.Uniquenessf("memory.CreateScheduledCall", errAlreadyExists)
	}
	s.scheduled[sc.ID] = *sc
	return nil
}

func (s *Store) GetScheduledCall(ctx context.Context, id string) (*models.ScheduledCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scheduled[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sc, nil
}

func (s *Store) HasNonTerminalForSession(ctx context.Context, reflectionSessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range s.scheduled {
		if sc.ReflectionSessionID == reflectionSessionID && !sc.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) HasNonTerminalForUser(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	for _, sc := range s.scheduled {
		if sc.UserID == userID && !sc.Status.IsTerminal() {
			s.mu.Unlock()
			return true, nil
		}
	}
	for _, pc := range s.phoneCalls {
		if pc.UserID == userID && !pc.Status.IsTerminal() {
			s.mu.Unlock()
			return true, nil
		}
	}
	s.mu.Unlock()
	return false, nil
}

func (s *Store) DueScheduledCalls(ctx context.Context, now time.Time, limit int) ([]models.ScheduledCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScheduledCall
	for _, sc := range s.scheduled {
		if sc.Status != models.ScheduledCallPending {
			continue
		}
		if sc.ScheduledFor.After(now) {
			continue
		}
		if sc.NextAttemptAt != nil && sc.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CASScheduledCallStatus(ctx context.Context, id string, from, to models.ScheduledCallStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scheduled[id]
	if !ok || sc.Status != from {
		return false, nil
	}
	sc.Status = to
	s.scheduled[id] = sc
	return true, nil
}

func (s *Store) UpdateScheduledCallRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt *time.Time, status models.ScheduledCallStatus, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scheduled[id]
	if !ok {
		return store.ErrNotFound
	}
	sc.AttemptCount = attemptCount
	sc.NextAttemptAt = nextAttemptAt
	sc.Status = status
	sc.LastError = lastError
	s.scheduled[id] = sc
	return nil
}

func (s *Store) SetScheduledCallStatus(ctx context.Context, id string, status models.ScheduledCallStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scheduled[id]
	if !ok {
		return store.ErrNotFound
	}
	sc.Status = status
	s.scheduled[id] = sc
	return nil
}

// ---- ReflectionSessions ----

func (s *Store) CreateReflectionSession(ctx context.Context, sess *models.ReflectionSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return apperr.Uniquenessf("memory.CreateReflectionSession", errAlreadyExists)
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) GetReflectionSession(ctx context.Context, id string) (*models.ReflectionSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) HasInProgressForUser(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Status == models.SessionInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdatePrompts(ctx context.Context, id string, prompts []models.PromptSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if sess.Status != models.SessionInProgress {
		return apperr.Preconditionf("memory.UpdatePrompts", "session %s is not IN_PROGRESS", id)
	}
	sess.Prompts = append([]models.PromptSnapshot(nil), prompts...)
	s.sessions[id] = sess
	return nil
}

func (s *Store) SetRating(ctx context.Context, id string, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	r := rating
	sess.Rating = &r
	s.sessions[id] = sess
	return nil
}

func (s *Store) SetRecordingURL(ctx context.Context, id string, ciphertext string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.RecordingURL = ciphertext
	s.sessions[id] = sess
	return nil
}

func (s *Store) FinishSession(ctx context.Context, id string, status models.ReflectionSessionStatus, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	sess.Status = status
	t := endedAt
	sess.EndedAt = &t
	s.sessions[id] = sess
	return nil
}

// ---- PromptResponses ----

func (s *Store) AppendPromptResponse(ctx context.Context, r *models.PromptResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.responses[r.SessionID]
	expected := len(existing) + 1
	if r.Position != expected {
		return apperr.Preconditionf("memory.AppendPromptResponse", "position %d is not contiguous (expected %d)", r.Position, expected)
	}
	s.responses[r.SessionID] = append(existing, *r)
	return nil
}

func (s *Store) ListPromptResponses(ctx context.Context, sessionID string) ([]models.PromptResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PromptResponse, len(s.responses[sessionID]))
	copy(out, s.responses[sessionID])
	return out, nil
}

// ---- PhoneCalls ----

func (s *Store) CreatePhoneCall(ctx context.Context, pc *models.PhoneCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.phoneCalls[pc.ID]; ok {
		return apperr.Uniquenessf("memory.CreatePhoneCall", errAlreadyExists)
	}
	s.phoneCalls[pc.ID] = *pc
	return nil
}

func (s *Store) GetPhoneCall(ctx context.Context, id string) (*models.PhoneCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.phoneCalls[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &pc, nil
}

func (s *Store) GetPhoneCallBySID(ctx context.Context, providerCallSID string) (*models.PhoneCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pc := range s.phoneCalls {
		if pc.ProviderCallSID == providerCallSID {
			return &pc, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) SetProviderCallSID(ctx context.Context, id, providerCallSID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.phoneCalls[id]
	if !ok {
		return store.ErrNotFound
	}
	if pc.ProviderCallSID != "" {
		return apperr.Preconditionf("memory.SetProviderCallSID", "phone call %s already has a provider_call_sid assigned", id)
	}
	pc.ProviderCallSID = providerCallSID
	s.phoneCalls[id] = pc
	return nil
}

func (s *Store) HasNonTerminalPhoneCallForUser(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pc := range s.phoneCalls {
		if pc.UserID == userID && !pc.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CASPhoneCallStatus(ctx context.Context, id string, from, to models.PhoneCallStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.phoneCalls[id]
	if !ok || pc.Status != from {
		return false, nil
	}
	pc.Status = to
	s.phoneCalls[id] = pc
	return true, nil
}

func (s *Store) SetPhoneCallConnected(ctx context.Context, id string, connectedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.phoneCalls[id]
	if !ok {
		return store.ErrNotFound
	}
	pc.Status = models.PhoneCallConnected
	t := connectedAt
	pc.ConnectedAt = &t
	s.phoneCalls[id] = pc
	return nil
}

func (s *Store) SetPhoneCallEnded(ctx context.Context, id string, status models.PhoneCallStatus, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.phoneCalls[id]
	if !ok {
		return store.ErrNotFound
	}
	pc.Status = status
	t := endedAt
	pc.EndedAt = &t
	s.phoneCalls[id] = pc
	return nil
}

func (s *Store) AdvancePrompt(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.phoneCalls[id]
	if !ok {
		return store.ErrNotFound
	}
	pc.CurrentPromptIndex++
	pc.CurrentResponseBuffer = ""
	s.phoneCalls[id] = pc
	return nil
}

func (s *Store) AppendToBuffer(ctx context.Context, id string, text string, speechTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.phoneCalls[id]
	if !ok {
		return store.ErrNotFound
	}
	if pc.CurrentResponseBuffer == "" {
		pc.CurrentResponseBuffer = text
	} else {
		pc.CurrentResponseBuffer += " " + text
	}
	pc.LastSpeechTime = speechTime
	s.phoneCalls[id] = pc
	return nil
}

func (s *Store) TouchLastSpeechTime(ctx context.Context, id string, speechTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.phoneCalls[id]
	if !ok {
		return store.ErrNotFound
	}
	pc.LastSpeechTime = speechTime
	s.phoneCalls[id] = pc
	return nil
}

// ---- JournalEntries ----

func (s *Store) CreateJournalEntry(ctx context.Context, e *models.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := e.UserID + "|" + e.LocalDate
	for _, existing := range s.entries {
		if existing.UserID == e.UserID && existing.LocalDate == e.LocalDate {
			if existing.ReflectionSessionID == e.ReflectionSessionID {
				return nil // idempotent retry
			}
			return apperr.Uniquenessf("memory.CreateJournalEntry", errAlreadyExists)
		}
	}
	_ = key
	s.entries[e.ID] = *e
	return nil
}

func (s *Store) GetJournalEntryByDate(ctx context.Context, userID, localDate string) (*models.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.UserID == userID && e.LocalDate == localDate {
			return &e, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) DeleteJournalEntry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

var errAlreadyExists = &staticErr{"already exists"}

type staticErr struct{ s string }

func (e *staticErr) Error() string { return e.s }
