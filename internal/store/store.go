// Package store defines the persistence contract for the reflection
// journaling core (spec §4.2). Two real backends satisfy it —
// internal/store/postgres (lib/pq, production) and internal/store/sqlite
// (modernc.org/sqlite, embedded dev/test) — plus internal/store/memory for
// fast unit tests of components that merely depend on persistence.
//
// Every write either succeeds or returns a typed error from internal/apperr;
// nothing is silently dropped. Compare-and-set methods return
// (applied bool, err error): applied is false, err is nil when another
// writer won the race — that is success for the loser, not failure.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/agentplexus/reflectcall/internal/models"
)

// ErrNotFound is returned by Get-style lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// Store aggregates every collection's persistence operations.
type Store interface {
	Profiles
	PromptTemplates
	CallWindows
	DayModes
	ScheduledCalls
	ReflectionSessions
	PromptResponses
	PhoneCalls
	JournalEntries

	// Close releases underlying connections/resources.
	Close() error
}

// Profiles reads user calling preferences (owned/written externally; the
// core only reads).
type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	// ListUsersWithWindows returns the distinct user IDs that have at least
	// one CallWindow, for the Window Materializer's per-user sweep (§4.5).
	ListUsersWithWindows(ctx context.Context) ([]string, error)
}

// PromptTemplates reads a user's active prompt set (owned externally).
type PromptTemplates interface {
	ActivePrompts(ctx context.Context, userID string) ([]models.PromptTemplate, error)
}

// CallWindows manages availability windows.
type CallWindows interface {
	RecurringWindows(ctx context.Context, userID string, day time.Weekday) ([]models.CallWindow, error)
	OneOffWindows(ctx context.Context, userID string, date string) ([]models.CallWindow, error)
	CreateCallWindow(ctx context.Context, w *models.CallWindow) error
}

// DayModes resolves which window variant applies on a given date.
type DayModes interface {
	GetDayMode(ctx context.Context, userID, date string) (*models.DayMode, error)
}

// ScheduledCalls manages materialized/dispatched calls.
type ScheduledCalls interface {
	CreateScheduledCall(ctx context.Context, sc *models.ScheduledCall) error
	GetScheduledCall(ctx context.Context, id string) (*models.ScheduledCall, error)
	// HasNonTerminalForSession reports whether reflectionSessionID already
	// has a non-terminal ScheduledCall (enforces the "at most one
	// non-terminal ScheduledCall per session" invariant).
	HasNonTerminalForSession(ctx context.Context, reflectionSessionID string) (bool, error)
	// HasNonTerminalForUser reports whether userID has any non-terminal
	// ScheduledCall or PhoneCall, used by the Window Materializer's skip
	// check (§4.5).
	HasNonTerminalForUser(ctx context.Context, userID string) (bool, error)
	// DueScheduledCalls lists PENDING calls ready to dispatch (§4.6 step 1).
	DueScheduledCalls(ctx context.Context, now time.Time, limit int) ([]models.ScheduledCall, error)
	// CASScheduledCallStatus performs status: from -> to conditioned on the
	// current value, the only concurrency lock between dispatchers (§4.6).
	CASScheduledCallStatus(ctx context.Context, id string, from, to models.ScheduledCallStatus) (bool, error)
	// UpdateScheduledCallRetry records a failed attempt and either
	// schedules the next retry or marks the call FAILED.
	UpdateScheduledCallRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt *time.Time, status models.ScheduledCallStatus, lastError string) error
	// SetScheduledCallStatus unconditionally sets status (used once the
	// caller already holds the CAS-won row, or for terminal finalization).
	SetScheduledCallStatus(ctx context.Context, id string, status models.ScheduledCallStatus) error
}

// ReflectionSessions manages the transient session record.
type ReflectionSessions interface {
	CreateReflectionSession(ctx context.Context, s *models.ReflectionSession) error
	GetReflectionSession(ctx context.Context, id string) (*models.ReflectionSession, error)
	// HasInProgressForUser enforces "at most one IN_PROGRESS session per user" (P2).
	HasInProgressForUser(ctx context.Context, userID string) (bool, error)
	// UpdatePrompts overwrites the prompts field; only legal while IN_PROGRESS.
	UpdatePrompts(ctx context.Context, id string, prompts []models.PromptSnapshot) error
	SetRating(ctx context.Context, id string, rating int) error
	SetRecordingURL(ctx context.Context, id string, ciphertext string) error
	// FinishSession flips status (COMPLETED or ABANDONED) and stamps endedAt.
	FinishSession(ctx context.Context, id string, status models.ReflectionSessionStatus, endedAt time.Time) error
}

// PromptResponses manages recorded answers.
type PromptResponses interface {
	// AppendPromptResponse inserts a response; position must be the next
	// contiguous position for the session or the store rejects it (P4).
	AppendPromptResponse(ctx context.Context, r *models.PromptResponse) error
	ListPromptResponses(ctx context.Context, sessionID string) ([]models.PromptResponse, error)
}

// PhoneCalls manages per-call runtime state.
type PhoneCalls interface {
	CreatePhoneCall(ctx context.Context, pc *models.PhoneCall) error
	GetPhoneCall(ctx context.Context, id string) (*models.PhoneCall, error)
	GetPhoneCallBySID(ctx context.Context, providerCallSID string) (*models.PhoneCall, error)
	// SetProviderCallSID assigns the SID exactly once (P9); returns an
	// apperr.Precondition error if the row already has a SID assigned.
	SetProviderCallSID(ctx context.Context, id, providerCallSID string) error
	// HasNonTerminalPhoneCallForUser enforces "at most one non-terminal PhoneCall per user" (P1).
	HasNonTerminalPhoneCallForUser(ctx context.Context, userID string) (bool, error)
	// CASPhoneCallStatus sets status to `to` only if it currently equals
	// `from`. It does not itself reject a terminal `from`; callers validate
	// the move with callstate.Transition, which refuses to leave one.
	CASPhoneCallStatus(ctx context.Context, id string, from, to models.PhoneCallStatus) (bool, error)
	SetPhoneCallConnected(ctx context.Context, id string, connectedAt time.Time) error
	SetPhoneCallEnded(ctx context.Context, id string, status models.PhoneCallStatus, endedAt time.Time) error
	// AdvancePrompt increments CurrentPromptIndex by exactly 1 and clears
	// the response buffer.
	AdvancePrompt(ctx context.Context, id string) error
	AppendToBuffer(ctx context.Context, id string, text string, speechTime time.Time) error
	TouchLastSpeechTime(ctx context.Context, id string, speechTime time.Time) error
}

// JournalEntries manages immutable journal output.
type JournalEntries interface {
	// CreateJournalEntry inserts a new entry. If one already exists for
	// (userID, localDate) from the same ReflectionSession, the call is an
	// idempotent success and returns nil (§8's round-trip law); an entry
	// from another session makes it return an apperr.Uniqueness error.
	CreateJournalEntry(ctx context.Context, e *models.JournalEntry) error
	GetJournalEntryByDate(ctx context.Context, userID, localDate string) (*models.JournalEntry, error)
	// DeleteJournalEntry cascades to response snapshots only, never to the
	// underlying ReflectionSession (P8).
	DeleteJournalEntry(ctx context.Context, id string) error
}
