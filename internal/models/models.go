// Package models defines the persisted entities of the reflection-journaling
// core (spec §3). All identifiers are opaque strings assignable before
// insertion (see internal/ids).
package models

import "time"

// ScheduledCallStatus is the lifecycle status of a ScheduledCall.
type ScheduledCallStatus string

const (
	ScheduledCallPending    ScheduledCallStatus = "PENDING"
	ScheduledCallInProgress ScheduledCallStatus = "IN_PROGRESS"
	ScheduledCallCompleted  ScheduledCallStatus = "COMPLETED"
	ScheduledCallFailed     ScheduledCallStatus = "FAILED"
	ScheduledCallCancelled  ScheduledCallStatus = "CANCELLED"
)

// IsTerminal reports whether the status never transitions further.
func (s ScheduledCallStatus) IsTerminal() bool {
	switch s {
	case ScheduledCallCompleted, ScheduledCallFailed, ScheduledCallCancelled:
		return true
	}
	return false
}

// ReflectionMethod is how a ReflectionSession was conducted.
type ReflectionMethod string

const (
	MethodPhone ReflectionMethod = "PHONE"
	MethodText  ReflectionMethod = "TEXT"
)

// ReflectionSessionStatus is the lifecycle status of a ReflectionSession.
type ReflectionSessionStatus string

const (
	SessionInProgress ReflectionSessionStatus = "IN_PROGRESS"
	SessionCompleted  ReflectionSessionStatus = "COMPLETED"
	SessionAbandoned  ReflectionSessionStatus = "ABANDONED"
)

func (s ReflectionSessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionAbandoned
}

// PhoneCallStatus is the lifecycle status of a PhoneCall (spec §4.3).
type PhoneCallStatus string

const (
	PhoneCallInitiated PhoneCallStatus = "INITIATED"
	PhoneCallConnected PhoneCallStatus = "CONNECTED"
	PhoneCallCompleted PhoneCallStatus = "COMPLETED"
	PhoneCallFailed    PhoneCallStatus = "FAILED"
	PhoneCallAbandoned PhoneCallStatus = "ABANDONED"
)

func (s PhoneCallStatus) IsTerminal() bool {
	switch s {
	case PhoneCallCompleted, PhoneCallFailed, PhoneCallAbandoned:
		return true
	}
	return false
}

// DayOfWeek matches Go's time.Weekday numbering (Sunday=0) for direct
// comparison against clock.LocalDayOfWeek.
type DayOfWeek int

const (
	Sunday DayOfWeek = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// Profile supplies per-user call preferences (owned externally; spec §1/§3).
type Profile struct {
	UserID              string
	PhoneNumber         string // E.164
	DisplayName         string
	NamePronunciation   string
	Timezone            string // IANA
	IncludeRatingPrompt bool
	MaxRetries          int
}

// PromptTemplate is one entry of a user's ordered prompt set (owned externally).
type PromptTemplate struct {
	UserID       string
	PromptID     string
	PromptText   string
	Position     int
	Active       bool
	IsRatingPrompt bool
}

// WindowVariant distinguishes a recurring weekly window from a one-off date.
type WindowVariant string

const (
	WindowRecurring WindowVariant = "RECURRING"
	WindowOneOff    WindowVariant = "ONE_OFF"
)

// CallWindow is a user's availability window (spec §3).
type CallWindow struct {
	ID        string
	UserID    string
	Variant   WindowVariant
	DayOfWeek DayOfWeek // valid when Variant == WindowRecurring
	Date      string    // YYYY-MM-DD, valid when Variant == WindowOneOff
	StartTime string    // HH:MM, local to Profile.Timezone
	EndTime   string    // HH:MM, local to Profile.Timezone
}

// DayMode selects which CallWindow variant applies for a user on a given date.
type DayMode struct {
	UserID       string
	Date         string // YYYY-MM-DD
	UseRecurring bool
}

// ScheduledCall is a materialized, not-yet-placed (or in-flight) call.
type ScheduledCall struct {
	ID                  string
	UserID              string
	ReflectionSessionID string
	PhoneNumber         string
	ScheduledFor        time.Time
	Status              ScheduledCallStatus
	AttemptCount        int
	MaxRetries          int
	NextAttemptAt       *time.Time
	LastError           string
}

// PromptSnapshot is one prompt captured onto a ReflectionSession at
// materialization/dispatch time, so later template edits cannot desync an
// in-flight call (spec §4.5/§4.6 "prompt list drift").
type PromptSnapshot struct {
	PromptID       string
	PromptText     string
	IsRatingPrompt bool
}

// ReflectionSession is the transient, mutable record of one reflection.
type ReflectionSession struct {
	ID            string
	UserID        string
	Method        ReflectionMethod
	Status        ReflectionSessionStatus
	Prompts       []PromptSnapshot
	Rating        *int
	StartedAt     time.Time
	EndedAt       *time.Time
	RecordingURL  string // ciphertext, see internal/adapters/crypto
}

// PromptResponse is one recorded answer within a session.
type PromptResponse struct {
	SessionID        string
	PromptID         string
	PromptText       string
	Position         int // 1-based, contiguous (P4)
	ResponseText     string
	ResponseStarted  time.Time
	ResponseFinished time.Time
}

// PhoneCall is the per-call runtime state, the sole source of truth during
// an active call (spec §4.3).
type PhoneCall struct {
	ID                  string
	UserID              string
	ReflectionSessionID string
	ScheduledCallID     string
	ProviderCallSID     string // assigned exactly once (P9)
	Status              PhoneCallStatus
	Prompts             []PromptSnapshot // snapshot, independent of session's copy
	CurrentPromptIndex  int              // 0-based
	CurrentResponseBuffer string
	LastSpeechTime      time.Time
	InitiatedAt         time.Time
	ConnectedAt         *time.Time
	EndedAt             *time.Time
}

// NonRatingPromptCount returns the number of prompts that are not the
// rating prompt, used by P5's completion invariant.
func (p *PhoneCall) NonRatingPromptCount() int {
	n := 0
	for _, pr := range p.Prompts {
		if !pr.IsRatingPrompt {
			n++
		}
	}
	return n
}

// JournalEntry is the immutable, materialized outcome of a completed session.
type JournalEntry struct {
	ID                  string
	UserID              string
	ReflectionSessionID string
	LocalDate           string // YYYY-MM-DD in user's timezone
	Rating              *int
	Responses           []PromptResponse
	CreatedAt           time.Time
}
