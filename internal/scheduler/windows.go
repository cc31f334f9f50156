package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/agentplexus/reflectcall/internal/clock"
	"github.com/agentplexus/reflectcall/internal/ids"
	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/store"
)

// WindowMaterializer is the periodic worker that turns a user's
// availability windows into a ScheduledCall once the current moment falls
// inside one (spec §4.5). Every 5 minutes by default.
type WindowMaterializer struct {
	store store.Store
	clock clock.Clock
	log   *log.Logger
	loop  *loop
}

// NewWindowMaterializer constructs a WindowMaterializer polling every
// interval (default 5 minutes).
func NewWindowMaterializer(st store.Store, clk clock.Clock, interval time.Duration, logger *log.Logger) *WindowMaterializer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	w := &WindowMaterializer{store: st, clock: clk, log: logger}
	w.loop = newLoop("window_materializer", interval, w.sweep, logger)
	return w
}

func (w *WindowMaterializer) Start(ctx context.Context)   { w.loop.Start(ctx) }
func (w *WindowMaterializer) Stop()                       { w.loop.Stop() }
func (w *WindowMaterializer) RunOnce(ctx context.Context) { w.loop.RunOnce(ctx) }

// sweep implements spec §4.5 steps 1-2: for each user with at least one
// CallWindow, materialize a ScheduledCall if the current moment falls
// inside an applicable window and no session is already in flight today.
func (w *WindowMaterializer) sweep(ctx context.Context) {
	userIDs, err := w.store.ListUsersWithWindows(ctx)
	if err != nil {
		w.log.Printf("scheduler: window materializer: list users: %v", err)
		return
	}
	for _, userID := range userIDs {
		if err := w.materializeUser(ctx, userID); err != nil {
			w.log.Printf("scheduler: window materializer: user %s: %v", userID, err)
		}
	}
}

func (w *WindowMaterializer) materializeUser(ctx context.Context, userID string) error {
	profile, err := w.store.GetProfile(ctx, userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	now := w.clock.Now()
	nowLocal := w.clock.LocalDate(profile.Timezone, now)

	if nonTerminal, err := w.store.HasNonTerminalForUser(ctx, userID); err != nil {
		return fmt.Errorf("check non-terminal: %w", err)
	} else if nonTerminal {
		return nil
	}
	if _, err := w.store.GetJournalEntryByDate(ctx, userID, nowLocal); err == nil {
		return nil // already journaled today
	} else if err != store.ErrNotFound {
		return fmt.Errorf("check journal entry: %w", err)
	}

	inWindow, err := w.currentlyInWindow(ctx, profile, now, nowLocal)
	if err != nil {
		return fmt.Errorf("resolve windows: %w", err)
	}
	if !inWindow {
		return nil
	}

	prompts, err := w.buildPromptSnapshot(ctx, profile)
	if err != nil {
		return fmt.Errorf("build prompt snapshot: %w", err)
	}

	session := &models.ReflectionSession{
		ID:        ids.NewAt(now),
		UserID:    userID,
		Method:    models.MethodPhone,
		Status:    models.SessionInProgress,
		Prompts:   prompts,
		StartedAt: now,
	}
	if err := w.store.CreateReflectionSession(ctx, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	sc := &models.ScheduledCall{
		ID:                  ids.NewAt(now),
		UserID:              userID,
		ReflectionSessionID: session.ID,
		PhoneNumber:         profile.PhoneNumber,
		ScheduledFor:        now,
		Status:              models.ScheduledCallPending,
		AttemptCount:        0,
		MaxRetries:          profile.MaxRetries,
	}
	if err := w.store.CreateScheduledCall(ctx, sc); err != nil {
		return fmt.Errorf("create scheduled call: %w", err)
	}
	return nil
}

// currentlyInWindow resolves which window variant applies today (spec
// §4.5: recurring unless DayMode says otherwise) and reports whether now
// falls inside any of those windows.
func (w *WindowMaterializer) currentlyInWindow(ctx context.Context, profile *models.Profile, now time.Time, nowLocal string) (bool, error) {
	dayMode, err := w.store.GetDayMode(ctx, profile.UserID, nowLocal)
	if err != nil {
		return false, err
	}

	var windows []models.CallWindow
	if dayMode.UseRecurring {
		windows, err = w.store.RecurringWindows(ctx, profile.UserID, w.clock.LocalDayOfWeek(profile.Timezone, now))
	} else {
		windows, err = w.store.OneOffWindows(ctx, profile.UserID, nowLocal)
	}
	if err != nil {
		return false, err
	}

	clockOfDay := w.clock.LocalClockOfDay(profile.Timezone, now)
	for _, win := range windows {
		if withinClockWindow(clockOfDay, win.StartTime, win.EndTime) {
			return true, nil
		}
	}
	return false, nil
}

// withinClockWindow reports whether clockOfDay (minutes since local
// midnight) falls within [start, end), both "HH:MM" strings.
func withinClockWindow(clockOfDay int, start, end string) bool {
	s, err := parseClock(start)
	if err != nil {
		return false
	}
	e, err := parseClock(end)
	if err != nil {
		return false
	}
	return clockOfDay >= s && clockOfDay < e
}

func parseClock(hhmm string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

// buildPromptSnapshot fetches the user's active prompts and appends a
// synthetic rating prompt when the profile wants one and no active prompt
// already is one (spec §4.5 step 1, sub-bullet 2).
func (w *WindowMaterializer) buildPromptSnapshot(ctx context.Context, profile *models.Profile) ([]models.PromptSnapshot, error) {
	templates, err := w.store.ActivePrompts(ctx, profile.UserID)
	if err != nil {
		return nil, err
	}
	snapshots := make([]models.PromptSnapshot, 0, len(templates)+1)
	hasRating := false
	for _, t := range templates {
		snapshots = append(snapshots, models.PromptSnapshot{
			PromptID:       t.PromptID,
			PromptText:     t.PromptText,
			IsRatingPrompt: t.IsRatingPrompt,
		})
		if t.IsRatingPrompt {
			hasRating = true
		}
	}
	if profile.IncludeRatingPrompt && !hasRating {
		snapshots = append(snapshots, models.PromptSnapshot{
			PromptID:       "rating",
			PromptText:     "On a scale from negative two to positive two, how would you rate your day?",
			IsRatingPrompt: true,
		})
	}
	return snapshots, nil
}
