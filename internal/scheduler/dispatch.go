package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/agentplexus/reflectcall/internal/adapters/telephony"
	"github.com/agentplexus/reflectcall/internal/clock"
	"github.com/agentplexus/reflectcall/internal/ids"
	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/store"
)

// DispatchConfig carries the pieces the Dispatch Worker needs to turn a due
// ScheduledCall into a live outbound call (spec §4.6).
type DispatchConfig struct {
	FromE164          string
	AnswerCallbackURL string
	StatusCallbackURL string
	Limit             int           // rows pulled per sweep, default 25
	RetryBackoff      time.Duration // default 5 minutes
}

func defaultDispatchConfig(cfg DispatchConfig) DispatchConfig {
	if cfg.Limit <= 0 {
		cfg.Limit = 25
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Minute
	}
	return cfg
}

// DispatchWorker is the periodic worker that places outbound calls for
// ScheduledCalls whose time has come (spec §4.6). Every 15 seconds by
// default.
type DispatchWorker struct {
	store     store.Store
	telephony telephony.Provider
	clock     clock.Clock
	cfg       DispatchConfig
	log       *log.Logger
	loop      *loop
}

// NewDispatchWorker constructs a DispatchWorker polling every interval
// (default 15 seconds).
func NewDispatchWorker(st store.Store, tel telephony.Provider, clk clock.Clock, cfg DispatchConfig, interval time.Duration, logger *log.Logger) *DispatchWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	d := &DispatchWorker{store: st, telephony: tel, clock: clk, cfg: defaultDispatchConfig(cfg), log: logger}
	d.loop = newLoop("dispatch_worker", interval, d.sweep, logger)
	return d
}

func (d *DispatchWorker) Start(ctx context.Context)   { d.loop.Start(ctx) }
func (d *DispatchWorker) Stop()                       { d.loop.Stop() }
func (d *DispatchWorker) RunOnce(ctx context.Context) { d.loop.RunOnce(ctx) }

// sweep implements spec §4.6 steps 1-2: fetch due ScheduledCalls and race
// to claim each one via CAS before dispatching it.
func (d *DispatchWorker) sweep(ctx context.Context) {
	now := d.clock.Now()
	due, err := d.store.DueScheduledCalls(ctx, now, d.cfg.Limit)
	if err != nil {
		d.log.Printf("scheduler: dispatch worker: list due calls: %v", err)
		return
	}
	for _, sc := range due {
		applied, err := d.store.CASScheduledCallStatus(ctx, sc.ID, models.ScheduledCallPending, models.ScheduledCallInProgress)
		if err != nil {
			d.log.Printf("scheduler: dispatch worker: CAS scheduled call %s: %v", sc.ID, err)
			continue
		}
		if !applied {
			continue // another dispatcher won the race
		}
		sc.Status = models.ScheduledCallInProgress
		if err := d.dispatch(ctx, &sc); err != nil {
			d.log.Printf("scheduler: dispatch worker: dispatch scheduled call %s: %v", sc.ID, err)
		}
	}
}

// dispatch carries out spec §4.6 steps 3-5 for one claimed ScheduledCall.
func (d *DispatchWorker) dispatch(ctx context.Context, sc *models.ScheduledCall) error {
	session, err := d.store.GetReflectionSession(ctx, sc.ReflectionSessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	// Refetch active prompts so the runtime sees exactly what will be
	// spoken, catching drift between materialization and dispatch.
	prompts, err := d.refreshPrompts(ctx, sc.UserID, session.Prompts)
	if err != nil {
		return fmt.Errorf("refresh prompts: %w", err)
	}
	if err := d.store.UpdatePrompts(ctx, session.ID, prompts); err != nil {
		return fmt.Errorf("update prompts: %w", err)
	}

	now := d.clock.Now()
	pc := &models.PhoneCall{
		ID:                  ids.NewAt(now),
		UserID:              sc.UserID,
		ReflectionSessionID: sc.ReflectionSessionID,
		ScheduledCallID:     sc.ID,
		Status:              models.PhoneCallInitiated,
		Prompts:             prompts,
		InitiatedAt:         now,
	}
	if err := d.store.CreatePhoneCall(ctx, pc); err != nil {
		return fmt.Errorf("create phone call: %w", err)
	}

	sid, err := d.telephony.PlaceCall(ctx, telephony.PlaceCallParams{
		ToE164:            sc.PhoneNumber,
		FromE164:          d.cfg.FromE164,
		AnswerCallbackURL: d.cfg.AnswerCallbackURL,
		StatusCallbackURL: d.cfg.StatusCallbackURL,
	})
	if err != nil {
		return d.onPlaceCallFailure(ctx, sc, pc, err)
	}

	if err := d.store.SetProviderCallSID(ctx, pc.ID, sid); err != nil {
		return fmt.Errorf("set provider call sid: %w", err)
	}
	return nil
}

// refreshPrompts reloads the user's active prompts, preserving a synthetic
// rating prompt already present on the session snapshot (the rating prompt
// has no backing PromptTemplate row to refetch).
func (d *DispatchWorker) refreshPrompts(ctx context.Context, userID string, previous []models.PromptSnapshot) ([]models.PromptSnapshot, error) {
	templates, err := d.store.ActivePrompts(ctx, userID)
	if err != nil {
		return nil, err
	}
	refreshed := make([]models.PromptSnapshot, 0, len(templates)+1)
	hasRating := false
	for _, t := range templates {
		refreshed = append(refreshed, models.PromptSnapshot{
			PromptID:       t.PromptID,
			PromptText:     t.PromptText,
			IsRatingPrompt: t.IsRatingPrompt,
		})
		if t.IsRatingPrompt {
			hasRating = true
		}
	}
	for _, p := range previous {
		if hasRating {
			break
		}
		if p.IsRatingPrompt {
			refreshed = append(refreshed, p)
			break
		}
	}
	return refreshed, nil
}

// onPlaceCallFailure implements spec §4.6 step 5: retry with backoff up to
// maxRetries, then mark both the ScheduledCall and its ReflectionSession
// terminal.
func (d *DispatchWorker) onPlaceCallFailure(ctx context.Context, sc *models.ScheduledCall, pc *models.PhoneCall, placeErr error) error {
	d.log.Printf("scheduler: dispatch worker: place call for scheduled call %s: %v", sc.ID, placeErr)

	now := d.clock.Now()
	if err := d.store.SetPhoneCallEnded(ctx, pc.ID, models.PhoneCallFailed, now); err != nil {
		d.log.Printf("scheduler: dispatch worker: mark phone call %s failed: %v", pc.ID, err)
	}

	return RetryOrFail(ctx, d.store, d.clock, sc, d.cfg.RetryBackoff, placeErr.Error())
}

// RetryOrFail implements the shared retry-budget bookkeeping behind spec
// §4.6 step 5: schedule another attempt within maxRetries, or finalize the
// ScheduledCall and its ReflectionSession as terminal. Shared by the
// Dispatch Worker (a failed PlaceCall) and the webhook front (an early
// hangup that leaves attempts remaining).
func RetryOrFail(ctx context.Context, st store.Store, clk clock.Clock, sc *models.ScheduledCall, backoff time.Duration, lastError string) error {
	now := clk.Now()
	attempt := sc.AttemptCount + 1
	if attempt < sc.MaxRetries {
		next := now.Add(backoff)
		return st.UpdateScheduledCallRetry(ctx, sc.ID, attempt, &next, models.ScheduledCallPending, lastError)
	}

	if err := st.UpdateScheduledCallRetry(ctx, sc.ID, attempt, nil, models.ScheduledCallFailed, lastError); err != nil {
		return err
	}
	return st.FinishSession(ctx, sc.ReflectionSessionID, models.SessionAbandoned, now)
}
