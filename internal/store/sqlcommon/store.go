package sqlcommon

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentplexus/reflectcall/internal/apperr"
	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/store"
)

// Store implements store.Store over a *sql.DB using the given Dialect.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an already-opened, already-pinged *sql.DB. Callers
// (internal/store/postgres, internal/store/sqlite) own connection-pool
// sizing (spec §5: one bounded pool per process).
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) Close() error { return s.db.Close() }

// q rewrites a query template whose placeholders are written as {1},{2},...
// into the dialect's actual placeholder syntax.
func (s *Store) q(template string, n int) string {
	out := template
	for i := n; i >= 1; i-- {
		marker := fmt.Sprintf("{%d}", i)
		out = replaceAll(out, marker, s.dialect.Placeholder(i))
	}
	return out
}

func replaceAll(s, old, new string) string {
	for {
		idx := indexOf(s, old)
		if idx < 0 {
			return s
		}
		s = s[:idx] + new + s[idx+len(old):]
	}
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}

// ---- Profiles ----

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT user_id, phone_number, display_name, name_pronunciation, timezone, include_rating_prompt, max_retries
		FROM profiles WHERE user_id = {1}`, 1), userID)
	var p models.Profile
	if err := row.Scan(&p.UserID, &p.PhoneNumber, &p.DisplayName, &p.NamePronunciation, &p.Timezone, &p.IncludeRatingPrompt, &p.MaxRetries); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, apperr.Transientf("store.GetProfile", err)
	}
	return &p, nil
}

func (s *Store) ListUsersWithWindows(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM call_windows`)
	if err != nil {
		return nil, apperr.Transientf("store.ListUsersWithWindows", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.Transientf("store.ListUsersWithWindows", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ---- PromptTemplates ----

func (s *Store) ActivePrompts(ctx context.Context, userID string) ([]models.PromptTemplate, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT user_id, prompt_id, prompt_text, position, active, is_rating_prompt
		FROM prompt_templates WHERE user_id = {1} AND active = {2} ORDER BY position ASC`, 2), userID, true)
	if err != nil {
		return nil, apperr.Transientf("store.ActivePrompts", err)
	}
	defer rows.Close()
	var out []models.PromptTemplate
	for rows.Next() {
		var pt models.PromptTemplate
		if err := rows.Scan(&pt.UserID, &pt.PromptID, &pt.PromptText, &pt.Position, &pt.Active, &pt.IsRatingPrompt); err != nil {
			return nil, apperr.Transientf("store.ActivePrompts", err)
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// ---- CallWindows ----

func (s *Store) RecurringWindows(ctx context.Context, userID string, day time.Weekday) ([]models.CallWindow, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, user_id, variant, day_of_week, date, start_time, end_time
		FROM call_windows WHERE user_id = {1} AND variant = {2} AND day_of_week = {3}`, 3),
		userID, models.WindowRecurring, int(day))
	if err != nil {
		return nil, apperr.Transientf("store.RecurringWindows", err)
	}
	defer rows.Close()
	return scanWindows(rows)
}

func (s *Store) OneOffWindows(ctx context.Context, userID string, date string) ([]models.CallWindow, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, user_id, variant, day_of_week, date, start_time, end_time
		FROM call_windows WHERE user_id = {1} AND variant = {2} AND date = {3}`, 3),
		userID, models.WindowOneOff, date)
	if err != nil {
		return nil, apperr.Transientf("store.OneOffWindows", err)
	}
	defer rows.Close()
	return scanWindows(rows)
}

func scanWindows(rows *sql.Rows) ([]models.CallWindow, error) {
	var out []models.CallWindow
	for rows.Next() {
		var w models.CallWindow
		var dow int
		if err := rows.Scan(&w.ID, &w.UserID, &w.Variant, &dow, &w.Date, &w.StartTime, &w.EndTime); err != nil {
			return nil, apperr.Transientf("store.scanWindows", err)
		}
		w.DayOfWeek = models.DayOfWeek(dow)
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) CreateCallWindow(ctx context.Context, w *models.CallWindow) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO call_windows (id, user_id, variant, day_of_week, date, start_time, end_time)
		VALUES ({1},{2},{3},{4},{5},{6},{7})`, 7),
		w.ID, w.UserID, w.Variant, int(w.DayOfWeek), w.Date, w.StartTime, w.EndTime)
	if err != nil {
		return apperr.Uniquenessf("store.CreateCallWindow", err)
	}
	return nil
}

// ---- DayModes ----

func (s *Store) GetDayMode(ctx context.Context, userID, date string) (*models.DayMode, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT user_id, date, use_recurring FROM day_modes WHERE user_id = {1} AND date = {2}`, 2), userID, date)
	var dm models.DayMode
	if err := row.Scan(&dm.UserID, &dm.Date, &dm.UseRecurring); err != nil {
		if err == sql.ErrNoRows {
			// Default: recurring windows apply (spec §3 DayMode default true).
			return &models.DayMode{UserID: userID, Date: date, UseRecurring: true}, nil
		}
		return nil, apperr.Transientf("store.GetDayMode", err)
	}
	return &dm, nil
}

// ---- ScheduledCalls ----

func (s *Store) CreateScheduledCall(ctx context.Context, sc *models.ScheduledCall) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO scheduled_calls (id, user_id, reflection_session_id, phone_number, scheduled_for, status, attempt_count, max_retries, next_attempt_at, last_error)
		VALUES ({1},{2},{3},{4},{5},{6},{7},{8},{9},{10})`, 10),
		sc.ID, sc.UserID, sc.ReflectionSessionID, sc.PhoneNumber, sc.ScheduledFor, sc.Status, sc.AttemptCount, sc.MaxRetries, nullTime(sc.NextAttemptAt), sc.LastError)
	if err != nil {
		return apperr.Uniquenessf("store.CreateScheduledCall", err)
	}
	return nil
}

func (s *Store) GetScheduledCall(ctx context.Context, id string) (*models.ScheduledCall, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, user_id, reflection_session_id, phone_number, scheduled_for, status, attempt_count, max_retries, next_attempt_at, last_error
		FROM scheduled_calls WHERE id = {1}`, 1), id)
	return scanScheduledCall(row)
}

func scanScheduledCall(row *sql.Row) (*models.ScheduledCall, error) {
	var sc models.ScheduledCall
	var next sql.NullTime
	if err := row.Scan(&sc.ID, &sc.UserID, &sc.ReflectionSessionID, &sc.PhoneNumber, &sc.ScheduledFor, &sc.Status, &sc.AttemptCount, &sc.MaxRetries, &next, &sc.LastError); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, apperr.Transientf("store.scanScheduledCall", err)
	}
	if next.Valid {
		sc.NextAttemptAt = &next.Time
	}
	return &sc, nil
}

func (s *Store) HasNonTerminalForSession(ctx context.Context, reflectionSessionID string) (bool, error) {
	return s.existsQuery(ctx, s.q(`
		SELECT 1 FROM scheduled_calls WHERE reflection_session_id = {1}
		AND status NOT IN ('COMPLETED','FAILED','CANCELLED') LIMIT 1`, 1), reflectionSessionID)
}

func (s *Store) HasNonTerminalForUser(ctx context.Context, userID string) (bool, error) {
	hasSC, err := s.existsQuery(ctx, s.q(`
		SELECT 1 FROM scheduled_calls WHERE user_id = {1}
		AND status NOT IN ('COMPLETED','FAILED','CANCELLED') LIMIT 1`, 1), userID)
	if err != nil || hasSC {
		return hasSC, err
	}
	return s.HasNonTerminalPhoneCallForUser(ctx, userID)
}

func (s *Store) existsQuery(ctx context.Context, query string, args ...any) (bool, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, apperr.Transientf("store.existsQuery", err)
	}
	return true, nil
}

func (s *Store) DueScheduledCalls(ctx context.Context, now time.Time, limit int) ([]models.ScheduledCall, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, user_id, reflection_session_id, phone_number, scheduled_for, status, attempt_count, max_retries, next_attempt_at, last_error
		FROM scheduled_calls
		WHERE status = {1} AND scheduled_for <= {2} AND (next_attempt_at IS NULL OR next_attempt_at <= {2})
		ORDER BY scheduled_for ASC LIMIT {3}`, 3), models.ScheduledCallPending, now, limit)
	if err != nil {
		return nil, apperr.Transientf("store.DueScheduledCalls", err)
	}
	defer rows.Close()
	var out []models.ScheduledCall
	for rows.Next() {
		var sc models.ScheduledCall
		var next sql.NullTime
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.ReflectionSessionID, &sc.PhoneNumber, &sc.ScheduledFor, &sc.Status, &sc.AttemptCount, &sc.MaxRetries, &next, &sc.LastError); err != nil {
			return nil, apperr.Transientf("store.DueScheduledCalls", err)
		}
		if next.Valid {
			sc.NextAttemptAt = &next.Time
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) CASScheduledCallStatus(ctx context.Context, id string, from, to models.ScheduledCallStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE scheduled_calls SET status = {1} WHERE id = {2} AND status = {3}`, 3), to, id, from)
	if err != nil {
		return false, apperr.Transientf("store.CASScheduledCallStatus", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Transientf("store.CASScheduledCallStatus", err)
	}
	return n == 1, nil
}

func (s *Store) UpdateScheduledCallRetry(ctx context.Context, id string, attemptCount int, nextAttemptAt *time.Time, status models.ScheduledCallStatus, lastError string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE scheduled_calls SET attempt_count = {1}, next_attempt_at = {2}, status = {3}, last_error = {4}
		WHERE id = {5}`, 5), attemptCount, nullTime(nextAttemptAt), status, lastError, id)
	if err != nil {
		return apperr.Transientf("store.UpdateScheduledCallRetry", err)
	}
	return nil
}

func (s *Store) SetScheduledCallStatus(ctx context.Context, id string, status models.ScheduledCallStatus) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE scheduled_calls SET status = {1} WHERE id = {2}`, 2), status, id)
	if err != nil {
		return apperr.Transientf("store.SetScheduledCallStatus", err)
	}
	return nil
}

// ---- ReflectionSessions ----

func (s *Store) CreateReflectionSession(ctx context.Context, sess *models.ReflectionSession) error {
	promptsJSON, err := json.Marshal(sess.Prompts)
	if err != nil {
		return apperr.Faultf("store.CreateReflectionSession", err)
	}
	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO reflection_sessions (id, user_id, method, status, prompts, rating, started_at, ended_at, recording_url)
		VALUES ({1},{2},{3},{4},{5},{6},{7},{8},{9})`, 9),
		sess.ID, sess.UserID, sess.Method, sess.Status, string(promptsJSON), nullInt(sess.Rating), sess.StartedAt, nullTime(sess.EndedAt), sess.RecordingURL)
	if err != nil {
		return apperr.Uniquenessf("store.CreateReflectionSession", err)
	}
	return nil
}

func (s *Store) GetReflectionSession(ctx context.Context, id string) (*models.ReflectionSession, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, user_id, method, status, prompts, rating, started_at, ended_at, recording_url
		FROM reflection_sessions WHERE id = {1}`, 1), id)
	var sess models.ReflectionSession
	var promptsJSON string
	var rating sql.NullInt64
	var ended sql.NullTime
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Method, &sess.Status, &promptsJSON, &rating, &sess.StartedAt, &ended, &sess.RecordingURL); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, apperr.Transientf("store.GetReflectionSession", err)
	}
	if err := json.Unmarshal([]byte(promptsJSON), &sess.Prompts); err != nil {
		return nil, apperr.Faultf("store.GetReflectionSession", err)
	}
	if rating.Valid {
		r := int(rating.Int64)
		sess.Rating = &r
	}
	if ended.Valid {
		sess.EndedAt = &ended.Time
	}
	return &sess, nil
}

func (s *Store) HasInProgressForUser(ctx context.Context, userID string) (bool, error) {
	return s.existsQuery(ctx, s.q(`
		SELECT 1 FROM reflection_sessions WHERE user_id = {1} AND status = {2} LIMIT 1`, 2), userID, models.SessionInProgress)
}

func (s *Store) UpdatePrompts(ctx context.Context, id string, prompts []models.PromptSnapshot) error {
	promptsJSON, err := json.Marshal(prompts)
	if err != nil {
		return apperr.Faultf("store.UpdatePrompts", err)
	}
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE reflection_sessions SET prompts = {1} WHERE id = {2} AND status = {3}`, 3),
		string(promptsJSON), id, models.SessionInProgress)
	if err != nil {
		return apperr.Transientf("store.UpdatePrompts", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Transientf("store.UpdatePrompts", err)
	}
	if n == 0 {
		return apperr.Preconditionf("store.UpdatePrompts", "session %s is not IN_PROGRESS", id)
	}
	return nil
}

func (s *Store) SetRating(ctx context.Context, id string, rating int) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE reflection_sessions SET rating = {1} WHERE id = {2}`, 2), rating, id)
	if err != nil {
		return apperr.Transientf("store.SetRating", err)
	}
	return nil
}

func (s *Store) SetRecordingURL(ctx context.Context, id string, ciphertext string) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE reflection_sessions SET recording_url = {1} WHERE id = {2}`, 2), ciphertext, id)
	if err != nil {
		return apperr.Transientf("store.SetRecordingURL", err)
	}
	return nil
}

func (s *Store) FinishSession(ctx context.Context, id string, status models.ReflectionSessionStatus, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE reflection_sessions SET status = {1}, ended_at = {2} WHERE id = {3}`, 3), status, endedAt, id)
	if err != nil {
		return apperr.Transientf("store.FinishSession", err)
	}
	return nil
}

// ---- PromptResponses ----

func (s *Store) AppendPromptResponse(ctx context.Context, r *models.PromptResponse) error {
	var maxPos sql.NullInt64
	row := s.db.QueryRowContext(ctx, s.q(`SELECT MAX(position) FROM prompt_responses WHERE session_id = {1}`, 1), r.SessionID)
	if err := row.Scan(&maxPos); err != nil {
		return apperr.Transientf("store.AppendPromptResponse", err)
	}
	expected := 1
	if maxPos.Valid {
		expected = int(maxPos.Int64) + 1
	}
	if r.Position != expected {
		return apperr.Preconditionf("store.AppendPromptResponse", "position %d is not contiguous (expected %d)", r.Position, expected)
	}
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO prompt_responses (session_id, prompt_id, prompt_text, position, response_text, response_started, response_finished)
		VALUES ({1},{2},{3},{4},{5},{6},{7})`, 7),
		r.SessionID, r.PromptID, r.PromptText, r.Position, r.ResponseText, r.ResponseStarted, r.ResponseFinished)
	if err != nil {
		return apperr.Uniquenessf("store.AppendPromptResponse", err)
	}
	return nil
}

func (s *Store) ListPromptResponses(ctx context.Context, sessionID string) ([]models.PromptResponse, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT session_id, prompt_id, prompt_text, position, response_text, response_started, response_finished
		FROM prompt_responses WHERE session_id = {1} ORDER BY position ASC`, 1), sessionID)
	if err != nil {
		return nil, apperr.Transientf("store.ListPromptResponses", err)
	}
	defer rows.Close()
	var out []models.PromptResponse
	for rows.Next() {
		var r models.PromptResponse
		if err := rows.Scan(&r.SessionID, &r.PromptID, &r.PromptText, &r.Position, &r.ResponseText, &r.ResponseStarted, &r.ResponseFinished); err != nil {
			return nil, apperr.Transientf("store.ListPromptResponses", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- PhoneCalls ----

func (s *Store) CreatePhoneCall(ctx context.Context, pc *models.PhoneCall) error {
	promptsJSON, err := json.Marshal(pc.Prompts)
	if err != nil {
		return apperr.Faultf("store.CreatePhoneCall", err)
	}
	_, err = s.db.ExecContext(ctx, s.q(`
		INSERT INTO phone_calls (id, user_id, reflection_session_id, scheduled_call_id, provider_call_sid, status, prompts, current_prompt_index, current_response_buffer, last_speech_time, initiated_at, connected_at, ended_at)
		VALUES ({1},{2},{3},{4},{5},{6},{7},{8},{9},{10},{11},{12},{13})`, 13),
		pc.ID, pc.UserID, pc.ReflectionSessionID, pc.ScheduledCallID, pc.ProviderCallSID, pc.Status, string(promptsJSON), pc.CurrentPromptIndex, pc.CurrentResponseBuffer,
		nullTimeZero(pc.LastSpeechTime), pc.InitiatedAt, nullTime(pc.ConnectedAt), nullTime(pc.EndedAt))
	if err != nil {
		return apperr.Uniquenessf("store.CreatePhoneCall", err)
	}
	return nil
}

func (s *Store) GetPhoneCall(ctx context.Context, id string) (*models.PhoneCall, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, user_id, reflection_session_id, scheduled_call_id, provider_call_sid, status, prompts, current_prompt_index, current_response_buffer, last_speech_time, initiated_at, connected_at, ended_at
		FROM phone_calls WHERE id = {1}`, 1), id)
	return scanPhoneCall(row)
}

func (s *Store) GetPhoneCallBySID(ctx context.Context, providerCallSID string) (*models.PhoneCall, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, user_id, reflection_session_id, scheduled_call_id, provider_call_sid, status, prompts, current_prompt_index, current_response_buffer, last_speech_time, initiated_at, connected_at, ended_at
		FROM phone_calls WHERE provider_call_sid = {1}`, 1), providerCallSID)
	return scanPhoneCall(row)
}

func scanPhoneCall(row *sql.Row) (*models.PhoneCall, error) {
	var pc models.PhoneCall
	var promptsJSON string
	var lastSpeech, connected, ended sql.NullTime
	if err := row.Scan(&pc.ID, &pc.UserID, &pc.ReflectionSessionID, &pc.ScheduledCallID, &pc.ProviderCallSID, &pc.Status, &promptsJSON, &pc.CurrentPromptIndex, &pc.CurrentResponseBuffer, &lastSpeech, &pc.InitiatedAt, &connected, &ended); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, apperr.Transientf("store.scanPhoneCall", err)
	}
	if err := json.Unmarshal([]byte(promptsJSON), &pc.Prompts); err != nil {
		return nil, apperr.Faultf("store.scanPhoneCall", err)
	}
	if lastSpeech.Valid {
		pc.LastSpeechTime = lastSpeech.Time
	}
	if connected.Valid {
		pc.ConnectedAt = &connected.Time
	}
	if ended.Valid {
		pc.EndedAt = &ended.Time
	}
	return &pc, nil
}

func (s *Store) SetProviderCallSID(ctx context.Context, id, providerCallSID string) error {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE phone_calls SET provider_call_sid = {1} WHERE id = {2} AND provider_call_sid = {3}`, 3),
		providerCallSID, id, "")
	if err != nil {
		return apperr.Uniquenessf("store.SetProviderCallSID", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Transientf("store.SetProviderCallSID", err)
	}
	if n == 0 {
		return apperr.Preconditionf("store.SetProviderCallSID", "phone call %s already has a provider_call_sid assigned", id)
	}
	return nil
}

func (s *Store) HasNonTerminalPhoneCallForUser(ctx context.Context, userID string) (bool, error) {
	return s.existsQuery(ctx, s.q(`
		SELECT 1 FROM phone_calls WHERE user_id = {1}
		AND status NOT IN ('COMPLETED','FAILED','ABANDONED') LIMIT 1`, 1), userID)
}

func (s *Store) CASPhoneCallStatus(ctx context.Context, id string, from, to models.PhoneCallStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		UPDATE phone_calls SET status = {1} WHERE id = {2} AND status = {3}`, 3), to, id, from)
	if err != nil {
		return false, apperr.Transientf("store.CASPhoneCallStatus", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Transientf("store.CASPhoneCallStatus", err)
	}
	return n == 1, nil
}

func (s *Store) SetPhoneCallConnected(ctx context.Context, id string, connectedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE phone_calls SET status = {1}, connected_at = {2} WHERE id = {3}`, 3),
		models.PhoneCallConnected, connectedAt, id)
	if err != nil {
		return apperr.Transientf("store.SetPhoneCallConnected", err)
	}
	return nil
}

func (s *Store) SetPhoneCallEnded(ctx context.Context, id string, status models.PhoneCallStatus, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE phone_calls SET status = {1}, ended_at = {2} WHERE id = {3}`, 3), status, endedAt, id)
	if err != nil {
		return apperr.Transientf("store.SetPhoneCallEnded", err)
	}
	return nil
}

func (s *Store) AdvancePrompt(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE phone_calls SET current_prompt_index = current_prompt_index + 1, current_response_buffer = {1}
		WHERE id = {2}`, 2), "", id)
	if err != nil {
		return apperr.Transientf("store.AdvancePrompt", err)
	}
	return nil
}

func (s *Store) AppendToBuffer(ctx context.Context, id string, text string, speechTime time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		UPDATE phone_calls SET
			current_response_buffer = CASE WHEN current_response_buffer = '' THEN {1} ELSE current_response_buffer || ' ' || {1} END,
			last_speech_time = {2}
		WHERE id = {3}`, 3), text, speechTime, id)
	if err != nil {
		return apperr.Transientf("store.AppendToBuffer", err)
	}
	return nil
}

func (s *Store) TouchLastSpeechTime(ctx context.Context, id string, speechTime time.Time) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE phone_calls SET last_speech_time = {1} WHERE id = {2}`, 2), speechTime, id)
	if err != nil {
		return apperr.Transientf("store.TouchLastSpeechTime", err)
	}
	return nil
}

// ---- JournalEntries ----

func (s *Store) CreateJournalEntry(ctx context.Context, e *models.JournalEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Transientf("store.CreateJournalEntry", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO journal_entries (id, user_id, reflection_session_id, local_date, rating, created_at)
		VALUES ({1},{2},{3},{4},{5},{6})`, 6),
		e.ID, e.UserID, e.ReflectionSessionID, e.LocalDate, nullInt(e.Rating), e.CreatedAt)
	if err != nil {
		// Release the transaction's connection before the lookup, which runs
		// on s.db (sqlite is opened with a single connection).
		_ = tx.Rollback()
		existing, getErr := s.GetJournalEntryByDate(ctx, e.UserID, e.LocalDate)
		if getErr == nil && existing != nil && sameEntry(existing, e) {
			return nil // idempotent retry, spec §8 round-trip law
		}
		return apperr.Uniquenessf("store.CreateJournalEntry", err)
	}
	for _, r := range e.Responses {
		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO journal_entry_responses (journal_entry_id, position, prompt_id, prompt_text, response_text, response_started, response_finished)
			VALUES ({1},{2},{3},{4},{5},{6},{7})`, 7),
			e.ID, r.Position, r.PromptID, r.PromptText, r.ResponseText, r.ResponseStarted, r.ResponseFinished)
		if err != nil {
			return apperr.Transientf("store.CreateJournalEntry", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Transientf("store.CreateJournalEntry", err)
	}
	return nil
}

func sameEntry(existing, candidate *models.JournalEntry) bool {
	return existing.UserID == candidate.UserID &&
		existing.ReflectionSessionID == candidate.ReflectionSessionID &&
		existing.LocalDate == candidate.LocalDate
}

func (s *Store) GetJournalEntryByDate(ctx context.Context, userID, localDate string) (*models.JournalEntry, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT id, user_id, reflection_session_id, local_date, rating, created_at
		FROM journal_entries WHERE user_id = {1} AND local_date = {2}`, 2), userID, localDate)
	var e models.JournalEntry
	var rating sql.NullInt64
	if err := row.Scan(&e.ID, &e.UserID, &e.ReflectionSessionID, &e.LocalDate, &rating, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, apperr.Transientf("store.GetJournalEntryByDate", err)
	}
	if rating.Valid {
		r := int(rating.Int64)
		e.Rating = &r
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT position, prompt_id, prompt_text, response_text, response_started, response_finished
		FROM journal_entry_responses WHERE journal_entry_id = {1} ORDER BY position ASC`, 1), e.ID)
	if err != nil {
		return nil, apperr.Transientf("store.GetJournalEntryByDate", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r models.PromptResponse
		if err := rows.Scan(&r.Position, &r.PromptID, &r.PromptText, &r.ResponseText, &r.ResponseStarted, &r.ResponseFinished); err != nil {
			return nil, apperr.Transientf("store.GetJournalEntryByDate", err)
		}
		r.SessionID = e.ReflectionSessionID
		e.Responses = append(e.Responses, r)
	}
	return &e, rows.Err()
}

func (s *Store) DeleteJournalEntry(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Transientf("store.DeleteJournalEntry", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM journal_entry_responses WHERE journal_entry_id = {1}`, 1), id); err != nil {
		return apperr.Transientf("store.DeleteJournalEntry", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM journal_entries WHERE id = {1}`, 1), id); err != nil {
		return apperr.Transientf("store.DeleteJournalEntry", err)
	}
	// Deliberately does not touch reflection_sessions (P8).
	return tx.Commit()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullTimeZero(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
