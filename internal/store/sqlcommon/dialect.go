// Package sqlcommon implements the store.Store contract once against
// database/sql, parameterized by a small Dialect so both
// internal/store/postgres (lib/pq) and internal/store/sqlite
// (modernc.org/sqlite) can share it. This mirrors the shape of
// haasonsaas-nexus's CockroachStore/DBLocker: hand-written SQL, CAS via a
// conditional UPDATE ... WHERE, RowsAffected to confirm.
package sqlcommon

import "fmt"

// Dialect captures the handful of syntax differences between the two
// backends reflectcall supports.
type Dialect struct {
	Name string
	// Placeholder returns the bind-parameter marker for the i'th
	// (1-based) argument in a query.
	Placeholder func(i int) string
}

// Postgres uses $1, $2, ... ordinal placeholders.
var Postgres = Dialect{
	Name: "postgres",
	Placeholder: func(i int) string {
		return fmt.Sprintf("$%d", i)
	},
}

// SQLite uses positional "?" placeholders.
var SQLite = Dialect{
	Name: "sqlite",
	Placeholder: func(i int) string {
		return "?"
	},
}

// Schema is the shared DDL, valid under both postgres and modernc.org/sqlite
// (BOOLEAN/TIMESTAMP are accepted column-type names by both; sqlite treats
// them as type affinity hints, postgres enforces them).
const Schema = `
CREATE TABLE IF NOT EXISTS call_windows (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	variant TEXT NOT NULL,
	day_of_week INTEGER NOT NULL,
	date TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_call_windows_recurring
	ON call_windows (user_id, day_of_week, start_time) WHERE variant = 'RECURRING';
CREATE UNIQUE INDEX IF NOT EXISTS idx_call_windows_oneoff
	ON call_windows (user_id, date, start_time) WHERE variant = 'ONE_OFF';

CREATE TABLE IF NOT EXISTS day_modes (
	user_id TEXT NOT NULL,
	date TEXT NOT NULL,
	use_recurring BOOLEAN NOT NULL,
	PRIMARY KEY (user_id, date)
);

CREATE TABLE IF NOT EXISTS scheduled_calls (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	reflection_session_id TEXT NOT NULL,
	phone_number TEXT NOT NULL,
	scheduled_for TIMESTAMP NOT NULL,
	status TEXT NOT NULL,
	attempt_count INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 1,
	next_attempt_at TIMESTAMP,
	last_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_scheduled_calls_status_time ON scheduled_calls (status, scheduled_for);

CREATE TABLE IF NOT EXISTS reflection_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	method TEXT NOT NULL,
	status TEXT NOT NULL,
	prompts TEXT NOT NULL,
	rating INTEGER,
	started_at TIMESTAMP NOT NULL,
	ended_at TIMESTAMP,
	recording_url TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_reflection_sessions_user_status ON reflection_sessions (user_id, status);

CREATE TABLE IF NOT EXISTS prompt_responses (
	session_id TEXT NOT NULL,
	prompt_id TEXT NOT NULL,
	prompt_text TEXT NOT NULL,
	position INTEGER NOT NULL,
	response_text TEXT NOT NULL,
	response_started TIMESTAMP NOT NULL,
	response_finished TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, position)
);

CREATE TABLE IF NOT EXISTS phone_calls (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	reflection_session_id TEXT NOT NULL,
	scheduled_call_id TEXT NOT NULL DEFAULT '',
	provider_call_sid TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	prompts TEXT NOT NULL,
	current_prompt_index INTEGER NOT NULL DEFAULT 0,
	current_response_buffer TEXT NOT NULL DEFAULT '',
	last_speech_time TIMESTAMP,
	initiated_at TIMESTAMP NOT NULL,
	connected_at TIMESTAMP,
	ended_at TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_phone_calls_sid ON phone_calls (provider_call_sid) WHERE provider_call_sid <> '';

CREATE TABLE IF NOT EXISTS journal_entries (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	reflection_session_id TEXT NOT NULL,
	local_date TEXT NOT NULL,
	rating INTEGER,
	created_at TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_journal_entries_user_date ON journal_entries (user_id, local_date);

CREATE TABLE IF NOT EXISTS journal_entry_responses (
	journal_entry_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	prompt_id TEXT NOT NULL,
	prompt_text TEXT NOT NULL,
	response_text TEXT NOT NULL,
	response_started TIMESTAMP NOT NULL,
	response_finished TIMESTAMP NOT NULL,
	PRIMARY KEY (journal_entry_id, position)
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id TEXT PRIMARY KEY,
	phone_number TEXT NOT NULL,
	display_name TEXT NOT NULL,
	name_pronunciation TEXT NOT NULL DEFAULT '',
	timezone TEXT NOT NULL,
	include_rating_prompt BOOLEAN NOT NULL DEFAULT FALSE,
	max_retries INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS prompt_templates (
	user_id TEXT NOT NULL,
	prompt_id TEXT NOT NULL,
	prompt_text TEXT NOT NULL,
	position INTEGER NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	is_rating_prompt BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (user_id, prompt_id)
);
`
