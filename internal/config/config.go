// Package config loads the engine's configuration from the process
// environment, following the teacher's pkg/config.LoadFromEnv/Validate shape
// almost exactly: defaults struct, env var overrides, a Validate that
// accumulates every missing required variable into one error instead of
// failing on the first.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every environment-derived tunable for the serve/migrate
// commands (spec §6).
type Config struct {
	Port    int
	BaseURL string // e.g. "https://calls.example.com", used to derive the media-stream URL

	// Telephony (Twilio via omnivoice-twilio)
	TelephonyAccountSID string
	TelephonyAuthToken  string
	TelephonyFromNumber string

	// Speech-to-text (Deepgram)
	STTKey      string
	STTLanguage string

	// Text-to-speech (ElevenLabs)
	TTSKey   string
	TTSVoice string
	TTSModel string

	// LLM (OpenAI)
	LLMKey   string
	LLMModel string

	// Persistence
	DBURL string // postgres DSN; with UseMocks, migrate opens it as a sqlite file path and serve uses the in-memory store instead

	// At-rest encryption (spec §4.8): base64-encoded 32-byte master secret.
	EncryptionMasterKey string

	// Scheduling loop tunables (spec §4.4, §4.5, §4.6)
	PauseThreshold time.Duration
	WindowPoll     time.Duration
	DispatchPoll   time.Duration

	// UseMocks runs the engine entirely against in-memory store + mock
	// capability adapters, requiring none of the provider credentials above
	// (spec §9: "local dev and CI run against mocks end to end").
	UseMocks bool

	// MockFixturePath optionally names a YAML file of seed users, prompts,
	// and call windows loaded into the in-memory store when UseMocks is
	// set (internal/adapters/mockdata). Ignored otherwise.
	MockFixturePath string
}

// DefaultConfig returns a Config with the spec's documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:           3333,
		STTLanguage:    "en",
		TTSVoice:       "Rachel",
		TTSModel:       "eleven_turbo_v2_5",
		LLMModel:       "gpt-4o-mini",
		DBURL:          "reflectcall.db",
		PauseThreshold: 3 * time.Second,
		WindowPoll:     5 * time.Minute,
		DispatchPoll:   15 * time.Second,
	}
}

// LoadFromEnv loads configuration from environment variables, applying
// DefaultConfig first.
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	cfg.BaseURL = os.Getenv("BASE_URL")

	cfg.TelephonyAccountSID = os.Getenv("TELEPHONY_ACCOUNT_SID")
	cfg.TelephonyAuthToken = os.Getenv("TELEPHONY_AUTH_TOKEN")
	cfg.TelephonyFromNumber = os.Getenv("TELEPHONY_FROM_NUMBER")

	cfg.STTKey = os.Getenv("STT_KEY")
	if lang := os.Getenv("STT_LANGUAGE"); lang != "" {
		cfg.STTLanguage = lang
	}

	cfg.TTSKey = os.Getenv("TTS_KEY")
	if voice := os.Getenv("TTS_VOICE"); voice != "" {
		cfg.TTSVoice = voice
	}
	if model := os.Getenv("TTS_MODEL"); model != "" {
		cfg.TTSModel = model
	}

	cfg.LLMKey = os.Getenv("LLM_KEY")
	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.LLMModel = model
	}

	if dbURL := os.Getenv("DB_URL"); dbURL != "" {
		cfg.DBURL = dbURL
	}
	cfg.EncryptionMasterKey = os.Getenv("ENCRYPTION_MASTER_KEY")

	if secs := os.Getenv("PAUSE_THRESHOLD_SEC"); secs != "" {
		if s, err := strconv.Atoi(secs); err == nil {
			cfg.PauseThreshold = time.Duration(s) * time.Second
		}
	}
	if secs := os.Getenv("WINDOW_POLL_SEC"); secs != "" {
		if s, err := strconv.Atoi(secs); err == nil {
			cfg.WindowPoll = time.Duration(s) * time.Second
		}
	}
	if secs := os.Getenv("DISPATCH_POLL_SEC"); secs != "" {
		if s, err := strconv.Atoi(secs); err == nil {
			cfg.DispatchPoll = time.Duration(s) * time.Second
		}
	}
	if useMocks := os.Getenv("USE_MOCKS"); useMocks != "" {
		cfg.UseMocks = useMocks == "1" || useMocks == "true"
	}
	cfg.MockFixturePath = os.Getenv("MOCK_FIXTURE_PATH")

	return cfg, cfg.Validate()
}

// Validate checks that required configuration is present, accumulating every
// missing variable into one error rather than stopping at the first.
func (c *Config) Validate() error {
	if c.UseMocks {
		return nil
	}

	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if c.TelephonyAccountSID == "" {
		missing = append(missing, "TELEPHONY_ACCOUNT_SID")
	}
	if c.TelephonyAuthToken == "" {
		missing = append(missing, "TELEPHONY_AUTH_TOKEN")
	}
	if c.TelephonyFromNumber == "" {
		missing = append(missing, "TELEPHONY_FROM_NUMBER")
	}
	if c.STTKey == "" {
		missing = append(missing, "STT_KEY")
	}
	if c.TTSKey == "" {
		missing = append(missing, "TTS_KEY")
	}
	if c.LLMKey == "" {
		missing = append(missing, "LLM_KEY")
	}
	if c.DBURL == "" {
		missing = append(missing, "DB_URL")
	}
	if c.EncryptionMasterKey == "" {
		missing = append(missing, "ENCRYPTION_MASTER_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missing)
	}
	return nil
}

// MasterKeyBytes decodes EncryptionMasterKey from base64 into the raw secret
// crypto.New expects.
func (c *Config) MasterKeyBytes() ([]byte, error) {
	if c.EncryptionMasterKey == "" {
		// UseMocks path: derive a fixed, clearly-non-production key so the
		// encryptor still round-trips in local/dev/test runs.
		return []byte("reflectcall-local-dev-master-key"), nil
	}
	key, err := base64.StdEncoding.DecodeString(c.EncryptionMasterKey)
	if err != nil {
		return nil, fmt.Errorf("config: decode ENCRYPTION_MASTER_KEY: %w", err)
	}
	return key, nil
}
