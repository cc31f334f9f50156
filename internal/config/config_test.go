package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "BASE_URL", "TELEPHONY_ACCOUNT_SID", "TELEPHONY_AUTH_TOKEN",
		"TELEPHONY_FROM_NUMBER", "STT_KEY", "STT_LANGUAGE", "TTS_KEY",
		"TTS_VOICE", "TTS_MODEL", "LLM_KEY", "LLM_MODEL", "DB_URL",
		"ENCRYPTION_MASTER_KEY", "PAUSE_THRESHOLD_SEC", "WINDOW_POLL_SEC",
		"DISPATCH_POLL_SEC", "USE_MOCKS",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadFromEnvUseMocksSkipsValidation(t *testing.T) {
	clearEnv(t)
	os.Setenv("USE_MOCKS", "1")
	defer clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if !cfg.UseMocks {
		t.Fatalf("expected UseMocks to be true")
	}
	if cfg.Port != 3333 {
		t.Fatalf("expected default port 3333, got %d", cfg.Port)
	}
}

func TestLoadFromEnvValidateAccumulatesMissing(t *testing.T) {
	clearEnv(t)
	defer clearEnv(t)

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatalf("expected error for missing required vars")
	}
}

func TestLoadFromEnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("USE_MOCKS", "true")
	os.Setenv("PAUSE_THRESHOLD_SEC", "5")
	os.Setenv("WINDOW_POLL_SEC", "120")
	os.Setenv("DISPATCH_POLL_SEC", "30")
	os.Setenv("TTS_VOICE", "Bella")
	defer clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.PauseThreshold != 5*time.Second {
		t.Fatalf("expected 5s pause threshold, got %v", cfg.PauseThreshold)
	}
	if cfg.WindowPoll != 2*time.Minute {
		t.Fatalf("expected 2m window poll, got %v", cfg.WindowPoll)
	}
	if cfg.DispatchPoll != 30*time.Second {
		t.Fatalf("expected 30s dispatch poll, got %v", cfg.DispatchPoll)
	}
	if cfg.TTSVoice != "Bella" {
		t.Fatalf("expected overridden TTS voice, got %q", cfg.TTSVoice)
	}
}

func TestMasterKeyBytesFallsBackForMocks(t *testing.T) {
	cfg := DefaultConfig()
	key, err := cfg.MasterKeyBytes()
	if err != nil {
		t.Fatalf("MasterKeyBytes: %v", err)
	}
	if len(key) < 32 {
		t.Fatalf("expected fallback key >= 32 bytes, got %d", len(key))
	}
}

func TestMasterKeyBytesDecodesBase64(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EncryptionMasterKey = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
	key, err := cfg.MasterKeyBytes()
	if err != nil {
		t.Fatalf("MasterKeyBytes: %v", err)
	}
	if len(key) < 32 {
		t.Fatalf("expected decoded key >= 32 bytes, got %d", len(key))
	}
}
