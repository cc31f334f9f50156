package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentplexus/reflectcall/internal/adapters/crypto"
	"github.com/agentplexus/reflectcall/internal/adapters/telephony"
	"github.com/agentplexus/reflectcall/internal/adapters/tts"
	"github.com/agentplexus/reflectcall/internal/clock"
	"github.com/agentplexus/reflectcall/internal/ids"
	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/registry"
	"github.com/agentplexus/reflectcall/internal/store/memory"
)

// stubRunner records every phoneCallID handed to Run without actually
// driving a Dialog Runtime; the webhook handlers under test never depend
// on what Run does, only that it was invoked.
type stubRunner struct {
	mu   sync.Mutex
	runs []string
}

func (r *stubRunner) Run(ctx context.Context, phoneCallID string) {
	r.mu.Lock()
	r.runs = append(r.runs, phoneCallID)
	r.mu.Unlock()
}

func newTestEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()
	enc, err := crypto.New([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("crypto.New: %v", err)
	}
	return enc
}

func newTestHandler(t *testing.T) (*Handler, *memory.Store, *telephony.Mock, *clock.Fake) {
	t.Helper()
	st := memory.New()
	tel := telephony.NewMock()
	ttsMock := tts.NewMock([]byte("audio"))
	clk := clock.NewFake(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	ttsCache, err := tts.NewCache(ttsMock, "https://calls.example.com/audio", 16, time.Hour, clk)
	if err != nil {
		t.Fatalf("tts.NewCache: %v", err)
	}
	enc := newTestEncryptor(t)
	h := New(Config{BaseURL: "https://calls.example.com"}, st, tel, ttsCache, enc, clk, registry.New(), &stubRunner{}, nil)
	return h, st, tel, clk
}

func postForm(t *testing.T, handler http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func seedPhoneCall(t *testing.T, st *memory.Store, status models.PhoneCallStatus, providerCallSID string) *models.PhoneCall {
	t.Helper()
	pc := &models.PhoneCall{
		ID:                  ids.New(),
		UserID:              "user-1",
		ReflectionSessionID: "sess-" + ids.New(),
		ProviderCallSID:     providerCallSID,
		Status:              status,
		Prompts:             []models.PromptSnapshot{{PromptID: "p1", PromptText: "How was today?"}},
		InitiatedAt:         time.Now().UTC(),
	}
	if err := st.CreatePhoneCall(context.Background(), pc); err != nil {
		t.Fatalf("CreatePhoneCall: %v", err)
	}
	return pc
}
