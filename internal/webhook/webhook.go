// Package webhook is the HTTP front (spec §4.7): plain net/http handlers
// translating provider callbacks and the media-stream WebSocket upgrade
// into Call State Machine events, grounded on the teacher's
// cmd/agentcall/main.go setupTwilioWebhooks (form-encoded /status handler,
// XML answer response, WebSocket handoff to the transport adapter).
package webhook

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/agentplexus/reflectcall/internal/adapters/crypto"
	"github.com/agentplexus/reflectcall/internal/adapters/telephony"
	"github.com/agentplexus/reflectcall/internal/adapters/tts"
	"github.com/agentplexus/reflectcall/internal/callstate"
	"github.com/agentplexus/reflectcall/internal/clock"
	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/registry"
	"github.com/agentplexus/reflectcall/internal/scheduler"
	"github.com/agentplexus/reflectcall/internal/store"
)

// runner is the slice of *dialog.Runtime the webhook front depends on; kept
// as a local interface so this package never imports the dialog package's
// full surface.
type runner interface {
	Run(ctx context.Context, phoneCallID string)
}

// Config carries the webhook front's own tunables (spec §4.7, §6).
type Config struct {
	BaseURL           string // e.g. "https://calls.example.com"
	MediaStreamPath   string // default "/media-stream"
	RetryBackoff      time.Duration
	TTSVoice, TTSModel string
}

func defaultConfig(cfg Config) Config {
	if cfg.MediaStreamPath == "" {
		cfg.MediaStreamPath = "/media-stream"
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 5 * time.Minute
	}
	return cfg
}

// Handler wires the provider's HTTP callbacks to persistence and the
// Dialog Runtime.
type Handler struct {
	cfg       Config
	store     store.Store
	telephony telephony.Provider
	ttsCache  *tts.Cache
	crypto    *crypto.Encryptor
	clock     clock.Clock
	registry  *registry.Registry
	runtime   runner
	log       *log.Logger
}

// New constructs a Handler.
func New(cfg Config, st store.Store, tel telephony.Provider, ttsCache *tts.Cache, enc *crypto.Encryptor, clk clock.Clock, reg *registry.Registry, rt runner, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		cfg:       defaultConfig(cfg),
		store:     st,
		telephony: tel,
		ttsCache:  ttsCache,
		crypto:    enc,
		clock:     clk,
		registry:  reg,
		runtime:   rt,
		log:       logger,
	}
}

// Register wires the handlers onto mux using the teacher's plain
// net/http.HandleFunc routing style.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/voice/answer", h.Answer)
	mux.HandleFunc("/voice/status", h.Status)
	mux.HandleFunc("/voice/recording", h.Recording)
	mux.HandleFunc(h.cfg.MediaStreamPath, h.MediaStream)
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func formValue(r *http.Request, key string) (string, error) {
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.FormValue(key), nil
}

func (h *Handler) streamURLFor(providerCallSID string) string {
	scheme := "wss"
	base := h.cfg.BaseURL
	if len(base) >= 7 && base[:7] == "http://" {
		scheme = "ws"
		base = base[len("http://"):]
	} else if len(base) >= 8 && base[:8] == "https://" {
		base = base[len("https://"):]
	}
	return scheme + "://" + base + h.cfg.MediaStreamPath + "?sid=" + providerCallSID
}
