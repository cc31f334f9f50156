package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/agentplexus/reflectcall/internal/adapters/crypto"
	"github.com/agentplexus/reflectcall/internal/adapters/llm"
	"github.com/agentplexus/reflectcall/internal/adapters/mockdata"
	"github.com/agentplexus/reflectcall/internal/adapters/stt"
	"github.com/agentplexus/reflectcall/internal/adapters/telephony"
	"github.com/agentplexus/reflectcall/internal/adapters/tts"
	"github.com/agentplexus/reflectcall/internal/clock"
	"github.com/agentplexus/reflectcall/internal/config"
	"github.com/agentplexus/reflectcall/internal/dialog"
	"github.com/agentplexus/reflectcall/internal/registry"
	"github.com/agentplexus/reflectcall/internal/scheduler"
	"github.com/agentplexus/reflectcall/internal/store"
	"github.com/agentplexus/reflectcall/internal/store/memory"
	"github.com/agentplexus/reflectcall/internal/store/postgres"
	"github.com/agentplexus/reflectcall/internal/webhook"
)

func runServe(ctx context.Context) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Println("starting reflectcall engine...")

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	clk := clock.NewSystem()
	reg := registry.New()

	telephonyProvider, err := openTelephony(cfg)
	if err != nil {
		return fmt.Errorf("telephony provider: %w", err)
	}
	sttProvider, err := openSTT(cfg)
	if err != nil {
		return fmt.Errorf("stt provider: %w", err)
	}
	llmProvider, err := openLLM(cfg)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	ttsCache, err := openTTS(cfg, clk)
	if err != nil {
		return fmt.Errorf("tts provider: %w", err)
	}

	masterKey, err := cfg.MasterKeyBytes()
	if err != nil {
		return fmt.Errorf("master key: %w", err)
	}
	enc, err := crypto.New(masterKey)
	if err != nil {
		return fmt.Errorf("crypto: %w", err)
	}

	runtimeCfg := dialog.DefaultConfig()
	runtimeCfg.PauseMin = cfg.PauseThreshold
	runtimeCfg.TTSVoice = cfg.TTSVoice
	runtimeCfg.TTSModel = cfg.TTSModel
	runtimeCfg.STTLanguage = cfg.STTLanguage
	runtime := dialog.New(runtimeCfg, st, telephonyProvider, sttProvider, ttsCache, llmProvider, enc, clk, reg, log.New(log.Writer(), "dialog: ", log.LstdFlags))

	windowMaterializer := scheduler.NewWindowMaterializer(st, clk, cfg.WindowPoll, log.New(log.Writer(), "window: ", log.LstdFlags))
	dispatchWorker := scheduler.NewDispatchWorker(st, telephonyProvider, clk, scheduler.DispatchConfig{
		FromE164:          cfg.TelephonyFromNumber,
		AnswerCallbackURL: cfg.BaseURL + "/voice/answer",
		StatusCallbackURL: cfg.BaseURL + "/voice/status",
	}, cfg.DispatchPoll, log.New(log.Writer(), "dispatch: ", log.LstdFlags))

	mux := http.NewServeMux()
	webhookHandler := webhook.New(webhook.Config{
		BaseURL:      cfg.BaseURL,
		RetryBackoff: cfg.DispatchPoll * 20,
		TTSVoice:     cfg.TTSVoice,
		TTSModel:     cfg.TTSModel,
	}, st, telephonyProvider, ttsCache, enc, clk, reg, runtime, log.New(log.Writer(), "webhook: ", log.LstdFlags))
	webhookHandler.Register(mux)
	mux.HandleFunc("/audio/", audioHandler(ttsCache))

	windowMaterializer.Start(ctx)
	dispatchWorker.Start(ctx)
	defer windowMaterializer.Stop()
	defer dispatchWorker.Stop()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on :%d", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// audioHandler serves the synthesized clips the TTS cache hosts under
// opaque /audio/{key}.ulaw URLs (spec §4.1, tts.Cache's Lookup doc comment).
func audioHandler(c *tts.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSuffix(r.URL.Path[len("/audio/"):], ".ulaw")
		audio, ok := c.Lookup(key)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/basic")
		_, _ = w.Write(audio)
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.UseMocks {
		st := memory.New()
		fx, err := mockdata.Load(cfg.MockFixturePath)
		if err != nil {
			return nil, err
		}
		if err := mockdata.SeedInto(context.Background(), fx, st); err != nil {
			return nil, err
		}
		return st, nil
	}
	return postgres.Open(cfg.DBURL, postgres.DefaultPoolConfig())
}

func openTelephony(cfg *config.Config) (telephony.Provider, error) {
	if cfg.UseMocks {
		return telephony.NewMock(), nil
	}
	return telephony.NewTwilio(telephony.TwilioConfig{
		AccountSID: cfg.TelephonyAccountSID,
		AuthToken:  cfg.TelephonyAuthToken,
		FromNumber: cfg.TelephonyFromNumber,
	}, cfg.BaseURL)
}

func openSTT(cfg *config.Config) (stt.Provider, error) {
	if cfg.UseMocks {
		return stt.NewMock(), nil
	}
	return stt.NewDeepgram(cfg.STTKey)
}

func openLLM(cfg *config.Config) (llm.Provider, error) {
	if cfg.UseMocks {
		return &llm.Mock{}, nil
	}
	return llm.NewOpenAI(cfg.LLMKey, cfg.LLMModel)
}

func openTTS(cfg *config.Config, clk clock.Clock) (*tts.Cache, error) {
	var inner tts.Provider
	if cfg.UseMocks {
		inner = tts.NewMock([]byte("mock-audio"))
	} else {
		el, err := tts.NewElevenLabs(cfg.TTSKey)
		if err != nil {
			return nil, err
		}
		inner = el
	}
	return tts.NewCache(inner, cfg.BaseURL+"/audio", 256, time.Hour, clk)
}
