package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentplexus/reflectcall/internal/clock"
)

// clip is one hosted synthesis result.
type clip struct {
	audio   []byte
	expires time.Time
}

// Cache memoizes synthesized audio by (text, voice, rate, pitch) and hosts
// it under opaque URLs the telephony provider's Play instruction can fetch
// (spec §4.1/§5: the TTS cache is one of the only pieces of process-wide
// mutable state, alongside the live-call registry and the DB client).
// Entries expire after ttl so a long-running process doesn't retain the
// full prompt/voice catalog forever.
type Cache struct {
	inner   Provider
	baseURL string
	ttl     time.Duration
	clock   clock.Clock

	mu   sync.Mutex
	lru  *lru.Cache[string, *clip]
}

// NewCache wraps inner with an in-memory LRU cache of the given capacity.
// baseURL is the externally reachable prefix clips are hosted under, e.g.
// "https://reflectcall.example.com/audio".
func NewCache(inner Provider, baseURL string, capacity int, ttl time.Duration, c clock.Clock) (*Cache, error) {
	l, err := lru.New[string, *clip](capacity)
	if err != nil {
		return nil, fmt.Errorf("tts: create cache: %w", err)
	}
	return &Cache{inner: inner, baseURL: baseURL, ttl: ttl, clock: c, lru: l}, nil
}

// SynthesizeURL synthesizes (or reuses a cached synthesis of) text and
// returns a URL the telephony provider can fetch the resulting audio from.
func (c *Cache) SynthesizeURL(ctx context.Context, text string, p Params) (string, error) {
	key := cacheKey(text, p)

	c.mu.Lock()
	cl, ok := c.lru.Get(key)
	if ok && c.clock.Now().After(cl.expires) {
		c.lru.Remove(key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		audio, err := c.inner.Synthesize(ctx, text, p)
		if err != nil {
			return "", err
		}
		cl = &clip{audio: audio, expires: c.clock.Now().Add(c.ttl)}
		c.mu.Lock()
		c.lru.Add(key, cl)
		c.mu.Unlock()
	}

	return fmt.Sprintf("%s/%s.ulaw", c.baseURL, key), nil
}

// Lookup returns the cached audio for a URL previously minted by
// SynthesizeURL, for the HTTP handler that serves /audio/{key}.ulaw.
func (c *Cache) Lookup(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.lru.Get(key)
	if !ok || c.clock.Now().After(cl.expires) {
		return nil, false
	}
	return cl.audio, true
}

func cacheKey(text string, p Params) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(p.Voice))
	h.Write([]byte{0})
	h.Write([]byte(p.Model))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d:%d", p.Rate, p.Pitch)
	return hex.EncodeToString(h.Sum(nil))
}
