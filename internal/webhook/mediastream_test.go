package webhook

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/registry"
)

func dialMediaStream(t *testing.T, h *Handler) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(h.MediaStream))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial media stream: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition never became true")
}

func TestMediaStreamRejectsCallNotConnected(t *testing.T) {
	h, st, _, _ := newTestHandler(t)
	seedPhoneCall(t, st, models.PhoneCallInitiated, "CA123")

	conn := dialMediaStream(t, h)
	if err := conn.WriteJSON(streamFrame{Event: "start", Start: &streamStart{CallSID: "CA123"}}); err != nil {
		t.Fatalf("write start frame: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the server to close the socket for a non-CONNECTED call")
	}
}

func TestMediaStreamHandoffDeliversAudioAndMarks(t *testing.T) {
	h, st, _, _ := newTestHandler(t)
	pc := seedPhoneCall(t, st, models.PhoneCallConnected, "CA456")

	conn := dialMediaStream(t, h)
	if err := conn.WriteJSON(streamFrame{Event: "start", Start: &streamStart{CallSID: "CA456"}}); err != nil {
		t.Fatalf("write start frame: %v", err)
	}

	waitUntil(t, func() bool { return h.registry.Lookup(pc.ProviderCallSID) != nil })
	call := h.registry.Lookup(pc.ProviderCallSID)
	if call == nil {
		t.Fatalf("expected a live call to be registered after the start frame")
	}

	payload := base64.StdEncoding.EncodeToString([]byte{0xAA, 0xBB, 0xCC})
	if err := conn.WriteJSON(streamFrame{Event: "media", Media: &streamMedia{Payload: payload}}); err != nil {
		t.Fatalf("write media frame: %v", err)
	}
	select {
	case frame := <-call.Inbound:
		if len(frame) != 3 || frame[0] != 0xAA {
			t.Fatalf("unexpected audio frame: %v", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for inbound audio frame")
	}

	if err := conn.WriteJSON(streamFrame{Event: "mark", Mark: &streamMark{Name: "prompt-1"}}); err != nil {
		t.Fatalf("write mark frame: %v", err)
	}
	select {
	case e := <-call.Events:
		if e.Kind != registry.EventPlaybackComplete {
			t.Fatalf("expected playback-complete event, got %v", e.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for mark event")
	}

	if err := conn.WriteJSON(streamFrame{Event: "stop"}); err != nil {
		t.Fatalf("write stop frame: %v", err)
	}
	waitUntil(t, func() bool { return h.registry.Lookup(pc.ProviderCallSID) == nil })
}
