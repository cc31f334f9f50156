package webhook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/agentplexus/reflectcall/internal/models"
	"github.com/agentplexus/reflectcall/internal/registry"
)

// upgrader accepts the provider's media-stream connection from any origin,
// matching the teacher corpus's gorilla/websocket control-plane upgrader
// (haasonsaas-nexus's internal/gateway/ws_control_plane.go): the provider,
// not a browser, is the caller, so there is no third-party origin to police.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// streamFrame is one JSON control frame of the provider's media-stream
// protocol (spec §6: "{event: start|media|mark|stop, ...}", media.payload
// base64 μ-law).
type streamFrame struct {
	Event string        `json:"event"`
	Start *streamStart  `json:"start,omitempty"`
	Media *streamMedia  `json:"media,omitempty"`
	Mark  *streamMark   `json:"mark,omitempty"`
}

type streamStart struct {
	CallSID string `json:"callSid"`
}

type streamMedia struct {
	Payload string `json:"payload"` // base64 mu-law/8kHz
}

type streamMark struct {
	Name string `json:"name"`
}

// MediaStream upgrades the HTTP request and pumps the duplex audio/control
// protocol into a registered registry.Call, spawning the Dialog Runtime
// once the start frame verifies the SID belongs to a CONNECTED PhoneCall
// (spec §4.7).
func (h *Handler) MediaStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Printf("webhook: media stream: upgrade: %v", err)
		return
	}
	defer conn.Close()

	pc, live, ok := h.awaitStart(conn)
	if !ok {
		return
	}
	defer h.registry.Unregister(pc.ProviderCallSID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.runtime.Run(ctx, pc.ID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			live.Close()
			return
		}
		var frame streamFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		switch frame.Event {
		case "media":
			if frame.Media == nil {
				continue
			}
			audio, err := base64.StdEncoding.DecodeString(frame.Media.Payload)
			if err != nil {
				continue
			}
			live.PushAudio(audio)
		case "mark":
			live.PushEvent(registry.Event{Kind: registry.EventPlaybackComplete})
		case "stop":
			live.Close()
			return
		}
	}
}

// awaitStart blocks until the provider's "start" frame arrives (or the
// socket closes), validates the call, and registers a live registry.Call.
func (h *Handler) awaitStart(conn *websocket.Conn) (*models.PhoneCall, *registry.Call, bool) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, nil, false
		}
		var frame streamFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Event != "start" || frame.Start == nil {
			continue
		}

		pc, err := h.store.GetPhoneCallBySID(context.Background(), frame.Start.CallSID)
		if err != nil {
			h.log.Printf("webhook: media stream: unknown call sid %s: %v", frame.Start.CallSID, err)
			return nil, nil, false
		}
		if pc.Status != models.PhoneCallConnected {
			h.log.Printf("webhook: media stream: call %s is not CONNECTED (status %s)", pc.ID, pc.Status)
			return nil, nil, false
		}
		return pc, h.registry.Register(pc.ProviderCallSID), true
	}
}
