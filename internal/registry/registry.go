// Package registry holds the process-wide live-call registry (spec §5:
// "No global mutable state besides the TTS cache, the per-SID live-call
// registry ... and the DB client"). The media-stream WebSocket handler
// registers a Call when Twilio's `start` frame arrives and the Dialog
// Runtime looks it up by providerCallSid to attach its duplex audio loop.
package registry

import (
	"sync"
)

// Call is one live call's inbound/outbound audio plumbing, handed off from
// the webhook front's WebSocket handler to the Dialog Runtime.
type Call struct {
	ProviderCallSID string

	// Inbound carries raw mu-law frames read off the media-stream WebSocket.
	// The runtime's listen loop drains this and writes each frame to the STT
	// stream.
	Inbound chan []byte

	// Events carries provider signals the runtime's turn loop reacts to:
	// playback-complete (to stop waiting on step 1 of the turn loop) and
	// barge-in (inbound audio energy detected during playback, spec §4.4
	// step 1).
	Events chan Event

	mu     sync.Mutex
	closed bool
}

// EventKind distinguishes the two provider signals a live Call relays.
type EventKind string

const (
	EventPlaybackComplete EventKind = "playback_complete"
	EventBargeIn          EventKind = "barge_in"
)

// Event is one provider signal delivered to the Dialog Runtime's turn loop.
type Event struct {
	Kind EventKind
}

// Close marks the call's channels closed. Safe to call more than once.
func (c *Call) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Inbound)
	close(c.Events)
}

// PushAudio delivers one inbound frame to the call's Inbound channel,
// dropping it if the channel is full rather than blocking the WebSocket
// read loop (a slow STT consumer should not stall media-stream ingestion).
func (c *Call) PushAudio(frame []byte) {
	select {
	case c.Inbound <- frame:
	default:
	}
}

// PushEvent delivers one provider event, dropping it if the channel is full.
func (c *Call) PushEvent(e Event) {
	select {
	case c.Events <- e:
	default:
	}
}

// Registry maps a live providerCallSid to its Call handle.
type Registry struct {
	mu    sync.RWMutex
	calls map[string]*Call
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{calls: make(map[string]*Call)}
}

// Register creates and stores a new live Call for sid, replacing any prior
// entry (a SID is only ever reused across retries for the same phone
// number, never concurrently).
func (r *Registry) Register(sid string) *Call {
	c := &Call{
		ProviderCallSID: sid,
		Inbound:         make(chan []byte, 64),
		Events:          make(chan Event, 8),
	}
	r.mu.Lock()
	r.calls[sid] = c
	r.mu.Unlock()
	return c
}

// Lookup returns the live Call for sid, or nil if none is registered (spec
// §4.7: the media-stream handler must verify the SID belongs to a CONNECTED
// PhoneCall before handing the connection to the runtime).
func (r *Registry) Lookup(sid string) *Call {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls[sid]
}

// Unregister removes and closes the live Call for sid, if present.
func (r *Registry) Unregister(sid string) {
	r.mu.Lock()
	c, ok := r.calls[sid]
	delete(r.calls, sid)
	r.mu.Unlock()
	if ok {
		c.Close()
	}
}
