// Package telephony is the capability interface for the outbound call
// provider (spec §4.1). Nothing downstream holds a concrete provider type;
// components receive a Provider via construction so tests substitute Mock.
package telephony

import (
	"context"
	"errors"
)

// PlaceCallParams is everything needed to originate one outbound call.
type PlaceCallParams struct {
	ToE164             string
	FromE164           string
	AnswerCallbackURL  string
	StatusCallbackURL  string
}

// InstructionKind enumerates the shapes of inline instructions the provider
// accepts mid-call (spec §4.4's "one atomic set of inline instructions").
type InstructionKind string

const (
	InstructionPlayThenContinue InstructionKind = "play_then_continue"
	InstructionPlayThenListen   InstructionKind = "play_then_listen"
	InstructionOpenMediaStream  InstructionKind = "open_media_stream"
	InstructionPlayThenHangup   InstructionKind = "play_then_hangup"
	// InstructionGreetThenOpenMediaStream is the answer webhook's one-shot
	// response: play the greeting, then open the bidirectional media
	// stream the Dialog Runtime will read/write (spec §4.7, §6).
	InstructionGreetThenOpenMediaStream InstructionKind = "greet_then_open_media_stream"
)

// Instructions is a single ordered set of actions pushed to an in-progress
// call, the Go-side analogue of the TwiML-like XML document described in
// spec §6.
type Instructions struct {
	Kind           InstructionKind
	AudioURL       string
	MediaStreamURL string // ws:// or wss://, scheme must match BASE_URL's
	NextWebhookURL string
}

// EventKind enumerates the inbound webhook event kinds (spec §4.1).
type EventKind string

const (
	EventInitiated          EventKind = "initiated"
	EventRinging            EventKind = "ringing"
	EventAnswered           EventKind = "answered"
	EventCompleted          EventKind = "completed"
	EventBusy               EventKind = "busy"
	EventNoAnswer           EventKind = "no-answer"
	EventFailed             EventKind = "failed"
	EventRecordingAvailable EventKind = "recording-available"
)

// InboundEvent is one parsed provider webhook delivery.
type InboundEvent struct {
	Kind            EventKind
	ProviderCallSID string
	From            string
	To              string
	RecordingURL    string
}

// ErrUnknownCall is returned by EndCall/SendInlineInstructions when the
// provider has no record of the given SID (already ended, or never valid).
var ErrUnknownCall = errors.New("telephony: unknown provider call sid")

// Provider places and controls outbound calls (spec §4.1 Telephony).
type Provider interface {
	// PlaceCall originates a call and returns the provider's call SID
	// synchronously, before the provider has started ringing — this is
	// what lets the dispatcher write the PhoneCall row keyed by the real
	// SID before any webhook can reference it (spec §4.3, §9).
	PlaceCall(ctx context.Context, p PlaceCallParams) (providerCallSID string, err error)
	EndCall(ctx context.Context, providerCallSID string) error
	SendInlineInstructions(ctx context.Context, providerCallSID string, instr Instructions) error
	// Render renders instr into the wire document the provider's answer
	// webhook must return synchronously (TwiML for Twilio), so the webhook
	// front never needs a concrete provider type (spec §4.7, §6).
	Render(instr Instructions) string
}
