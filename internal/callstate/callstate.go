// Package callstate is the legal transition table for a PhoneCall's
// lifecycle (spec §4.3). It holds no state of its own — state lives in the
// store — callers use Transition to validate a move before issuing the
// store's CAS update, the same pattern the teacher uses for
// callsystem.Call's own status field (pkg/callmanager/manager.go's
// waitForAnswer loop).
package callstate

import (
	"fmt"

	"github.com/agentplexus/reflectcall/internal/models"
)

// Event is an input that may move a PhoneCall between statuses.
type Event string

const (
	EventAnswered        Event = "answered"
	EventPromptsExhausted Event = "prompts_exhausted"
	EventUserHangup      Event = "user_hangup"
	EventProviderError   Event = "provider_error"
	EventNoAnswer        Event = "no_answer"
	EventBusy            Event = "busy"
	EventDispatchFailed  Event = "dispatch_failed"
)

type transitionKey struct {
	from  models.PhoneCallStatus
	event Event
}

// legal enumerates every (from, event) -> to move in spec §4.3's diagram.
// Anything absent from this table is illegal.
var legal = map[transitionKey]models.PhoneCallStatus{
	{models.PhoneCallInitiated, EventAnswered}:        models.PhoneCallConnected,
	{models.PhoneCallInitiated, EventNoAnswer}:        models.PhoneCallFailed,
	{models.PhoneCallInitiated, EventBusy}:            models.PhoneCallFailed,
	{models.PhoneCallInitiated, EventProviderError}:   models.PhoneCallFailed,
	{models.PhoneCallInitiated, EventDispatchFailed}:  models.PhoneCallFailed,
	{models.PhoneCallConnected, EventPromptsExhausted}: models.PhoneCallCompleted,
	{models.PhoneCallConnected, EventUserHangup}:      models.PhoneCallAbandoned,
	{models.PhoneCallConnected, EventProviderError}:   models.PhoneCallFailed,
}

// ErrIllegalTransition is returned by Transition for any (from, event) pair
// not present in the spec's diagram, including any transition out of a
// terminal status (terminal statuses are sticky — spec §4.3).
type ErrIllegalTransition struct {
	From  models.PhoneCallStatus
	Event Event
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("callstate: illegal transition: %s on event %q", e.From, e.Event)
}

// Transition returns the status a PhoneCall currently in from moves to on
// event, or ErrIllegalTransition if no such move exists.
func Transition(from models.PhoneCallStatus, event Event) (models.PhoneCallStatus, error) {
	if from.IsTerminal() {
		return "", &ErrIllegalTransition{From: from, Event: event}
	}
	to, ok := legal[transitionKey{from: from, event: event}]
	if !ok {
		return "", &ErrIllegalTransition{From: from, Event: event}
	}
	return to, nil
}

// CanTransition reports whether Transition would succeed, without
// constructing an error value — used by callers that only need a boolean
// guard (e.g. the webhook front deciding whether a status webhook's
// "completed" event should finalize the call or is a no-op race against
// the runtime's own finalize).
func CanTransition(from models.PhoneCallStatus, event Event) bool {
	_, err := Transition(from, event)
	return err == nil
}
