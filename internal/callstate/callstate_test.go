package callstate

import (
	"testing"

	"github.com/agentplexus/reflectcall/internal/models"
)

func TestTransitionLegalMoves(t *testing.T) {
	cases := []struct {
		from  models.PhoneCallStatus
		event Event
		want  models.PhoneCallStatus
	}{
		{models.PhoneCallInitiated, EventAnswered, models.PhoneCallConnected},
		{models.PhoneCallInitiated, EventNoAnswer, models.PhoneCallFailed},
		{models.PhoneCallInitiated, EventBusy, models.PhoneCallFailed},
		{models.PhoneCallConnected, EventPromptsExhausted, models.PhoneCallCompleted},
		{models.PhoneCallConnected, EventUserHangup, models.PhoneCallAbandoned},
		{models.PhoneCallConnected, EventProviderError, models.PhoneCallFailed},
	}
	for _, c := range cases {
		got, err := Transition(c.from, c.event)
		if err != nil {
			t.Errorf("Transition(%s, %s): unexpected error: %v", c.from, c.event, err)
			continue
		}
		if got != c.want {
			t.Errorf("Transition(%s, %s) = %s, want %s", c.from, c.event, got, c.want)
		}
	}
}

func TestTransitionIllegalMoves(t *testing.T) {
	cases := []struct {
		from  models.PhoneCallStatus
		event Event
	}{
		{models.PhoneCallInitiated, EventPromptsExhausted},
		{models.PhoneCallConnected, EventAnswered},
		{models.PhoneCallConnected, EventNoAnswer},
	}
	for _, c := range cases {
		if _, err := Transition(c.from, c.event); err == nil {
			t.Errorf("Transition(%s, %s): expected error, got nil", c.from, c.event)
		}
	}
}

func TestTerminalStatusesAreSticky(t *testing.T) {
	terminal := []models.PhoneCallStatus{
		models.PhoneCallCompleted,
		models.PhoneCallFailed,
		models.PhoneCallAbandoned,
	}
	events := []Event{EventAnswered, EventPromptsExhausted, EventUserHangup, EventProviderError}
	for _, status := range terminal {
		for _, ev := range events {
			if CanTransition(status, ev) {
				t.Errorf("CanTransition(%s, %s) = true, want false (terminal statuses are sticky)", status, ev)
			}
		}
	}
}
