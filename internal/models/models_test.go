package models

import "testing"

func TestScheduledCallStatusIsTerminal(t *testing.T) {
	cases := map[ScheduledCallStatus]bool{
		ScheduledCallPending:    false,
		ScheduledCallInProgress: false,
		ScheduledCallCompleted:  true,
		ScheduledCallFailed:     true,
		ScheduledCallCancelled:  true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestReflectionSessionStatusIsTerminal(t *testing.T) {
	cases := map[ReflectionSessionStatus]bool{
		SessionInProgress: false,
		SessionCompleted:  true,
		SessionAbandoned:  true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestPhoneCallStatusIsTerminal(t *testing.T) {
	cases := map[PhoneCallStatus]bool{
		PhoneCallInitiated: false,
		PhoneCallConnected: false,
		PhoneCallCompleted: true,
		PhoneCallFailed:    true,
		PhoneCallAbandoned: true,
	}
	for status, want := range cases {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestNonRatingPromptCount(t *testing.T) {
	pc := &PhoneCall{
		Prompts: []PromptSnapshot{
			{PromptID: "p1", PromptText: "q1"},
			{PromptID: "p2", PromptText: "q2"},
			{PromptID: "rating", PromptText: "Rate your day", IsRatingPrompt: true},
		},
	}
	if got := pc.NonRatingPromptCount(); got != 2 {
		t.Fatalf("NonRatingPromptCount() = %d, want 2", got)
	}
}

func TestNonRatingPromptCountWithNoRatingPrompt(t *testing.T) {
	pc := &PhoneCall{
		Prompts: []PromptSnapshot{
			{PromptID: "p1", PromptText: "q1"},
		},
	}
	if got := pc.NonRatingPromptCount(); got != 1 {
		t.Fatalf("NonRatingPromptCount() = %d, want 1", got)
	}
}

func TestNonRatingPromptCountEmpty(t *testing.T) {
	pc := &PhoneCall{}
	if got := pc.NonRatingPromptCount(); got != 0 {
		t.Fatalf("NonRatingPromptCount() = %d, want 0", got)
	}
}
