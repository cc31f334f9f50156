// Package tts is the capability interface for text-to-speech (spec §4.1).
// Synthesize renders a full utterance to a single audio blob (rather than
// streaming chunks straight to the call) because the dialog runtime needs
// a stable, cacheable audio URL it can hand to the telephony provider's
// Play instruction and re-host on retries.
package tts

import "context"

// Params selects voice and delivery characteristics for one synthesis.
// Rate and Pitch are percentages around 100 (100 = provider default).
type Params struct {
	Voice string
	Model string
	Rate  int
	Pitch int
}

// Provider synthesizes speech audio for a prompt or closing line.
type Provider interface {
	// Synthesize renders text to mu-law, 8kHz audio suitable for telephony
	// playback (spec §4.1, §4.4).
	Synthesize(ctx context.Context, text string, p Params) ([]byte, error)
}
