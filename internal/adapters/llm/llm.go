// Package llm is the capability interface for the two narrow judgments the
// dialog runtime asks a language model to make (spec §4.4): whether a
// user's spoken answer has reached a natural completion point, and what
// numeric rating a user expressed in response to the closing rating
// prompt. Both are framed as single-turn completions over a fixed system
// prompt rather than open-ended chat, so the interface stays small.
package llm

import "context"

// CompletionConfidenceThreshold is the minimum model confidence spec §4.4
// step 3 requires ("isComplete ∧ confidence≥0.6") before a Provider may
// report CompletionCheck.Complete = true.
const CompletionConfidenceThreshold = 0.6

// RatingConfidenceThreshold is the minimum model confidence spec §4.4 step 4
// requires ("rating≠null ∧ confidence≥0.5") before a Provider may report
// ExtractRating's ok = true.
const RatingConfidenceThreshold = 0.5

// CompletionCheck is the model's judgment about whether a response is done.
type CompletionCheck struct {
	// Complete is true when the response reads as a finished thought rather
	// than a trailing-off or mid-sentence utterance (spec §4.4 step 3's
	// "soft" endpointing signal, used only once PAUSE_MIN has elapsed).
	// Implementations must have already gated this at CompletionConfidenceThreshold;
	// callers never see the raw model confidence below that bar as true.
	Complete bool
	// Confidence is the model's own confidence in Complete, kept for logging
	// and tests; callers should trust Complete rather than re-threshold this.
	Confidence float64
	Reason     string
}

// Provider performs the two dialog-runtime LLM judgments. Implementations
// must tolerate ambiguous or malformed model output by returning a
// conservative answer (Complete: false, rating: false) rather than erroring,
// since endpointing must never block forever on a flaky provider (spec
// §4.4: "on STT/LLM provider errors mid-turn, fall back to PAUSE_HARD").
type Provider interface {
	// CheckCompletion judges whether response is a finished answer to prompt.
	CheckCompletion(ctx context.Context, prompt, response string) (CompletionCheck, error)

	// ExtractRating parses a signed -2..2 integer rating out of a spoken
	// response to the closing rating prompt. ok is false when no rating was
	// discernible, or when the model's confidence fell below
	// RatingConfidenceThreshold (spec §4.6: an unparseable or low-confidence
	// rating leaves Rating unset rather than guessing).
	ExtractRating(ctx context.Context, response string) (rating int, ok bool, err error)
}
