package llm

import "context"

var _ Provider = (*Mock)(nil)

// Mock is a scriptable Provider for deterministic dialog-runtime tests.
// CompletionResults and Ratings are consumed in order, one per call; once
// exhausted, CheckCompletion reports incomplete and ExtractRating reports
// no confident rating, matching the provider's conservative-failure
// contract.
type Mock struct {
	CompletionResults []CompletionCheck
	Ratings           []MockRating

	completionCalls int
	ratingCalls     int
}

// MockRating is one scripted ExtractRating outcome.
type MockRating struct {
	Rating int
	OK     bool
}

func (m *Mock) CheckCompletion(ctx context.Context, prompt, response string) (CompletionCheck, error) {
	if m.completionCalls < len(m.CompletionResults) {
		r := m.CompletionResults[m.completionCalls]
		m.completionCalls++
		return r, nil
	}
	m.completionCalls++
	return CompletionCheck{Complete: false}, nil
}

func (m *Mock) ExtractRating(ctx context.Context, response string) (int, bool, error) {
	if m.ratingCalls < len(m.Ratings) {
		r := m.Ratings[m.ratingCalls]
		m.ratingCalls++
		return r.Rating, r.OK, nil
	}
	m.ratingCalls++
	return 0, false, nil
}
