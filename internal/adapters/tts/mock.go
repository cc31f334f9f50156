package tts

import "context"

var _ Provider = (*Mock)(nil)

// Mock returns a fixed, deterministic payload per call so tests can assert
// on Calls without depending on real audio bytes.
type Mock struct {
	Audio []byte
	Calls []MockCall
}

// MockCall records one Synthesize invocation.
type MockCall struct {
	Text   string
	Params Params
}

// NewMock returns a Mock that always synthesizes the given fixed payload.
func NewMock(audio []byte) *Mock {
	if audio == nil {
		audio = []byte("mock-audio")
	}
	return &Mock{Audio: audio}
}

func (m *Mock) Synthesize(ctx context.Context, text string, p Params) ([]byte, error) {
	m.Calls = append(m.Calls, MockCall{Text: text, Params: p})
	return m.Audio, nil
}
