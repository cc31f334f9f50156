package telephony

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a scriptable, in-memory Provider used by tests and by
// USE_MOCKS=1 operation. Each placed call gets a deterministic SID;
// behavior (answered/no-answer/etc.) is driven by the test posting the
// provider's callbacks to the webhook front.
type Mock struct {
	mu            sync.Mutex
	nextSID       int
	placed        []PlaceCallParams
	sids          map[string]PlaceCallParams
	ended         map[string]bool
	instructions  map[string][]Instructions
	failNextCalls int
}

var _ Provider = (*Mock)(nil)

// NewMock returns an empty Mock provider.
func NewMock() *Mock {
	return &Mock{
		sids:         make(map[string]PlaceCallParams),
		ended:        make(map[string]bool),
		instructions: make(map[string][]Instructions),
	}
}

// FailNextPlaceCalls makes the next n calls to PlaceCall return an error
// instead of a SID, for testing the Dispatch Worker's retry path.
func (m *Mock) FailNextPlaceCalls(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextCalls = n
}

func (m *Mock) PlaceCall(ctx context.Context, p PlaceCallParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNextCalls > 0 {
		m.failNextCalls--
		return "", fmt.Errorf("mock: simulated provider failure")
	}
	m.nextSID++
	sid := fmt.Sprintf("mock-call-sid-%d", m.nextSID)
	m.placed = append(m.placed, p)
	m.sids[sid] = p
	return sid, nil
}

func (m *Mock) EndCall(ctx context.Context, providerCallSID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sids[providerCallSID]; !ok {
		return ErrUnknownCall
	}
	m.ended[providerCallSID] = true
	return nil
}

func (m *Mock) SendInlineInstructions(ctx context.Context, providerCallSID string, instr Instructions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sids[providerCallSID]; !ok {
		return ErrUnknownCall
	}
	m.instructions[providerCallSID] = append(m.instructions[providerCallSID], instr)
	return nil
}

// PlacedCalls returns every PlaceCall invocation so far, in order.
func (m *Mock) PlacedCalls() []PlaceCallParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PlaceCallParams, len(m.placed))
	copy(out, m.placed)
	return out
}

// Ended reports whether EndCall was called for sid.
func (m *Mock) Ended(sid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended[sid]
}

// InstructionsFor returns every instruction set pushed to sid, in order.
func (m *Mock) InstructionsFor(sid string) []Instructions {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Instructions, len(m.instructions[sid]))
	copy(out, m.instructions[sid])
	return out
}

// Render renders instr as a simple human-readable summary carrying its Kind
// and AudioURL; the webhook tests match on the Kind inside this string.
func (m *Mock) Render(instr Instructions) string {
	return fmt.Sprintf("mock-instructions:%s:%s", instr.Kind, instr.AudioURL)
}
