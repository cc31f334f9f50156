package stt

import "context"

// Mock is a scriptable Provider: each OpenStream call consumes the next
// queued script, letting tests drive exact transcript sequences (spec §8
// end-to-end scenarios rely on this to script "My family" / pause / ... ).
type Mock struct {
	scripts []Script
	next    int
}

var _ Provider = (*Mock)(nil)

// Script is a scripted sequence of events replayed on a stream, paced by
// the test driving a fake clock alongside them (the mock itself does not
// sleep; callers push events and advance the clock in lockstep).
type Script struct {
	Events []Event
}

// NewMock returns a Mock with the given queued scripts, consumed in order
// by successive OpenStream calls (one per dialog turn in this engine).
func NewMock(scripts ...Script) *Mock {
	return &Mock{scripts: scripts}
}

func (m *Mock) OpenStream(ctx context.Context, cfg Config) (Stream, error) {
	var script Script
	if m.next < len(m.scripts) {
		script = m.scripts[m.next]
	}
	m.next++
	events := make(chan Event, len(script.Events)+1)
	for _, e := range script.Events {
		events <- e
	}
	return &mockStream{events: events}, nil
}

type mockStream struct {
	events chan Event
	closed bool
}

func (s *mockStream) WriteAudio(frame []byte) error { return nil }

func (s *mockStream) Events() <-chan Event { return s.events }

func (s *mockStream) Close() error {
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// Push injects an additional event into an already-open stream; used by
// tests that want to drive events interleaved with clock advances rather
// than all pre-queued.
func Push(s Stream, e Event) {
	if ms, ok := s.(*mockStream); ok {
		ms.events <- e
	}
}
