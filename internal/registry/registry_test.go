package registry

import "testing"

func TestRegisterLookupUnregister(t *testing.T) {
	r := New()

	if got := r.Lookup("CA1"); got != nil {
		t.Fatalf("expected nil for unregistered sid, got %+v", got)
	}

	c := r.Register("CA1")
	if c.ProviderCallSID != "CA1" {
		t.Fatalf("expected ProviderCallSID CA1, got %s", c.ProviderCallSID)
	}
	if got := r.Lookup("CA1"); got != c {
		t.Fatalf("expected Lookup to return the registered Call")
	}

	r.Unregister("CA1")
	if got := r.Lookup("CA1"); got != nil {
		t.Fatalf("expected nil after Unregister, got %+v", got)
	}
}

func TestUnregisterUnknownSidIsNoop(t *testing.T) {
	r := New()
	r.Unregister("does-not-exist")
}

func TestRegisterReplacesPriorEntry(t *testing.T) {
	r := New()
	first := r.Register("CA1")
	second := r.Register("CA1")
	if first == second {
		t.Fatalf("expected Register to create a fresh Call on reuse")
	}
	if got := r.Lookup("CA1"); got != second {
		t.Fatalf("expected Lookup to return the latest registration")
	}
}

func TestPushAudioDeliversFrame(t *testing.T) {
	c := &Call{Inbound: make(chan []byte, 1), Events: make(chan Event, 1)}
	c.PushAudio([]byte{1, 2, 3})
	select {
	case frame := <-c.Inbound:
		if len(frame) != 3 {
			t.Fatalf("expected 3-byte frame, got %v", frame)
		}
	default:
		t.Fatalf("expected frame to be delivered")
	}
}

func TestPushAudioDropsWhenFull(t *testing.T) {
	c := &Call{Inbound: make(chan []byte, 1), Events: make(chan Event, 1)}
	c.PushAudio([]byte{1})
	c.PushAudio([]byte{2}) // channel full, must drop rather than block
	frame := <-c.Inbound
	if frame[0] != 1 {
		t.Fatalf("expected first frame to survive, got %v", frame)
	}
}

func TestPushEventDeliversEvent(t *testing.T) {
	c := &Call{Inbound: make(chan []byte, 1), Events: make(chan Event, 1)}
	c.PushEvent(Event{Kind: EventBargeIn})
	select {
	case e := <-c.Events:
		if e.Kind != EventBargeIn {
			t.Fatalf("expected EventBargeIn, got %s", e.Kind)
		}
	default:
		t.Fatalf("expected event to be delivered")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := &Call{Inbound: make(chan []byte, 1), Events: make(chan Event, 1)}
	c.Close()
	c.Close() // must not panic on double-close
}
