// Package stt is the capability interface for streaming speech-to-text
// (spec §4.1). A Stream is a duplex handle: write audio frames in, receive
// transcript events out-of-band.
package stt

import "context"

// Config configures one streaming transcription session.
type Config struct {
	Encoding   string // "mulaw"
	SampleRate int    // 8000
	Channels   int    // 1
	Language   string
	Punctuate  bool
	Interim    bool
}

// Event is one transcript delivery. IsFinal distinguishes a settled segment
// (appended to the response buffer) from an interim one (buffer untouched,
// only lastSpeechTime moves — spec §4.4 step 2).
type Event struct {
	Text    string
	IsFinal bool
	Error   error
}

// Stream is a duplex STT session. Reconnects within the stream's lifetime
// are the adapter's problem, not the caller's (spec §4.1).
type Stream interface {
	WriteAudio(frame []byte) error
	Events() <-chan Event
	Close() error
}

// Provider opens streaming transcription sessions.
type Provider interface {
	OpenStream(ctx context.Context, cfg Config) (Stream, error)
}
