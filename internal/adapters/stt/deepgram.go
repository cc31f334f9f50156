// Live implementation wrapping omnivoice-deepgram, the same STT library the
// teacher's pkg/callmanager wires for transcription.
package stt

import (
	"context"
	"fmt"
	"io"

	omnistt "github.com/agentplexus/omnivoice/stt"
	deepgramstt "github.com/agentplexus/omnivoice-deepgram/omnivoice/stt"
)

var _ Provider = (*DeepgramProvider)(nil)

// DeepgramProvider adapts omnivoice-deepgram's streaming provider to our
// narrower stt.Provider contract.
type DeepgramProvider struct {
	inner omnistt.StreamingProvider
}

// NewDeepgram constructs a DeepgramProvider from an API key.
func NewDeepgram(apiKey string) (*DeepgramProvider, error) {
	p, err := deepgramstt.New(deepgramstt.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("stt: create deepgram provider: %w", err)
	}
	return &DeepgramProvider{inner: p}, nil
}

func (d *DeepgramProvider) OpenStream(ctx context.Context, cfg Config) (Stream, error) {
	writer, events, err := d.inner.TranscribeStream(ctx, omnistt.TranscriptionConfig{
		Language:          cfg.Language,
		Encoding:          cfg.Encoding,
		SampleRate:        cfg.SampleRate,
		Channels:          cfg.Channels,
		EnablePunctuation: cfg.Punctuate,
	})
	if err != nil {
		return nil, fmt.Errorf("stt: open stream: %w", err)
	}
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		for ev := range events {
			if ev.Error != nil {
				out <- Event{Error: ev.Error}
				continue
			}
			out <- Event{Text: ev.Transcript, IsFinal: ev.IsFinal}
		}
	}()
	return &deepgramStream{writer: writer, events: out}, nil
}

type deepgramStream struct {
	writer io.WriteCloser
	events chan Event
}

func (s *deepgramStream) WriteAudio(frame []byte) error {
	_, err := s.writer.Write(frame)
	return err
}

func (s *deepgramStream) Events() <-chan Event { return s.events }

func (s *deepgramStream) Close() error { return s.writer.Close() }
