// Live implementation wrapping go-elevenlabs, the same TTS library the
// teacher's pkg/callmanager wires for speech synthesis.
package tts

import (
	"bytes"
	"context"
	"fmt"

	elevenlabs "github.com/agentplexus/go-elevenlabs"
	elevenlabstts "github.com/agentplexus/go-elevenlabs/omnivoice/tts"
	omnitts "github.com/agentplexus/omnivoice/tts"
)

var _ Provider = (*ElevenLabsProvider)(nil)

// ElevenLabsProvider adapts go-elevenlabs' streaming provider to our
// whole-blob Provider contract, buffering the stream into one []byte so
// callers get a cacheable, URL-hostable artifact (spec §4.1's audio cache).
type ElevenLabsProvider struct {
	inner omnitts.StreamingProvider
}

// NewElevenLabs constructs an ElevenLabsProvider from an API key.
func NewElevenLabs(apiKey string) (*ElevenLabsProvider, error) {
	client, err := elevenlabs.NewClient(elevenlabs.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("tts: create elevenlabs client: %w", err)
	}
	return &ElevenLabsProvider{inner: elevenlabstts.NewWithClient(client)}, nil
}

func (e *ElevenLabsProvider) Synthesize(ctx context.Context, text string, p Params) ([]byte, error) {
	stream, err := e.inner.SynthesizeStream(ctx, text, omnitts.SynthesisConfig{
		VoiceID:      p.Voice,
		Model:        p.Model,
		OutputFormat: "ulaw",
		SampleRate:   8000,
	})
	if err != nil {
		return nil, fmt.Errorf("tts: synthesize: %w", err)
	}

	var buf bytes.Buffer
	for chunk := range stream {
		if chunk.Error != nil {
			return nil, fmt.Errorf("tts: stream: %w", chunk.Error)
		}
		if len(chunk.Audio) > 0 {
			buf.Write(chunk.Audio)
		}
		if chunk.IsFinal {
			break
		}
	}
	return buf.Bytes(), nil
}
