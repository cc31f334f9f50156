// Live implementation wrapping the omnivoice/omnivoice-twilio stack, the
// same libraries the teacher's pkg/callmanager uses.
package telephony

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentplexus/omnivoice/callsystem"
	twiliocallsystem "github.com/agentplexus/omnivoice-twilio/callsystem"
)

// TwilioConfig configures the live Twilio-backed provider.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

var _ Provider = (*TwilioProvider)(nil)

// TwilioProvider places calls through Twilio via omnivoice-twilio.
type TwilioProvider struct {
	cs callsystem.CallSystem

	mu    sync.RWMutex
	calls map[string]callsystem.Call // providerCallSID -> live call handle
}

// NewTwilio constructs a TwilioProvider. webhookURL is the base URL Twilio
// will be told to call back for media-stream / status events. PlaceCall
// passes only ToE164 to the SDK: the FromE164, AnswerCallbackURL and
// StatusCallbackURL fields of PlaceCallParams are not forwarded, so every
// call uses cfg.FromNumber and calls back at webhookURL.
func NewTwilio(cfg TwilioConfig, webhookURL string) (*TwilioProvider, error) {
	cs, err := twiliocallsystem.New(
		twiliocallsystem.WithAccountSID(cfg.AccountSID),
		twiliocallsystem.WithAuthToken(cfg.AuthToken),
		twiliocallsystem.WithPhoneNumber(cfg.FromNumber),
		twiliocallsystem.WithWebhookURL(webhookURL),
	)
	if err != nil {
		return nil, fmt.Errorf("telephony: create twilio callsystem: %w", err)
	}
	return &TwilioProvider{cs: cs, calls: make(map[string]callsystem.Call)}, nil
}

func (p *TwilioProvider) PlaceCall(ctx context.Context, params PlaceCallParams) (string, error) {
	call, err := p.cs.MakeCall(ctx, params.ToE164)
	if err != nil {
		return "", fmt.Errorf("telephony: place call: %w", err)
	}
	sid := call.SID()

	p.mu.Lock()
	p.calls[sid] = call
	p.mu.Unlock()

	return sid, nil
}

func (p *TwilioProvider) EndCall(ctx context.Context, providerCallSID string) error {
	call := p.get(providerCallSID)
	if call == nil {
		return ErrUnknownCall
	}
	if err := call.Hangup(ctx); err != nil {
		return fmt.Errorf("telephony: end call: %w", err)
	}
	p.mu.Lock()
	delete(p.calls, providerCallSID)
	p.mu.Unlock()
	return nil
}

func (p *TwilioProvider) SendInlineInstructions(ctx context.Context, providerCallSID string, instr Instructions) error {
	call := p.get(providerCallSID)
	if call == nil {
		return ErrUnknownCall
	}
	if err := call.SendInstructions(ctx, twilioTwiML(instr)); err != nil {
		return fmt.Errorf("telephony: send inline instructions: %w", err)
	}
	return nil
}

func (p *TwilioProvider) Render(instr Instructions) string {
	return twilioTwiML(instr)
}

func (p *TwilioProvider) get(providerCallSID string) callsystem.Call {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calls[providerCallSID]
}

// Transport exposes the Twilio media-stream transport for webhook wiring,
// mirroring the teacher's Manager.Transport().
func (p *TwilioProvider) Transport() any {
	if t, ok := p.cs.(interface{ Transport() any }); ok {
		return t.Transport()
	}
	return nil
}

// twilioTwiML renders our provider-agnostic Instructions into the XML
// document Twilio expects (spec §6: "Response for the answer webhook is an
// XML document describing a sequence of actions").
func twilioTwiML(instr Instructions) string {
	switch instr.Kind {
	case InstructionOpenMediaStream:
		return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response><Connect><Stream url="%s"/></Connect></Response>`, instr.MediaStreamURL)
	case InstructionPlayThenHangup:
		return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response><Play>%s</Play><Hangup/></Response>`, instr.AudioURL)
	case InstructionPlayThenListen:
		return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response><Play>%s</Play><Redirect>%s</Redirect></Response>`, instr.AudioURL, instr.NextWebhookURL)
	case InstructionGreetThenOpenMediaStream:
		return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response><Play>%s</Play><Connect><Stream url="%s"/></Connect></Response>`, instr.AudioURL, instr.MediaStreamURL)
	default: // InstructionPlayThenContinue
		return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response><Play>%s</Play></Response>`, instr.AudioURL)
	}
}
