// Live implementation backed by openai-go, the LLM client the rest of the
// retrieved corpus (glyphoxa's pkg/provider/llm/openai) wires for exactly
// this kind of single-turn structured judgment.
package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

var _ Provider = (*OpenAIProvider)(nil)

const (
	completionCheckSystemPrompt = `You judge whether a spoken answer to a reflection prompt is a finished thought or trails off mid-sentence. Reply with exactly one line: "COMPLETE <confidence>" or "INCOMPLETE <confidence>", where <confidence> is a number from 0 to 1 expressing how sure you are (e.g. "COMPLETE 0.92").`
	ratingExtractSystemPrompt   = `The user was asked to rate their day on a scale from -2 (worst) to 2 (best), with 0 being neutral, and replied out loud. Reply with exactly one line: a signed integer from -2 to 2 followed by a confidence from 0 to 1 (e.g. "-2 0.8", "0 0.95"), or "NONE" if no rating is discernible.`
)

// OpenAIProvider implements Provider using the OpenAI chat completions API.
type OpenAIProvider struct {
	client oai.Client
	model  string
}

// NewOpenAI constructs an OpenAIProvider for the given model (e.g.
// "gpt-4o-mini", chosen for low latency since this runs mid-call).
func NewOpenAI(apiKey, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("llm: model must not be empty")
	}
	client := oai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{client: client, model: model}, nil
}

func (p *OpenAIProvider) CheckCompletion(ctx context.Context, prompt, response string) (CompletionCheck, error) {
	text, err := p.complete(ctx, completionCheckSystemPrompt,
		fmt.Sprintf("Prompt: %s\nAnswer: %s", prompt, response))
	if err != nil {
		return CompletionCheck{}, err
	}
	verdict, confidence := parseCompletionVerdict(text)
	complete := verdict && confidence >= CompletionConfidenceThreshold
	return CompletionCheck{Complete: complete, Confidence: confidence, Reason: text}, nil
}

// parseCompletionVerdict reads the model's "COMPLETE <confidence>" /
// "INCOMPLETE <confidence>" reply. A missing or unparseable confidence is
// treated as 0, since an endpointing signal the model won't quantify should
// never clear CompletionConfidenceThreshold.
func parseCompletionVerdict(text string) (complete bool, confidence float64) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false, 0
	}
	switch strings.ToUpper(fields[0]) {
	case "COMPLETE":
		complete = true
	case "INCOMPLETE":
		complete = false
	default:
		return false, 0
	}
	if len(fields) > 1 {
		if c, err := strconv.ParseFloat(fields[1], 64); err == nil {
			confidence = c
		}
	}
	return complete, confidence
}

func (p *OpenAIProvider) ExtractRating(ctx context.Context, response string) (int, bool, error) {
	text, err := p.complete(ctx, ratingExtractSystemPrompt, response)
	if err != nil {
		return 0, false, err
	}
	n, confidence, ok := parseSignedRating(text)
	return n, ok && confidence >= RatingConfidenceThreshold, nil
}

// ratingWords covers the spoken-number forms the model occasionally echoes
// back instead of a digit (spec §8: "returns 0 for 'zero' and -2 for
// 'negative two'").
var ratingWords = map[string]int{
	"zero": 0,
	"one":  1,
	"two":  2,
}

// parseSignedRating parses text into a rating in the spec's -2..2 domain
// (§3 "rating?∈{-2..2}"), accepting a signed digit ("-2", "2"), a spoken
// magnitude word optionally preceded by "negative"/"minus" ("negative two",
// "minus one", "zero"), or "NONE" for no discernible rating. The model's
// trailing confidence, if present, is parsed out separately; a missing or
// unparseable one defaults to 1 so older single-token replies still work.
func parseSignedRating(text string) (rating int, confidence float64, ok bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" || normalized == "none" {
		return 0, 0, false
	}

	ratingText := normalized
	confidence = 1
	if fields := strings.Fields(normalized); len(fields) > 1 {
		if c, err := strconv.ParseFloat(fields[len(fields)-1], 64); err == nil {
			confidence = c
			ratingText = strings.Join(fields[:len(fields)-1], " ")
		}
	}

	negative := false
	for _, prefix := range []string{"negative ", "negative-", "minus ", "minus-", "-"} {
		if strings.HasPrefix(ratingText, prefix) {
			negative = true
			ratingText = strings.TrimPrefix(ratingText, prefix)
			break
		}
	}
	ratingText = strings.TrimSpace(ratingText)

	n, isWord := ratingWords[ratingText]
	if !isWord {
		digits := strings.TrimFunc(ratingText, func(r rune) bool { return r < '0' || r > '9' })
		parsed, convErr := strconv.Atoi(digits)
		if convErr != nil {
			return 0, 0, false
		}
		n = parsed
	}
	if negative {
		n = -n
	}
	if n < -2 || n > 2 {
		return 0, 0, false
	}
	return n, confidence, true
}

func (p *OpenAIProvider) complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: oai.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(userMessage),
		},
		Temperature:         param.NewOpt(0.0),
		MaxCompletionTokens: param.NewOpt(int64(8)),
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
