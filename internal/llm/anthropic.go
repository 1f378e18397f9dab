package llm

import (
	"context"
	"errors"
	"iter"
	"math"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
)

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new Anthropic client. An empty baseURL keeps the SDK default.
func NewAnthropicClient(apiKey, baseURL string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return string(ProviderAnthropic)
}

// Stream sends a streaming completion request.
func (c *AnthropicClient) Stream(ctx context.Context, req *CompletionRequest) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		system, turns := splitSystem(req.Messages)

		// Convert messages to Anthropic format
		messages := make([]anthropic.MessageParam, 0, len(turns))
		for _, msg := range turns {
			block := anthropic.NewTextBlock(msg.Content)
			if msg.Role == string(model.RoleAssistant) {
				messages = append(messages, anthropic.NewAssistantMessage(block))
			} else {
				messages = append(messages, anthropic.NewUserMessage(block))
			}
		}

		params := anthropic.MessageNewParams{
			Model:       anthropic.F(req.Model),
			MaxTokens:   anthropic.F(int64(req.MaxTokens)),
			Messages:    anthropic.F(messages),
			Temperature: anthropic.F(anthropicTemperature(req.Temperature)),
		}
		if system != "" {
			params.System = anthropic.F([]anthropic.TextBlockParam{anthropic.NewTextBlock(system)})
		}

		stream := c.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		message := anthropic.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := message.Accumulate(event); err != nil {
				yield(Delta{}, err)
				return
			}

			switch delta := event.Delta.(type) {
			case anthropic.ContentBlockDeltaEventDelta:
				if delta.Text != "" {
					if !yield(Delta{Content: delta.Text}, nil) {
						return
					}
				}
			}
		}

		if err := stream.Err(); err != nil {
			yield(Delta{}, err)
			return
		}

		tokensIn := int(message.Usage.InputTokens)
		tokensOut := int(message.Usage.OutputTokens)
		yield(Delta{
			FinishReason: string(message.StopReason),
			Usage: &model.Usage{
				PromptTokens:     tokensIn,
				CompletionTokens: tokensOut,
				TotalTokens:      tokensIn + tokensOut,
			},
		}, nil)
	}
}

// requestTemperatureMax is the top of the temperature range requests accept.
// Anthropic accepts 0..1, so request temperatures are scaled into that range.
const requestTemperatureMax = 2.0

func anthropicTemperature(t float64) float64 {
	return math.Min(math.Max(t/requestTemperatureMax, 0), 1)
}

// splitSystem lifts system messages out of the turn list; Anthropic takes the
// system prompt as a request field rather than a message.
func splitSystem(messages []ChatMessage) (string, []ChatMessage) {
	var system []string
	turns := make([]ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == string(model.RoleSystem) {
			system = append(system, msg.Content)
			continue
		}
		turns = append(turns, msg)
	}
	return strings.Join(system, "\n\n"), turns
}
