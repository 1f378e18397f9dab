package llm

import (
	"context"
	"errors"
	"io"
	"iter"
	"math"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
)

// OpenAIClient talks to any OpenAI-compatible chat completions API. It serves
// OpenAI itself as well as Groq, xAI and Google through their compatible endpoints.
type OpenAIClient struct {
	client   *openai.Client
	provider Provider
}

// NewOpenAIClient creates a client for provider. An empty baseURL keeps the OpenAI default.
func NewOpenAIClient(provider Provider, apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New(string(provider) + " API key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(config),
		provider: provider,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return string(c.provider)
}

// Stream sends a streaming completion request.
func (c *OpenAIClient) Stream(ctx context.Context, req *CompletionRequest) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		messages := make([]openai.ChatCompletionMessage, len(req.Messages))
		for i, msg := range req.Messages {
			messages[i] = openai.ChatCompletionMessage{
				Role:    msg.Role,
				Content: msg.Content,
			}
		}

		request := openai.ChatCompletionRequest{
			Model:         req.Model,
			Messages:      messages,
			Stream:        true,
			StreamOptions: &openai.StreamOptions{IncludeUsage: true},
		}
		// Reasoning models reject max_tokens and any non-default temperature.
		if c.provider == ProviderOpenAI && isReasoningModel(req.Model) {
			request.MaxCompletionTokens = req.MaxTokens
		} else {
			request.MaxTokens = req.MaxTokens
			request.Temperature = temperature(req.Temperature)
		}

		stream, err := c.client.CreateChatCompletionStream(ctx, request)
		if err != nil {
			yield(Delta{}, err)
			return
		}
		defer stream.Close()

		var (
			stopReason string
			usage      *model.Usage
		)

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				yield(Delta{}, err)
				return
			}

			if response.Usage != nil {
				usage = &model.Usage{
					PromptTokens:     response.Usage.PromptTokens,
					CompletionTokens: response.Usage.CompletionTokens,
					TotalTokens:      response.Usage.TotalTokens,
				}
			}

			if len(response.Choices) == 0 {
				continue
			}

			if delta := response.Choices[0].Delta.Content; delta != "" {
				if !yield(Delta{Content: delta}, nil) {
					return
				}
			}
			if response.Choices[0].FinishReason != "" {
				stopReason = string(response.Choices[0].FinishReason)
			}
		}

		yield(Delta{FinishReason: stopReason, Usage: usage}, nil)
	}
}

func isReasoningModel(id string) bool {
	return strings.HasPrefix(id, "o1") || strings.HasPrefix(id, "o3") || strings.HasPrefix(id, "o4")
}

// temperature maps a requested temperature onto the request field. go-openai
// drops a zero temperature as unset, so zero is sent as the smallest positive float.
func temperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
