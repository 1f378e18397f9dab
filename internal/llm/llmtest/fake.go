// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"iter"
	"sync"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/llm"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
)

// Client replays Deltas, then fails with Err if set, otherwise completes.
// A stalled client never completes and fails only once ctx is done.
type Client struct {
	Provider string
	Deltas   []llm.Delta
	Err      error
	Stall    bool

	mu       sync.Mutex
	requests []*llm.CompletionRequest
	closed   int
	produced int
}

// Text builds a client that streams chunks and finishes with reason "stop".
func Text(chunks ...string) *Client {
	deltas := make([]llm.Delta, 0, len(chunks)+1)
	for _, c := range chunks {
		deltas = append(deltas, llm.Delta{Content: c})
	}
	deltas = append(deltas, llm.Delta{
		FinishReason: "stop",
		Usage:        &model.Usage{PromptTokens: 10, CompletionTokens: len(chunks), TotalTokens: 10 + len(chunks)},
	})
	return &Client{Deltas: deltas}
}

// Failing builds a client that streams chunks and then fails with err.
func Failing(err error, chunks ...string) *Client {
	deltas := make([]llm.Delta, 0, len(chunks))
	for _, c := range chunks {
		deltas = append(deltas, llm.Delta{Content: c})
	}
	return &Client{Deltas: deltas, Err: err}
}

// Stalling builds a client that streams chunks and then hangs until ctx ends.
func Stalling(chunks ...string) *Client {
	c := Failing(nil, chunks...)
	c.Stall = true
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	if c.Provider == "" {
		return "fake"
	}
	return c.Provider
}

// Stream replays the script, honoring ctx and early consumer exit.
func (c *Client) Stream(ctx context.Context, req *llm.CompletionRequest) iter.Seq2[llm.Delta, error] {
	return func(yield func(llm.Delta, error) bool) {
		c.mu.Lock()
		c.requests = append(c.requests, req)
		c.mu.Unlock()

		defer func() {
			c.mu.Lock()
			c.closed++
			c.mu.Unlock()
		}()

		for _, d := range c.Deltas {
			if err := ctx.Err(); err != nil {
				yield(llm.Delta{}, err)
				return
			}
			c.mu.Lock()
			c.produced++
			c.mu.Unlock()
			if !yield(d, nil) {
				return
			}
		}
		if c.Stall {
			<-ctx.Done()
			yield(llm.Delta{}, ctx.Err())
			return
		}
		if c.Err != nil {
			yield(llm.Delta{}, c.Err)
		}
	}
}

// Requests returns the requests received so far.
func (c *Client) Requests() []*llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*llm.CompletionRequest(nil), c.requests...)
}

// Closed returns how many streams have released their resources.
func (c *Client) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Produced returns how many deltas were handed to consumers.
func (c *Client) Produced() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.produced
}
