package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func writeEvent(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func anthropicServer(t *testing.T, gotBody *map[string]any, events func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if gotBody != nil {
			if err := json.NewDecoder(r.Body).Decode(gotBody); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "text/event-stream")
		events(w)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAnthropicClient_Stream(t *testing.T) {
	var gotBody map[string]any
	server := anthropicServer(t, &gotBody, func(w http.ResponseWriter) {
		writeEvent(w, "message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-haiku-20240307","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":7,"output_tokens":1}}}`)
		writeEvent(w, "content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)
		writeEvent(w, "ping", `{"type":"ping"}`)
		writeEvent(w, "content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`)
		writeEvent(w, "content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`)
		writeEvent(w, "content_block_stop", `{"type":"content_block_stop","index":0}`)
		writeEvent(w, "message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":5}}`)
		writeEvent(w, "message_stop", `{"type":"message_stop"}`)
	})

	client, err := NewAnthropicClient("test-key", server.URL+"/")
	if err != nil {
		t.Fatalf("NewAnthropicClient: %v", err)
	}

	var content []string
	var last Delta
	for delta, err := range client.Stream(context.Background(), &CompletionRequest{
		Model:       "claude-3-haiku-20240307",
		Messages:    []ChatMessage{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hi"}},
		MaxTokens:   64,
		Temperature: 1.5,
	}) {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		if delta.Content != "" {
			content = append(content, delta.Content)
		}
		last = delta
	}

	if len(content) != 2 || content[0] != "Hel" || content[1] != "lo" {
		t.Fatalf("unexpected content deltas %q", content)
	}
	if last.FinishReason != "end_turn" {
		t.Errorf("expected finish reason end_turn, got %q", last.FinishReason)
	}
	if last.Usage == nil || last.Usage.PromptTokens != 7 || last.Usage.CompletionTokens != 5 || last.Usage.TotalTokens != 12 {
		t.Errorf("unexpected usage %+v", last.Usage)
	}

	system, _ := gotBody["system"].([]any)
	if len(system) != 1 {
		t.Fatalf("unexpected system field %v", gotBody["system"])
	}
	if block, _ := system[0].(map[string]any); block["type"] != "text" || block["text"] != "be brief" {
		t.Errorf("unexpected system block %v", system[0])
	}
	if messages, _ := gotBody["messages"].([]any); len(messages) != 1 {
		t.Errorf("expected 1 message, got %v", gotBody["messages"])
	}
	if gotBody["temperature"] != 0.75 {
		t.Errorf("expected temperature 0.75, got %v", gotBody["temperature"])
	}
	if gotBody["max_tokens"] != float64(64) || gotBody["stream"] != true {
		t.Errorf("unexpected request %v", gotBody)
	}
}

func TestAnthropicClient_StreamError(t *testing.T) {
	server := anthropicServer(t, nil, func(w http.ResponseWriter) {
		writeEvent(w, "message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-haiku-20240307","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":7,"output_tokens":1}}}`)
		writeEvent(w, "content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)
		writeEvent(w, "content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`)
		writeEvent(w, "error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	})

	client, err := NewAnthropicClient("test-key", server.URL+"/")
	if err != nil {
		t.Fatalf("NewAnthropicClient: %v", err)
	}

	var content []string
	var errs []error
	for delta, err := range client.Stream(context.Background(), &CompletionRequest{
		Model:     "claude-3-haiku-20240307",
		Messages:  []ChatMessage{{Role: "user", Content: "hi"}},
		MaxTokens: 64,
	}) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if delta.Content != "" {
			content = append(content, delta.Content)
		}
		if delta.FinishReason != "" || delta.Usage != nil {
			t.Errorf("unexpected completion delta %+v", delta)
		}
	}

	if len(content) != 1 || content[0] != "Hel" {
		t.Errorf("unexpected content deltas %q", content)
	}
	if len(errs) != 1 || !strings.Contains(errs[0].Error(), "overloaded_error") {
		t.Errorf("expected one overloaded error, got %v", errs)
	}
}

func TestAnthropicTemperature(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{0.7, 0.35},
		{2, 1},
		{3, 1},
		{-1, 0},
	}
	for _, tt := range tests {
		if got := anthropicTemperature(tt.in); got != tt.want {
			t.Errorf("anthropicTemperature(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem([]ChatMessage{
		{Role: "system", Content: "persona"},
		{Role: "user", Content: "hi"},
		{Role: "system", Content: "extra rule"},
		{Role: "assistant", Content: "hello"},
	})

	if system != "persona\n\nextra rule" {
		t.Errorf("unexpected system prompt %q", system)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("turn order changed: %+v", turns)
	}
}

func TestSplitSystem_NoSystem(t *testing.T) {
	system, turns := splitSystem([]ChatMessage{{Role: "user", Content: "hi"}})
	if system != "" {
		t.Errorf("expected empty system prompt, got %q", system)
	}
	if len(turns) != 1 {
		t.Errorf("expected 1 turn, got %d", len(turns))
	}
}

func TestNewAnthropicClient(t *testing.T) {
	if _, err := NewAnthropicClient("", ""); err == nil {
		t.Fatal("expected error for empty API key")
	}
	client, err := NewAnthropicClient("test-key", "http://localhost:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Name() != "anthropic" {
		t.Errorf("expected name anthropic, got %q", client.Name())
	}
}
