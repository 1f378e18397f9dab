package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/chat"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/llm"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/llm/llmtest"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/store"
	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/pkg/logger"
)

type chatFixture struct {
	chat          *ChatService
	conversations *ConversationService
	events        *recordingPublisher
}

func newChatFixture(t *testing.T, clients map[llm.Provider]llm.Client) *chatFixture {
	t.Helper()
	log := logger.NewTest(t)

	registry := llm.NewRegistry()
	for p, c := range clients {
		registry.Register(p, c)
	}

	events := &recordingPublisher{}
	conversations := NewConversationService(store.NewMemoryStore(time.Hour), events, log)
	return &chatFixture{
		chat:          NewChatService(registry, chat.NewOrchestrator(log), conversations, events, "", log),
		conversations: conversations,
		events:        events,
	}
}

func userRequest(content string) *model.ChatRequest {
	return &model.ChatRequest{Messages: []model.Message{{Role: model.RoleUser, Content: content}}}
}

func TestChatService_PrepareDefaults(t *testing.T) {
	f := newChatFixture(t, map[llm.Provider]llm.Client{llm.ProviderOpenAI: llmtest.Text("x")})

	turn, err := f.chat.Prepare("", userRequest("hi"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if turn.Request.Handle.Model != llm.DefaultModel {
		t.Errorf("model = %s", turn.Request.Handle.Model)
	}
	if turn.Request.ConversationID == "" {
		t.Error("expected a generated conversation id")
	}
	if turn.Request.Temperature != chat.DefaultTemperature || turn.Request.MaxTokens != chat.DefaultMaxTokens {
		t.Errorf("defaults not applied: %+v", turn.Request)
	}
	if turn.Request.Messages[0].Role != model.RoleSystem || turn.Request.Messages[0].Content != chat.DefaultSystemPrompt {
		t.Errorf("system prompt not prepended: %+v", turn.Request.Messages[0])
	}
	if turn.persist {
		t.Error("anonymous turn must not persist")
	}
}

func TestChatService_PrepareUnconfiguredProvider(t *testing.T) {
	f := newChatFixture(t, nil)

	req := userRequest("hi")
	req.Model = "claude-3-haiku-20240307"
	_, err := f.chat.Prepare("u1", req)

	var providerErr *model.ProviderError
	if !errors.As(err, &providerErr) || providerErr.Provider != string(llm.ProviderAnthropic) {
		t.Fatalf("expected anthropic ProviderError, got %v", err)
	}
}

func TestChatService_PrepareEmptyHistory(t *testing.T) {
	f := newChatFixture(t, map[llm.Provider]llm.Client{llm.ProviderOpenAI: llmtest.Text("x")})

	_, err := f.chat.Prepare("u1", &model.ChatRequest{})
	var validationErr *model.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestChatService_StreamRecordsExchange(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, map[llm.Provider]llm.Client{llm.ProviderGroq: llmtest.Text("Hel", "lo")})

	conv, err := f.conversations.Create(ctx, "u1", &model.CreateConversationRequest{Title: "t"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := userRequest("hi")
	req.Model = "some-llama-model"
	req.ConversationID = conv.ID
	turn, err := f.chat.Prepare("u1", req)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var events []model.StreamEvent
	for e := range f.chat.Stream(ctx, turn) {
		events = append(events, e)
	}
	if len(events) != 3 || events[2].Type != model.StreamEventFinished {
		t.Fatalf("unexpected events %+v", events)
	}
	for _, e := range events {
		if e.ConversationID != conv.ID {
			t.Errorf("event for %q, want %q", e.ConversationID, conv.ID)
		}
	}

	got, err := f.conversations.Get(ctx, "u1", conv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Messages) != 2 || got.Messages[0].Content != "hi" || got.Messages[1].Content != "Hello" {
		t.Errorf("exchange not recorded: %+v", got.Messages)
	}

	if fmt.Sprint(f.events.types()) != "[created completed]" {
		t.Errorf("events = %v", f.events.types())
	}
}

func TestChatService_StreamFailurePublishesFailed(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, map[llm.Provider]llm.Client{llm.ProviderOpenAI: llmtest.Failing(errors.New("boom"), "one", "two")})

	turn, err := f.chat.Prepare("u1", userRequest("hi"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var events []model.StreamEvent
	for e := range f.chat.Stream(ctx, turn) {
		events = append(events, e)
	}
	if len(events) != 3 || events[2].Type != model.StreamEventError {
		t.Fatalf("unexpected events %+v", events)
	}
	if fmt.Sprint(f.events.types()) != "[failed]" {
		t.Errorf("events = %v", f.events.types())
	}
}

func (f *chatFixture) lastEvent(t *testing.T) *model.ConversationEvent {
	t.Helper()
	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	if len(f.events.events) == 0 {
		t.Fatal("no conversation events published")
	}
	return f.events.events[len(f.events.events)-1]
}

func TestChatService_StreamTimeoutPublishesFailed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	f := newChatFixture(t, map[llm.Provider]llm.Client{llm.ProviderOpenAI: llmtest.Stalling("one")})

	turn, err := f.chat.Prepare("u1", userRequest("hi"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var events []model.StreamEvent
	for e := range f.chat.Stream(ctx, turn) {
		events = append(events, e)
	}
	if len(events) != 2 || events[1].Type != model.StreamEventError || events[1].Error != "generation timed out" {
		t.Fatalf("unexpected events %+v", events)
	}
	if fmt.Sprint(f.events.types()) != "[failed]" {
		t.Fatalf("events = %v", f.events.types())
	}
	if reason := f.lastEvent(t).Reason; reason != "timeout" {
		t.Errorf("reason = %q, want timeout", reason)
	}
}

func TestChatService_StreamCancelPublishesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newChatFixture(t, map[llm.Provider]llm.Client{llm.ProviderOpenAI: llmtest.Stalling("one")})

	turn, err := f.chat.Prepare("u1", userRequest("hi"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	var events []model.StreamEvent
	for e := range f.chat.Stream(ctx, turn) {
		events = append(events, e)
		cancel()
	}
	if len(events) != 1 {
		t.Fatalf("unexpected events %+v", events)
	}
	if types := f.events.types(); len(types) != 0 {
		t.Errorf("events = %v", types)
	}
}

func TestChatService_GenerateTimeoutPublishesFailed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	f := newChatFixture(t, map[llm.Provider]llm.Client{llm.ProviderOpenAI: llmtest.Stalling("partial")})

	turn, err := f.chat.Prepare("u1", userRequest("hi"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	resp, err := f.chat.Generate(ctx, turn)
	if resp != nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Generate = %+v, %v", resp, err)
	}
	if fmt.Sprint(f.events.types()) != "[failed]" {
		t.Fatalf("events = %v", f.events.types())
	}
	if reason := f.lastEvent(t).Reason; reason != "timeout" {
		t.Errorf("reason = %q, want timeout", reason)
	}
}

func TestChatService_GenerateMatchesStream(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t, map[llm.Provider]llm.Client{llm.ProviderOpenAI: llmtest.Text("a", "b", "c")})

	turn, err := f.chat.Prepare("", userRequest("hi"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	resp, err := f.chat.Generate(ctx, turn)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Message.Content != "abc" || resp.Message.Role != model.RoleAssistant {
		t.Errorf("unexpected message %+v", resp.Message)
	}
	if resp.Model != llm.DefaultModel || resp.ConversationID != turn.Request.ConversationID {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Usage.CompletionTokens != 3 || resp.FinishReason != "stop" {
		t.Errorf("usage not passed through: %+v", resp)
	}
}

func TestChatService_GenerateFailure(t *testing.T) {
	f := newChatFixture(t, map[llm.Provider]llm.Client{llm.ProviderOpenAI: llmtest.Failing(errors.New("boom"), "partial")})

	turn, _ := f.chat.Prepare("", userRequest("hi"))
	resp, err := f.chat.Generate(context.Background(), turn)
	if resp != nil {
		t.Fatalf("expected no response, got %+v", resp)
	}
	var providerErr *model.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestChatService_Capabilities(t *testing.T) {
	f := newChatFixture(t, map[llm.Provider]llm.Client{llm.ProviderOpenAI: llmtest.Text()})

	caps := f.chat.Capabilities()
	if len(caps.Providers) != len(llm.Providers) {
		t.Fatalf("providers = %d", len(caps.Providers))
	}
	for _, p := range caps.Providers {
		want := p.Name == string(llm.ProviderOpenAI)
		if p.Configured != want {
			t.Errorf("%s configured = %v", p.Name, p.Configured)
		}
	}
	if caps.Limits.MaxTokensMax != chat.MaxMaxTokens || caps.DefaultModel != llm.DefaultModel {
		t.Errorf("unexpected limits %+v", caps)
	}
}
