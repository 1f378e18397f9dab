package llm

import (
	"errors"
	"testing"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
)

func TestRegistry_Client(t *testing.T) {
	registry, err := NewRegistryFromConfig(map[Provider]ProviderConfig{
		ProviderOpenAI:    {APIKey: "sk-test"},
		ProviderAnthropic: {APIKey: "sk-ant-test"},
		ProviderGroq:      {APIKey: ""},
	})
	if err != nil {
		t.Fatalf("NewRegistryFromConfig: %v", err)
	}

	if !registry.Configured(ProviderOpenAI) || !registry.Configured(ProviderAnthropic) {
		t.Fatal("expected openai and anthropic to be configured")
	}
	if registry.Configured(ProviderGroq) {
		t.Fatal("groq without key must not be configured")
	}

	client, err := registry.Client(ProviderAnthropic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Name() != "anthropic" {
		t.Errorf("expected anthropic client, got %q", client.Name())
	}

	_, err = registry.Client(ProviderGroq)
	var providerErr *model.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.Provider != "groq" || !errors.Is(err, ErrNotConfigured) {
		t.Errorf("unexpected error %v", err)
	}
}
