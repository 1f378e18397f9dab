package llm

import (
	"errors"

	"github.com/Rememberfrxst/morphic-ai-answer-engine-generative-ui/internal/model"
)

// ErrNotConfigured is returned for providers without credentials.
var ErrNotConfigured = errors.New("provider not configured")

// Registry holds the configured client of each provider.
type Registry struct {
	clients map[Provider]Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[Provider]Client)}
}

// Register installs the client serving provider.
func (r *Registry) Register(provider Provider, client Client) {
	r.clients[provider] = client
}

// Configured reports whether provider has a client.
func (r *Registry) Configured(provider Provider) bool {
	_, ok := r.clients[provider]
	return ok
}

// Client returns the client for provider, or a ProviderError when none is registered.
func (r *Registry) Client(provider Provider) (Client, error) {
	client, ok := r.clients[provider]
	if !ok {
		return nil, &model.ProviderError{Provider: string(provider), Err: ErrNotConfigured}
	}
	return client, nil
}

// ProviderConfig carries the credentials of one provider.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

// NewRegistryFromConfig builds clients for every provider with an API key.
// Providers without a key are left unregistered.
func NewRegistryFromConfig(configs map[Provider]ProviderConfig) (*Registry, error) {
	registry := NewRegistry()
	for _, provider := range Providers {
		cfg, ok := configs[provider]
		if !ok || cfg.APIKey == "" {
			continue
		}

		var (
			client Client
			err    error
		)
		if provider == ProviderAnthropic {
			client, err = NewAnthropicClient(cfg.APIKey, cfg.BaseURL)
		} else {
			client, err = NewOpenAIClient(provider, cfg.APIKey, cfg.BaseURL)
		}
		if err != nil {
			return nil, err
		}
		registry.Register(provider, client)
	}
	return registry, nil
}
