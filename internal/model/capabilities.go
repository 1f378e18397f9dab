package model

// Capabilities is the static descriptor served by GET /chat.
type Capabilities struct {
	Streaming    bool             `json:"streaming"`
	DefaultModel string           `json:"defaultModel"`
	Providers    []ProviderStatus `json:"providers"`
	Limits       GenerationLimits `json:"limits"`
}

// ProviderStatus reports whether a backend has credentials.
type ProviderStatus struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// GenerationLimits are the accepted ranges of generation parameters.
type GenerationLimits struct {
	TemperatureMin     float64 `json:"temperatureMin"`
	TemperatureMax     float64 `json:"temperatureMax"`
	TemperatureDefault float64 `json:"temperatureDefault"`
	MaxTokensMin       int     `json:"maxTokensMin"`
	MaxTokensMax       int     `json:"maxTokensMax"`
	MaxTokensDefault   int     `json:"maxTokensDefault"`
}
