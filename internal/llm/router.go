package llm

import (
	"strings"
)

// Provider is the closed set of backends a model id can resolve to.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderGroq      Provider = "groq"
	ProviderXAI       Provider = "xai"
)

// Providers lists every provider in a stable order.
var Providers = []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderGroq, ProviderXAI}

const (
	// DefaultProvider serves model ids no rule matches.
	DefaultProvider = ProviderOpenAI
	// DefaultModel is the model used for unresolvable ids.
	DefaultModel = "gpt-4o-mini"
)

// Handle identifies the backend and model a request is sent to.
type Handle struct {
	Provider Provider `json:"provider"`
	Model    string   `json:"model"`
}

// Rule maps model ids accepted by Match to Provider.
type Rule struct {
	Name     string
	Match    func(modelID string) bool
	Provider Provider
}

// rules is evaluated top to bottom and the first match wins. The order decides
// ids that would satisfy more than one rule, so entries must not be reordered.
var rules = []Rule{
	{Name: "anthropic-prefix", Match: hasPrefix("claude-"), Provider: ProviderAnthropic},
	{Name: "google-prefix", Match: hasPrefix("gemini"), Provider: ProviderGoogle},
	{Name: "xai-prefix", Match: hasPrefix("grok"), Provider: ProviderXAI},
	{Name: "openai-prefix", Match: hasPrefix("gpt-", "chatgpt-", "o1", "o3", "o4"), Provider: ProviderOpenAI},
	{Name: "groq-substring", Match: contains("llama", "mixtral", "gemma", "qwen", "deepseek"), Provider: ProviderGroq},
}

// Rules returns a copy of the routing table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Resolve maps a model id to a backend handle. It never fails: ids that match
// no rule resolve to DefaultProvider with DefaultModel.
func Resolve(modelID string) Handle {
	for _, rule := range rules {
		if rule.Match(modelID) {
			return Handle{Provider: rule.Provider, Model: modelID}
		}
	}
	return Handle{Provider: DefaultProvider, Model: DefaultModel}
}

func hasPrefix(prefixes ...string) func(string) bool {
	return func(id string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(id, p) {
				return true
			}
		}
		return false
	}
}

func contains(substrings ...string) func(string) bool {
	return func(id string) bool {
		for _, s := range substrings {
			if strings.Contains(id, s) {
				return true
			}
		}
		return false
	}
}
