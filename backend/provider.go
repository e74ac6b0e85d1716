package backend

// Provider enumerates the supported backend services.
type Provider string

const (
	// ProviderOpenRouter is the OpenRouter aggregation service.
	ProviderOpenRouter Provider = "openrouter"
	// ProviderOpenAI is the OpenAI platform API.
	ProviderOpenAI Provider = "openai"
	// ProviderAnthropic is the Anthropic Messages API.
	ProviderAnthropic Provider = "anthropic"
	// ProviderOllama is a local Ollama server.
	ProviderOllama Provider = "ollama"
)

// DefaultBaseURL returns the default API base URL for the provider.
func (p Provider) DefaultBaseURL() string {
	switch p {
	case ProviderOpenRouter:
		return "https://openrouter.ai/api/v1"
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	case ProviderAnthropic:
		return "https://api.anthropic.com/v1"
	case ProviderOllama:
		return "http://localhost:11434"
	default:
		return ""
	}
}

// APIKeyEnvVar returns the conventional environment variable holding the
// provider's API key; empty for providers that need none.
func (p Provider) APIKeyEnvVar() string {
	switch p {
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}

// RequiresAPIKey reports whether the provider rejects unauthenticated calls.
func (p Provider) RequiresAPIKey() bool { return p != ProviderOllama }

// Valid reports whether p names a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenRouter, ProviderOpenAI, ProviderAnthropic, ProviderOllama:
		return true
	}
	return false
}
