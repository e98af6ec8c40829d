package agent

import (
	"context"
	"fmt"

	"github.com/smithers-ai/smithers/pkg/conversation"
)

// Provider is the model client adapter. Given the ordered conversation
// and the declared tool schemas it produces one assistant turn: final
// text, tool-call requests, or both.
type Provider interface {
	// Complete makes one model API call
	Complete(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// Request contains the parameters for one model call
type Request struct {
	Model        string
	Messages     []conversation.Message
	Tools        []map[string]interface{}
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Response is one assistant turn as returned by the provider
type Response struct {
	Text      string
	ToolCalls []conversation.ToolCall
	Usage     *TokenUsage
}

// ProviderFactory creates providers from credential profiles
type ProviderFactory interface {
	NewProvider(profile Profile) (Provider, error)
}

// DefaultProviderFactory builds the bundled provider adapters
type DefaultProviderFactory struct{}

// NewProvider creates a provider based on the profile's provider name
func (f *DefaultProviderFactory) NewProvider(profile Profile) (Provider, error) {
	switch profile.Provider {
	case "anthropic":
		return NewAnthropicProvider(profile.APIKey), nil
	case "openai":
		return NewOpenAIProvider(profile.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", profile.Provider)
	}
}
