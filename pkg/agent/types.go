package agent

import (
	"errors"
	"strings"
)

// Status is the terminal outcome of a session run
type Status string

const (
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// RunParams contains input parameters for a session run
type RunParams struct {
	Prompt     string    `json:"prompt"`
	SessionKey string    `json:"session_key"`
	Config     RunConfig `json:"config"`
	WorkingDir string    `json:"working_dir,omitempty"`
}

// RunConfig configures a single run
type RunConfig struct {
	Model        string   `json:"model"`
	Temperature  float64  `json:"temperature,omitempty"`
	MaxTokens    int      `json:"max_tokens,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Tools        []string `json:"tools,omitempty"`
	MaxTurns     int      `json:"max_turns,omitempty"`
	MaxRetries   int      `json:"max_retries,omitempty"`
}

// Outcome is what a session run returns. Status always distinguishes a
// successful answer from a failure reason from a cancellation, so no
// failure is ever reported as an empty success.
type Outcome struct {
	Status     Status      `json:"status"`
	Text       string      `json:"text,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	SessionKey string      `json:"session_key"`
	Turns      int         `json:"turns"`
	Usage      *TokenUsage `json:"usage,omitempty"`
}

// TokenUsage tracks token consumption across a run
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u *TokenUsage) add(other *TokenUsage) {
	if other == nil {
		return
	}
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Profile represents credentials for one model provider
type Profile struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "anthropic" or "openai"
	APIKey   string `json:"api_key"`
	Priority int    `json:"priority"`
}

// DefaultRunConfig returns default run configuration
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Model:       "claude-3-5-sonnet-20241022",
		Temperature: 0.7,
		MaxTokens:   4096,
		MaxTurns:    10,
		MaxRetries:  3,
	}
}

// ErrMalformedResponse marks a provider response whose structure could
// not be parsed. Such failures are permanent for the call; retrying
// would only mask a contract violation.
var ErrMalformedResponse = errors.New("malformed provider response")

// IsRetryableError reports whether a provider error is transient
// (network, rate limit, server-side) and worth retrying.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedResponse) {
		return false
	}

	msg := err.Error()

	if strings.Contains(msg, "ECONNRESET") || strings.Contains(msg, "ETIMEDOUT") ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") {
		return true
	}

	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return true
	}

	if strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504") {
		return true
	}

	return false
}
