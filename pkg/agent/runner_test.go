package agent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smithers-ai/smithers/pkg/conversation"
	"github.com/smithers-ai/smithers/pkg/runqueue"
	"github.com/smithers-ai/smithers/pkg/session"
	"github.com/smithers-ai/smithers/pkg/toolexecutor"
)

type scriptedFactory struct {
	provider Provider
}

func (f *scriptedFactory) NewProvider(profile Profile) (Provider, error) {
	return f.provider, nil
}

func newTestRunner(t *testing.T, provider Provider, te *toolexecutor.ToolExecutor) *Runner {
	t.Helper()

	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)

	queue := runqueue.New()
	t.Cleanup(func() { queue.Close() })

	runner, err := NewRunner(Config{
		Store:           store,
		ToolExecutor:    te,
		Queue:           queue,
		Logger:          zerolog.Nop(),
		Profiles:        []Profile{{Name: "test", Provider: "scripted", APIKey: "unused"}},
		ProviderFactory: &scriptedFactory{provider: provider},
	})
	require.NoError(t, err)
	return runner
}

func registerCalculator(t *testing.T, te *toolexecutor.ToolExecutor) {
	t.Helper()
	require.NoError(t, te.RegisterTool(toolexecutor.ToolDefinition{
		Name:        "calculator",
		Description: "Performs basic arithmetic",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "op", Type: "string", Description: "Operation to perform", Required: true},
			{Name: "a", Type: "number", Description: "First operand", Required: true},
			{Name: "b", Type: "number", Description: "Second operand", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			a := args["a"].(float64)
			b := args["b"].(float64)
			switch args["op"].(string) {
			case "add":
				return a + b, nil
			default:
				return nil, fmt.Errorf("unsupported op")
			}
		},
	}))
}

func TestNewRunnerValidation(t *testing.T) {
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)
	queue := runqueue.New()
	defer queue.Close()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing store", Config{ToolExecutor: toolexecutor.New(), Queue: queue, Profiles: []Profile{{}}}},
		{"missing tool executor", Config{Store: store, Queue: queue, Profiles: []Profile{{}}}},
		{"missing queue", Config{Store: store, ToolExecutor: toolexecutor.New(), Profiles: []Profile{{}}}},
		{"no profiles", Config{Store: store, ToolExecutor: toolexecutor.New(), Queue: queue}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestRunnerCalculatorScenario(t *testing.T) {
	te := toolexecutor.New()
	registerCalculator(t, te)

	provider := &scriptedProvider{steps: []func(Request) (*Response, error){
		toolStep(conversation.ToolCall{
			ID:        "call_calc",
			Name:      "calculator",
			Arguments: map[string]interface{}{"op": "add", "a": float64(2), "b": float64(2)},
		}),
		func(request Request) (*Response, error) {
			// The tool result must be visible to the second call
			last := request.Messages[len(request.Messages)-1]
			if last.Role != conversation.RoleTool || last.Content != "4" {
				return nil, fmt.Errorf("tool result not fed back: %+v", last)
			}
			return &Response{Text: "4"}, nil
		},
	}}

	runner := newTestRunner(t, provider, te)

	outcome, err := runner.Run(RunParams{
		Prompt:     "What is 2+2 using the calculator tool?",
		SessionKey: "calc-session",
		Config: RunConfig{
			Model:      "test-model",
			MaxTurns:   5,
			MaxRetries: 1,
			Tools:      []string{"calculator"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, StatusDone, outcome.Status)
	assert.Equal(t, "4", outcome.Text)
	assert.Equal(t, "calc-session", outcome.SessionKey)
	assert.Equal(t, 2, outcome.Turns)

	// The full exchange is persisted
	messages, err := runner.store.Load(context.Background(), "calc-session")
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, conversation.RoleUser, messages[0].Role)
	assert.Equal(t, conversation.RoleAssistant, messages[1].Role)
	assert.Equal(t, conversation.RoleTool, messages[2].Role)
	assert.Equal(t, "4", messages[3].Content)
}

func TestRunnerRetryExhaustionScenario(t *testing.T) {
	provider := &scriptedProvider{steps: []func(Request) (*Response, error){
		errStep(fmt.Errorf("503 service unavailable")),
	}}

	runner := newTestRunner(t, provider, toolexecutor.New())

	outcome, err := runner.Run(RunParams{
		Prompt:     "hello",
		SessionKey: "retry-session",
		Config: RunConfig{
			Model:      "test-model",
			MaxTurns:   5,
			MaxRetries: 3,
		},
	})

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Contains(t, outcome.Reason, "provider error")
	assert.Equal(t, 3, provider.callCount())

	// Only the user prompt was persisted; no partial assistant message
	messages, err := runner.store.Load(context.Background(), "retry-session")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, conversation.RoleUser, messages[0].Role)
}

func TestRunnerAbort(t *testing.T) {
	te := toolexecutor.New()
	toolStarted := make(chan struct{})
	release := make(chan struct{})

	require.NoError(t, te.RegisterTool(toolexecutor.ToolDefinition{
		Name:        "blocker",
		Description: "Blocks until released",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			close(toolStarted)
			<-release
			return "released", nil
		},
	}))

	provider := &scriptedProvider{steps: []func(Request) (*Response, error){
		toolStep(conversation.ToolCall{ID: "call_block", Name: "blocker", Arguments: map[string]interface{}{}}),
		textStep("unreachable"),
	}}

	runner := newTestRunner(t, provider, te)

	outcomeCh := make(chan Outcome, 1)
	go func() {
		outcome, err := runner.Run(RunParams{
			Prompt:     "block",
			SessionKey: "abort-session",
			Config:     RunConfig{Model: "test-model", MaxTurns: 5, MaxRetries: 1, Tools: []string{"blocker"}},
		})
		require.NoError(t, err)
		outcomeCh <- outcome
	}()

	<-toolStarted
	assert.True(t, runner.IsRunning("abort-session"))
	require.NoError(t, runner.Abort("abort-session"))
	close(release)

	outcome := <-outcomeCh
	assert.Equal(t, StatusCancelled, outcome.Status)
	assert.Equal(t, 1, provider.callCount())

	// Messages up to the cancellation point are persisted
	messages, err := runner.store.Load(context.Background(), "abort-session")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "released", messages[2].Content)

	assert.False(t, runner.IsRunning("abort-session"))
}

func TestRunnerResumesHistory(t *testing.T) {
	provider := &scriptedProvider{steps: []func(Request) (*Response, error){
		func(request Request) (*Response, error) {
			// History plus the new prompt arrive in order
			if len(request.Messages) != 3 {
				return nil, fmt.Errorf("expected 3 messages, got %d", len(request.Messages))
			}
			if request.Messages[0].Content != "earlier question" {
				return nil, fmt.Errorf("history not loaded")
			}
			return &Response{Text: "with context"}, nil
		},
	}}

	runner := newTestRunner(t, provider, toolexecutor.New())
	ctx := context.Background()

	require.NoError(t, runner.store.Append(ctx, "resume", conversation.Message{
		Role: conversation.RoleUser, Content: "earlier question", Timestamp: time.Now(),
	}))
	require.NoError(t, runner.store.Append(ctx, "resume", conversation.Message{
		Role: conversation.RoleAssistant, Content: "earlier answer", Timestamp: time.Now(),
	}))

	outcome, err := runner.Run(RunParams{
		Prompt:     "followup",
		SessionKey: "resume",
		Config:     RunConfig{Model: "test-model", MaxTurns: 5, MaxRetries: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, StatusDone, outcome.Status)
	assert.Equal(t, "with context", outcome.Text)

	messages, err := runner.store.Load(ctx, "resume")
	require.NoError(t, err)
	assert.Len(t, messages, 4)
}

func TestRunnerRejectsBadInput(t *testing.T) {
	runner := newTestRunner(t, &scriptedProvider{steps: []func(Request) (*Response, error){textStep("x")}}, toolexecutor.New())

	t.Run("empty prompt", func(t *testing.T) {
		_, err := runner.Run(RunParams{SessionKey: "s", Config: RunConfig{Model: "m"}})
		assert.Error(t, err)
	})

	t.Run("empty session key", func(t *testing.T) {
		_, err := runner.Run(RunParams{Prompt: "p", Config: RunConfig{Model: "m"}})
		assert.Error(t, err)
	})

	t.Run("empty model", func(t *testing.T) {
		_, err := runner.Run(RunParams{Prompt: "p", SessionKey: "s"})
		assert.Error(t, err)
	})

	t.Run("unregistered tool in config", func(t *testing.T) {
		_, err := runner.Run(RunParams{
			Prompt:     "p",
			SessionKey: "s",
			Config:     RunConfig{Model: "m", Tools: []string{"ghost"}},
		})
		assert.Error(t, err)
	})

	t.Run("temperature out of range", func(t *testing.T) {
		_, err := runner.Run(RunParams{
			Prompt:     "p",
			SessionKey: "s",
			Config:     RunConfig{Model: "m", Temperature: 1.5},
		})
		assert.Error(t, err)
	})
}

func TestRunnerSetProfiles(t *testing.T) {
	te := toolexecutor.New()
	runner := newTestRunner(t, &scriptedProvider{steps: []func(Request) (*Response, error){
		textStep("ok"),
	}}, te)

	t.Run("replaces the profile set", func(t *testing.T) {
		require.NoError(t, runner.SetProfiles([]Profile{
			{Name: "primary", Provider: "anthropic", APIKey: "k1", Priority: 0},
			{Name: "fallback", Provider: "openai", APIKey: "k2", Priority: 1},
		}))

		profiles := runner.Profiles()
		require.Len(t, profiles, 2)
		assert.Equal(t, "primary", profiles[0].Name)
		assert.Equal(t, "fallback", profiles[1].Name)
	})

	t.Run("rejects an empty set", func(t *testing.T) {
		require.Error(t, runner.SetProfiles(nil))
		assert.Len(t, runner.Profiles(), 2)
	})

	t.Run("next run uses the new set", func(t *testing.T) {
		require.NoError(t, runner.SetProfiles([]Profile{
			{Name: "replacement", Provider: "scripted", APIKey: "k3"},
		}))

		outcome, err := runner.Run(RunParams{
			Prompt:     "hello",
			SessionKey: "profile-swap",
			Config:     RunConfig{Model: "test-model", MaxTurns: 2},
		})
		require.NoError(t, err)
		assert.Equal(t, StatusDone, outcome.Status)
	})
}
