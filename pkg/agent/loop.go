package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smithers-ai/smithers/pkg/conversation"
	"github.com/smithers-ai/smithers/pkg/toolexecutor"
)

// State is a phase of the orchestration loop
type State string

const (
	StateAwaitingModel  State = "awaiting_model"
	StateExecutingTools State = "executing_tools"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// ReasonLimitExceeded is recorded when the loop hits its turn limit
// while the model is still requesting tools. It is distinct from
// provider-error reasons.
const ReasonLimitExceeded = "limit exceeded"

// LoopResult is the terminal result of one loop run
type LoopResult struct {
	State     State
	Text      string
	Reason    string
	Cancelled bool
	Turns     int
	Usage     *TokenUsage
}

// Loop drives one agent run over a single conversation. Turns are
// strictly sequential; tool calls within one turn run concurrently and
// their results are appended in request order so a transcript replays
// deterministically.
type Loop struct {
	provider    Provider
	tools       *toolexecutor.ToolExecutor
	conv        *conversation.Conversation
	toolSchemas []map[string]interface{}
	config      RunConfig
	sessionKey  string
	workingDir  string
	logger      zerolog.Logger
}

// NewLoop creates a loop over an existing conversation
func NewLoop(provider Provider, tools *toolexecutor.ToolExecutor, conv *conversation.Conversation, toolSchemas []map[string]interface{}, params RunParams, logger zerolog.Logger) *Loop {
	return &Loop{
		provider:    provider,
		tools:       tools,
		conv:        conv,
		toolSchemas: toolSchemas,
		config:      params.Config,
		sessionKey:  params.SessionKey,
		workingDir:  params.WorkingDir,
		logger:      logger,
	}
}

// Run drives the loop to a terminal state. Cancellation is checked at
// every state transition; a cancelled run reports Cancelled rather
// than a failure, and the conversation holds exactly the messages
// appended before the cancellation was observed.
func (l *Loop) Run(ctx context.Context) LoopResult {
	maxTurns := l.config.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}

	usage := &TokenUsage{}
	turns := 0

	for turn := 0; turn < maxTurns; turn++ {
		if ctx.Err() != nil {
			return LoopResult{Cancelled: true, Turns: turns, Usage: usage}
		}

		l.logger.Debug().
			Int("turn", turn+1).
			Str("state", string(StateAwaitingModel)).
			Msg("Requesting assistant turn")

		response, err := completeWithRetry(ctx, l.provider, Request{
			Model:        l.config.Model,
			Messages:     l.conv.Messages(),
			Tools:        l.toolSchemas,
			Temperature:  l.config.Temperature,
			MaxTokens:    l.config.MaxTokens,
			SystemPrompt: l.config.SystemPrompt,
		}, l.config.MaxRetries, l.logger)
		turns++

		if err != nil {
			if ctx.Err() != nil {
				return LoopResult{Cancelled: true, Turns: turns, Usage: usage}
			}
			// No partial assistant message is appended for a failed call
			return LoopResult{
				State:  StateFailed,
				Reason: fmt.Sprintf("provider error: %v", err),
				Turns:  turns,
				Usage:  usage,
			}
		}

		usage.add(response.Usage)

		if len(response.ToolCalls) == 0 {
			l.conv.Append(conversation.Message{
				Role:    conversation.RoleAssistant,
				Content: response.Text,
			})
			return LoopResult{
				State: StateDone,
				Text:  response.Text,
				Turns: turns,
				Usage: usage,
			}
		}

		l.conv.Append(conversation.Message{
			Role:      conversation.RoleAssistant,
			Content:   response.Text,
			ToolCalls: response.ToolCalls,
		})

		l.logger.Debug().
			Int("turn", turn+1).
			Int("toolCalls", len(response.ToolCalls)).
			Str("state", string(StateExecutingTools)).
			Msg("Executing requested tools")

		l.executeToolCalls(ctx, response.ToolCalls)

		if ctx.Err() != nil {
			return LoopResult{Cancelled: true, Turns: turns, Usage: usage}
		}
	}

	return LoopResult{
		State:  StateFailed,
		Reason: ReasonLimitExceeded,
		Turns:  turns,
		Usage:  usage,
	}
}

// executeToolCalls runs one turn's tool calls concurrently. Results
// are collected by position and appended in request order regardless
// of completion timing.
func (l *Loop) executeToolCalls(ctx context.Context, calls []conversation.ToolCall) {
	results := make([]toolexecutor.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call conversation.ToolCall) {
			defer wg.Done()
			results[i] = l.tools.Execute(ctx, call.Name, call.Arguments, &toolexecutor.ExecutionContext{
				SessionKey: l.sessionKey,
				WorkingDir: l.workingDir,
				Timeout:    30 * time.Second,
			})
		}(i, call)
	}
	wg.Wait()

	for i, call := range calls {
		result := results[i]

		content := fmt.Sprintf("%v", result.Output)
		if !result.Success {
			content = result.Error
		}

		l.conv.Append(conversation.Message{
			Role:       conversation.RoleTool,
			Content:    content,
			ToolCallID: call.ID,
			ToolError:  !result.Success,
		})
	}
}
