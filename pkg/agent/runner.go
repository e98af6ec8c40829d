package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/smithers-ai/smithers/internal/observability"
	"github.com/smithers-ai/smithers/internal/tracing"
	"github.com/smithers-ai/smithers/pkg/conversation"
	"github.com/smithers-ai/smithers/pkg/runqueue"
	"github.com/smithers-ai/smithers/pkg/session"
	"github.com/smithers-ai/smithers/pkg/toolexecutor"
)

// Runner owns session runs end-to-end: it seeds the conversation,
// drives the loop to a terminal state, persists the transcript, and
// supports aborting a run by session key.
type Runner struct {
	store           *session.Store
	archive         *session.Archive
	toolExecutor    *toolexecutor.ToolExecutor
	queue           *runqueue.Queue
	logger          zerolog.Logger
	providerFactory ProviderFactory

	profiles   []Profile
	profilesMu sync.RWMutex

	// Active runs for abort capability
	activeRuns map[string]context.CancelFunc
	runsMu     sync.RWMutex
}

// Config holds runner configuration
type Config struct {
	Store           *session.Store
	Archive         *session.Archive // optional
	ToolExecutor    *toolexecutor.ToolExecutor
	Queue           *runqueue.Queue
	Logger          zerolog.Logger
	Profiles        []Profile
	ProviderFactory ProviderFactory
}

// NewRunner creates a new runner
func NewRunner(cfg Config) (*Runner, error) {
	observability.EnsureRegistered()

	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.ToolExecutor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("run queue is required")
	}
	if len(cfg.Profiles) == 0 {
		return nil, fmt.Errorf("at least one provider profile is required")
	}

	factory := cfg.ProviderFactory
	if factory == nil {
		factory = &DefaultProviderFactory{}
	}

	return &Runner{
		store:           cfg.Store,
		archive:         cfg.Archive,
		toolExecutor:    cfg.ToolExecutor,
		queue:           cfg.Queue,
		logger:          cfg.Logger,
		providerFactory: factory,
		profiles:        cfg.Profiles,
		activeRuns:      make(map[string]context.CancelFunc),
	}, nil
}

// Run executes a session run with a background context
func (r *Runner) Run(params RunParams) (Outcome, error) {
	return r.RunWithContext(context.Background(), params)
}

// RunWithContext executes a session run. Runs for the same session key
// are serialized through the run queue; the returned outcome always
// distinguishes done, failed, and cancelled.
func (r *Runner) RunWithContext(ctx context.Context, params RunParams) (Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.NewRequestContext(ctx)
	}
	ctx = tracing.WithSessionKey(ctx, params.SessionKey)
	ctx, span := tracing.StartSpan(
		ctx,
		"smithers.agent",
		"agent.run",
		attribute.String("session_key", params.SessionKey),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, r.logger).With().Str("session_key", params.SessionKey).Logger()

	if params.Prompt == "" {
		return Outcome{}, fmt.Errorf("prompt cannot be empty")
	}
	if err := validateSessionKeyForRun(params.SessionKey); err != nil {
		return Outcome{}, err
	}
	if err := r.validateConfig(params.Config); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{}, fmt.Errorf("invalid configuration: %w", err)
	}

	lane := fmt.Sprintf("session-%s", params.SessionKey)

	result, err := r.queue.EnqueueWithContext(ctx, lane, func(taskCtx context.Context) (interface{}, error) {
		return r.executeRun(taskCtx, params)
	}, nil)

	if err != nil {
		logger.Error().Err(err).Msg("Run failed before execution")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Outcome{}, err
	}

	return result.(Outcome), nil
}

// SetProfiles replaces the provider profiles. Runs already in flight
// keep the set they started with; the next run sees the new one.
func (r *Runner) SetProfiles(profiles []Profile) error {
	if len(profiles) == 0 {
		return fmt.Errorf("at least one provider profile is required")
	}

	r.profilesMu.Lock()
	r.profiles = make([]Profile, len(profiles))
	copy(r.profiles, profiles)
	r.profilesMu.Unlock()

	r.logger.Info().Int("profiles", len(profiles)).Msg("Provider profiles updated")
	return nil
}

// Profiles returns a copy of the current provider profiles
func (r *Runner) Profiles() []Profile {
	r.profilesMu.RLock()
	defer r.profilesMu.RUnlock()

	profiles := make([]Profile, len(r.profiles))
	copy(profiles, r.profiles)
	return profiles
}

// Abort cancels a running session execution
func (r *Runner) Abort(sessionKey string) error {
	r.runsMu.Lock()
	defer r.runsMu.Unlock()

	cancel, exists := r.activeRuns[sessionKey]
	if !exists {
		r.logger.Debug().Str("sessionKey", sessionKey).Msg("No active run to abort")
		return nil
	}

	r.logger.Info().Str("sessionKey", sessionKey).Msg("Aborting session run")
	cancel()
	delete(r.activeRuns, sessionKey)

	return nil
}

// IsRunning checks whether a run is active for a session
func (r *Runner) IsRunning(sessionKey string) bool {
	r.runsMu.RLock()
	defer r.runsMu.RUnlock()

	_, exists := r.activeRuns[sessionKey]
	return exists
}

// executeRun performs the actual run
func (r *Runner) executeRun(ctx context.Context, params RunParams) (Outcome, error) {
	ctx = tracing.WithSessionKey(ctx, params.SessionKey)
	ctx = tracing.NewAgentRunContext(ctx)
	logger := tracing.LoggerFromContext(ctx, r.logger).With().Str("session_key", params.SessionKey).Logger()
	start := time.Now()

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.runsMu.Lock()
	r.activeRuns[params.SessionKey] = cancel
	r.runsMu.Unlock()

	defer func() {
		r.runsMu.Lock()
		delete(r.activeRuns, params.SessionKey)
		r.runsMu.Unlock()
	}()

	// Already aborted before we started
	select {
	case <-execCtx.Done():
		return Outcome{Status: StatusCancelled, SessionKey: params.SessionKey}, nil
	default:
	}

	history, err := r.store.Load(execCtx, params.SessionKey)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load session history")
		return Outcome{}, fmt.Errorf("failed to load session history: %w", err)
	}

	conv := conversation.New()
	for _, msg := range history {
		conv.Append(msg)
	}
	historyLen := conv.Len()

	conv.Append(conversation.Message{
		Role:    conversation.RoleUser,
		Content: params.Prompt,
	})

	toolSchemas, err := r.buildToolSchemas(params.Config.Tools)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to build tool schemas: %w", err)
	}

	outcome, providerName := r.executeWithFailover(execCtx, conv, toolSchemas, params, logger)
	outcome.SessionKey = params.SessionKey

	r.persistNewMessages(ctx, params.SessionKey, conv, historyLen, logger)

	if outcome.Status == StatusDone && r.archive != nil {
		if err := r.archive.ArchiveSession(ctx, params.SessionKey, conv.Messages()); err != nil {
			logger.Warn().Err(err).Msg("Failed to archive session")
		}
	}

	observability.RecordAgentRun(providerName, string(outcome.Status), time.Since(start), outcome.Turns)

	return outcome, nil
}

// executeWithFailover tries provider profiles in priority order. The
// conversation is the single source of truth, so a later profile picks
// up exactly where the failed one stopped appending.
func (r *Runner) executeWithFailover(ctx context.Context, conv *conversation.Conversation, toolSchemas []map[string]interface{}, params RunParams, logger zerolog.Logger) (Outcome, string) {
	r.profilesMu.RLock()
	profiles := make([]Profile, len(r.profiles))
	copy(profiles, r.profiles)
	r.profilesMu.RUnlock()

	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].Priority < profiles[j].Priority
	})

	var last Outcome
	lastProvider := ""

	for _, profile := range profiles {
		provider, err := r.providerFactory.NewProvider(profile)
		if err != nil {
			logger.Warn().
				Str("profile", profile.Name).
				Err(err).
				Msg("Failed to create provider")
			continue
		}
		lastProvider = provider.Name()

		logger.Info().
			Str("profile", profile.Name).
			Str("provider", provider.Name()).
			Msg("Starting agent loop")

		loop := NewLoop(provider, r.toolExecutor, conv, toolSchemas, params, logger)
		result := loop.Run(ctx)

		switch {
		case result.Cancelled:
			return Outcome{Status: StatusCancelled, Turns: result.Turns, Usage: result.Usage}, lastProvider

		case result.State == StateDone:
			return Outcome{Status: StatusDone, Text: result.Text, Turns: result.Turns, Usage: result.Usage}, lastProvider

		default:
			last = Outcome{Status: StatusFailed, Reason: result.Reason, Turns: result.Turns, Usage: result.Usage}
			logger.Warn().
				Str("profile", profile.Name).
				Str("reason", result.Reason).
				Msg("Agent loop failed on profile")

			// The turn limit is a property of the run, not of the
			// provider; switching profiles cannot help.
			if result.Reason == ReasonLimitExceeded {
				return last, lastProvider
			}
		}
	}

	if last.Status == "" {
		last = Outcome{Status: StatusFailed, Reason: "no usable provider profile"}
	}
	return last, lastProvider
}

// persistNewMessages writes everything appended during this run
func (r *Runner) persistNewMessages(ctx context.Context, sessionKey string, conv *conversation.Conversation, fromIndex int, logger zerolog.Logger) {
	messages := conv.Messages()
	for _, msg := range messages[fromIndex:] {
		if err := r.store.Append(ctx, sessionKey, msg); err != nil {
			logger.Error().
				Err(err).
				Int("ordinal", msg.Ordinal).
				Msg("Failed to persist message")
		}
	}
}

// buildToolSchemas resolves enabled tool names to their declarations
func (r *Runner) buildToolSchemas(toolNames []string) ([]map[string]interface{}, error) {
	if len(toolNames) == 0 {
		return nil, nil
	}

	schemas := make([]map[string]interface{}, 0, len(toolNames))
	for _, name := range toolNames {
		schema, err := r.toolExecutor.Schema(name)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
	}

	return schemas, nil
}

// validateConfig validates run configuration
func (r *Runner) validateConfig(config RunConfig) error {
	if config.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	if config.MaxTurns < 0 {
		return fmt.Errorf("max turns cannot be negative")
	}
	if config.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

func validateSessionKeyForRun(sessionKey string) error {
	if sessionKey == "" {
		return fmt.Errorf("session key cannot be empty")
	}
	return nil
}
