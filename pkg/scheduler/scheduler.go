// Package scheduler runs recurring agent prompts on cron schedules.
// Each job enqueues a normal session run, so scheduled work shares the
// same persistence and serialization as interactive chat.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/smithers-ai/smithers/internal/tracing"
	"github.com/smithers-ai/smithers/pkg/agent"
	"github.com/smithers-ai/smithers/pkg/runqueue"
)

// AgentRunner is the slice of the runner the scheduler needs
type AgentRunner interface {
	RunWithContext(ctx context.Context, params agent.RunParams) (agent.Outcome, error)
}

// JobSpec declares one scheduled prompt
type JobSpec struct {
	Name       string          `json:"name"`
	Schedule   string          `json:"schedule"` // cron expression or @every duration
	Prompt     string          `json:"prompt"`
	SessionKey string          `json:"session_key"`
	Config     agent.RunConfig `json:"config"`
}

// Scheduler owns the cron loop and its registered jobs
type Scheduler struct {
	cron    *cron.Cron
	runner  AgentRunner
	queue   *runqueue.Queue
	logger  zerolog.Logger
	entries map[string]cron.EntryID
	mu      sync.Mutex
}

// New creates a stopped scheduler. When a queue is given, fired jobs
// pass through its cron lane, which bounds how many scheduled runs are
// admitted at once.
func New(runner AgentRunner, queue *runqueue.Queue, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		queue:   queue,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// AddJob registers a job. Job names are unique.
func (s *Scheduler) AddJob(spec JobSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("job name cannot be empty")
	}
	if spec.Prompt == "" {
		return fmt.Errorf("job prompt cannot be empty")
	}
	if spec.SessionKey == "" {
		spec.SessionKey = fmt.Sprintf("cron-%s", spec.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[spec.Name]; exists {
		return fmt.Errorf("job already registered: %s", spec.Name)
	}

	id, err := s.cron.AddFunc(spec.Schedule, func() {
		s.runJob(spec)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule for %s: %w", spec.Name, err)
	}

	s.entries[spec.Name] = id
	s.logger.Info().
		Str("job", spec.Name).
		Str("schedule", spec.Schedule).
		Msg("Scheduled job registered")

	return nil
}

func (s *Scheduler) runJob(spec JobSpec) {
	ctx := tracing.NewRequestContext(context.Background())
	logger := tracing.LoggerFromContext(ctx, s.logger).With().Str("job", spec.Name).Logger()

	logger.Info().Msg("Scheduled job starting")

	params := agent.RunParams{
		Prompt:     spec.Prompt,
		SessionKey: spec.SessionKey,
		Config:     spec.Config,
	}

	outcome, err := s.execute(ctx, params)
	if err != nil {
		logger.Error().Err(err).Msg("Scheduled job failed to run")
		return
	}

	logger.Info().
		Str("status", string(outcome.Status)).
		Int("turns", outcome.Turns).
		Msg("Scheduled job finished")
}

// execute admits the run through the cron lane. The runner enqueues on
// the session lane itself, so the two lanes stack: the cron lane caps
// scheduled parallelism, the session lane keeps per-session ordering.
func (s *Scheduler) execute(ctx context.Context, params agent.RunParams) (agent.Outcome, error) {
	if s.queue == nil {
		return s.runner.RunWithContext(ctx, params)
	}

	result, err := s.queue.EnqueueWithContext(ctx, runqueue.CronLane, func(taskCtx context.Context) (interface{}, error) {
		return s.runner.RunWithContext(taskCtx, params)
	}, nil)
	if err != nil {
		return agent.Outcome{}, err
	}
	return result.(agent.Outcome), nil
}

// RemoveJob unregisters a job by name
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, exists := s.entries[name]; exists {
		s.cron.Remove(id)
		delete(s.entries, name)
		s.logger.Info().Str("job", name).Msg("Scheduled job removed")
	}
}

// Jobs returns the registered job names
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Start begins executing schedules in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.entries)).Msg("Scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Scheduler stopped")
}
