package cli

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/smithers-ai/smithers/internal/config"
	"github.com/smithers-ai/smithers/internal/logger"
	"github.com/smithers-ai/smithers/internal/observability"
	"github.com/smithers-ai/smithers/internal/tracing"
	"github.com/smithers-ai/smithers/pkg/agent"
	"github.com/smithers-ai/smithers/pkg/coretools"
	"github.com/smithers-ai/smithers/pkg/runqueue"
	"github.com/smithers-ai/smithers/pkg/scheduler"
	"github.com/smithers-ai/smithers/pkg/session"
	"github.com/smithers-ai/smithers/pkg/toolexecutor"
)

// app wires the configured components of one smithers process
type app struct {
	cfg       *config.Config
	cfgMu     sync.RWMutex
	loader    *config.Loader
	watcher   *config.Watcher
	prompts   *config.PromptPresets
	log       *logger.Logger
	store     *session.Store
	archive   *session.Archive
	queue     *runqueue.Queue
	tools     *toolexecutor.ToolExecutor
	runner    *agent.Runner
	scheduler *scheduler.Scheduler

	metricsServer *http.Server
}

// buildApp loads configuration and constructs the component graph
func buildApp() (*app, error) {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logCfg := logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	}
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	appLogger, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := tracing.Init("smithers", cfg.Tracing.SampleRatio); err != nil {
		zl := appLogger.GetZerolog()
		zl.Warn().Err(err).Msg("Tracing unavailable")
	}

	prompts, err := config.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt presets: %w", err)
	}

	store, err := session.NewStore(filepath.Join(cfg.DataDir, "sessions"))
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	archive, err := session.NewArchive(filepath.Join(cfg.DataDir, "archive.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open session archive: %w", err)
	}

	tools := toolexecutor.New()
	if err := coretools.RegisterAll(tools, coretools.Options{
		WorkspaceDir:  cfg.Tools.WorkspaceDir,
		EnableBrowser: cfg.Tools.EnableBrowser,
	}); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	queue := runqueue.New()

	runner, err := agent.NewRunner(agent.Config{
		Store:        store,
		Archive:      archive,
		ToolExecutor: tools,
		Queue:        queue,
		Logger:       appLogger.GetZerolog(),
		Profiles:     providerProfiles(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build runner: %w", err)
	}

	a := &app{
		cfg:     cfg,
		loader:  loader,
		prompts: prompts,
		log:     appLogger,
		store:   store,
		archive: archive,
		queue:   queue,
		tools:   tools,
		runner:  runner,
	}

	a.startConfigWatcher()

	if cfg.Metrics.Enabled {
		a.startMetricsServer(cfg.Metrics.Addr)
	}

	return a, nil
}

func providerProfiles(cfg *config.Config) []agent.Profile {
	profiles := make([]agent.Profile, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		profiles = append(profiles, agent.Profile{
			Name:     p.Name,
			Provider: p.Provider,
			APIKey:   p.APIKey,
			Priority: p.Priority,
		})
	}
	return profiles
}

// config returns the current configuration snapshot
func (a *app) config() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// startConfigWatcher applies config file edits to the running process.
// Provider profiles and run defaults take effect on the next run;
// schedule and metrics changes take effect on restart.
func (a *app) startConfigWatcher() {
	watcher, err := config.NewWatcher(a.loader, func(cfg *config.Config) {
		if err := a.runner.SetProfiles(providerProfiles(cfg)); err != nil {
			zl := a.log.GetZerolog()
			zl.Warn().Err(err).Msg("Keeping previous provider profiles")
			return
		}
		a.cfgMu.Lock()
		a.cfg = cfg
		a.cfgMu.Unlock()
	})
	if err != nil {
		zl := a.log.GetZerolog()
		zl.Warn().Err(err).Msg("Config watcher unavailable")
		return
	}
	a.watcher = watcher
}

// startScheduler registers configured schedules and starts the cron loop
func (a *app) startScheduler() error {
	a.scheduler = scheduler.New(a.runner, a.queue, a.log.GetZerolog())

	for _, s := range a.config().Schedules {
		if err := a.scheduler.AddJob(scheduler.JobSpec{
			Name:       s.Name,
			Schedule:   s.Schedule,
			Prompt:     s.Prompt,
			SessionKey: s.SessionKey,
			Config:     a.runConfig(""),
		}); err != nil {
			return err
		}
	}

	a.scheduler.Start()
	return nil
}

func (a *app) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())

	a.metricsServer = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl := a.log.GetZerolog()
			zl.Warn().Err(err).Msg("Metrics server stopped")
		}
	}()
	zl := a.log.GetZerolog()
	zl.Info().Str("addr", addr).Msg("Metrics server listening")
}

// runConfig builds the effective run configuration, resolving the
// system prompt through the preset file when one is named.
func (a *app) runConfig(preset string) agent.RunConfig {
	cfg := a.config()

	systemPrompt := cfg.Agent.SystemPrompt
	if preset != "" {
		systemPrompt = a.prompts.Get(preset, systemPrompt)
	}

	return agent.RunConfig{
		Model:        cfg.Agent.Model,
		Temperature:  cfg.Agent.Temperature,
		MaxTokens:    cfg.Agent.MaxTokens,
		SystemPrompt: systemPrompt,
		MaxTurns:     cfg.Agent.MaxTurns,
		MaxRetries:   cfg.Agent.MaxRetries,
		Tools:        cfg.Agent.Tools,
	}
}

// close shuts components down in dependency order
func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.metricsServer != nil {
		a.metricsServer.Close()
	}
	if a.queue != nil {
		a.queue.WaitForActive(5 * time.Second)
		a.queue.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	tracing.Shutdown(ctx)
	cancel()

	if a.archive != nil {
		a.archive.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.log != nil {
		a.log.Close()
	}
}
