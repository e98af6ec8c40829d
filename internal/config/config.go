package config

// Config is the root smithers configuration
type Config struct {
	// Providers, tried in priority order
	Providers []ProviderConfig `json:"providers" mapstructure:"providers"`

	// Agent defaults for interactive runs
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Tools
	Tools ToolsConfig `json:"tools" mapstructure:"tools"`

	// Scheduled prompts
	Schedules []ScheduleConfig `json:"schedules" mapstructure:"schedules"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory (sessions, archive, logs)
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Prompt preset file (YAML)
	PromptsFile string `json:"prompts_file" mapstructure:"prompts_file"`
}

// ProviderConfig holds credentials for one model provider
type ProviderConfig struct {
	Name     string `json:"name" mapstructure:"name"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// AgentConfig holds default run parameters
type AgentConfig struct {
	Model        string   `json:"model" mapstructure:"model"`
	Temperature  float64  `json:"temperature" mapstructure:"temperature"`
	MaxTokens    int      `json:"max_tokens" mapstructure:"max_tokens"`
	SystemPrompt string   `json:"system_prompt" mapstructure:"system_prompt"`
	MaxTurns     int      `json:"max_turns" mapstructure:"max_turns"`
	MaxRetries   int      `json:"max_retries" mapstructure:"max_retries"`
	Tools        []string `json:"tools" mapstructure:"tools"`
}

// ToolsConfig configures the builtin tool set
type ToolsConfig struct {
	WorkspaceDir  string `json:"workspace_dir" mapstructure:"workspace_dir"`
	EnableBrowser bool   `json:"enable_browser" mapstructure:"enable_browser"`
}

// ScheduleConfig declares a recurring prompt
type ScheduleConfig struct {
	Name       string `json:"name" mapstructure:"name"`
	Schedule   string `json:"schedule" mapstructure:"schedule"`
	Prompt     string `json:"prompt" mapstructure:"prompt"`
	SessionKey string `json:"session_key" mapstructure:"session_key"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig controls span sampling
type TracingConfig struct {
	// SampleRatio is the fraction of root spans recorded, 0 through 1
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Model:       "claude-3-5-sonnet-20241022",
			Temperature: 0.7,
			MaxTokens:   4096,
			MaxTurns:    10,
			MaxRetries:  3,
			Tools:       []string{"calculator", "current_time", "get_weather", "http_get"},
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9091",
		},
		Tracing: TracingConfig{
			SampleRatio: 1.0,
		},
	}
}
