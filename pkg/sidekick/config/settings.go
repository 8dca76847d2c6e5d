package config

import (
	"errors"
	"fmt"
	"time"
)

// Default values applied by Defaults and anywhere a Settings field is
// left at its zero value.
const (
	DefaultProvider       = "openai"
	DefaultModel          = "gpt-4o-mini"
	DefaultLLMTimeout     = 60 * time.Second
	DefaultBackend        = "memory"
	DefaultToolParallel   = 4
	DefaultToolTimeout    = 30 * time.Second
	DefaultMaxSteps       = 100
	DefaultRetryAttempts  = 3
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
	DefaultBackoffFactor  = 2.0
	DefaultJitter         = 0.1
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// Settings is the typed configuration consumed by session construction.
// Build one with Defaults, load one with LoadSettings, or fill the
// struct directly.
type Settings struct {
	LLM        LLMSettings
	Checkpoint CheckpointSettings
	Tools      ToolSettings
	Retry      RetrySettings
	Run        RunSettings
	Log        LogSettings
}

// LLMSettings selects and configures the model client.
type LLMSettings struct {
	// Provider is "openai", "claude-cli", or "mock".
	Provider string
	Model    string
	// APIKey is typically populated from ${OPENAI_API_KEY} via ExpandEnv.
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// CheckpointSettings selects the checkpoint backend.
type CheckpointSettings struct {
	// Backend is "memory", "sqlite", or "redis".
	Backend string
	// Path is the database file for the sqlite backend.
	Path string
	// Addr is the server address for the redis backend.
	Addr string
	// TTL bounds checkpoint lifetime in redis. Zero means no expiry.
	TTL time.Duration
}

// ToolSettings controls which tools a session exposes and how they run.
type ToolSettings struct {
	// Enabled holds glob patterns matched against tool names.
	// Empty means all registered tools are exposed.
	Enabled  []string
	Parallel int
	Timeout  time.Duration
}

// RetrySettings shapes the retry policy applied to model calls.
type RetrySettings struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         float64
}

// RunSettings bounds state machine execution.
type RunSettings struct {
	// MaxSteps caps node executions per run. Ignored when Unbounded is set.
	MaxSteps int
	// Unbounded disables the step ceiling entirely.
	Unbounded bool
	// Criteria is the default success criteria for new sessions.
	Criteria string
}

// LogSettings configures structured logging.
type LogSettings struct {
	// Level is "debug", "info", "warn", or "error".
	Level string
	// Format is "text" or "json".
	Format string
}

// Defaults returns Settings with every field at its documented default.
func Defaults() Settings {
	return Settings{
		LLM: LLMSettings{
			Provider: DefaultProvider,
			Model:    DefaultModel,
			Timeout:  DefaultLLMTimeout,
		},
		Checkpoint: CheckpointSettings{
			Backend: DefaultBackend,
		},
		Tools: ToolSettings{
			Parallel: DefaultToolParallel,
			Timeout:  DefaultToolTimeout,
		},
		Retry: RetrySettings{
			MaxAttempts:    DefaultRetryAttempts,
			InitialBackoff: DefaultInitialBackoff,
			MaxBackoff:     DefaultMaxBackoff,
			BackoffFactor:  DefaultBackoffFactor,
			Jitter:         DefaultJitter,
		},
		Run: RunSettings{
			MaxSteps: DefaultMaxSteps,
		},
		Log: LogSettings{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// FromConfig builds Settings from a raw Config, filling unset keys
// from Defaults. Section keys mirror the struct layout:
//
//	llm:        provider, model, api_key, base_url, timeout
//	checkpoint: backend, path, addr, ttl
//	tools:      enabled, parallel, timeout
//	retry:      max_attempts, initial_backoff, max_backoff, backoff_factor, jitter
//	run:        max_steps, unbounded, criteria
//	log:        level, format
func FromConfig(cfg Config) Settings {
	d := Defaults()

	llm := cfg.Sub("llm")
	cp := cfg.Sub("checkpoint")
	tools := cfg.Sub("tools")
	retry := cfg.Sub("retry")
	run := cfg.Sub("run")
	log := cfg.Sub("log")

	return Settings{
		LLM: LLMSettings{
			Provider: llm.String("provider", d.LLM.Provider),
			Model:    llm.String("model", d.LLM.Model),
			APIKey:   llm.String("api_key", ""),
			BaseURL:  llm.String("base_url", ""),
			Timeout:  llm.Duration("timeout", d.LLM.Timeout),
		},
		Checkpoint: CheckpointSettings{
			Backend: cp.String("backend", d.Checkpoint.Backend),
			Path:    cp.String("path", ""),
			Addr:    cp.String("addr", ""),
			TTL:     cp.Duration("ttl", 0),
		},
		Tools: ToolSettings{
			Enabled:  tools.StringSlice("enabled", nil),
			Parallel: tools.Int("parallel", d.Tools.Parallel),
			Timeout:  tools.Duration("timeout", d.Tools.Timeout),
		},
		Retry: RetrySettings{
			MaxAttempts:    retry.Int("max_attempts", d.Retry.MaxAttempts),
			InitialBackoff: retry.Duration("initial_backoff", d.Retry.InitialBackoff),
			MaxBackoff:     retry.Duration("max_backoff", d.Retry.MaxBackoff),
			BackoffFactor:  retry.Float("backoff_factor", d.Retry.BackoffFactor),
			Jitter:         retry.Float("jitter", d.Retry.Jitter),
		},
		Run: RunSettings{
			MaxSteps:  run.Int("max_steps", d.Run.MaxSteps),
			Unbounded: run.Bool("unbounded", false),
			Criteria:  run.String("criteria", ""),
		},
		Log: LogSettings{
			Level:  log.String("level", d.Log.Level),
			Format: log.String("format", d.Log.Format),
		},
	}
}

// LoadSettings reads a config file, expands ${VAR} references from the
// environment, and returns validated typed Settings.
func LoadSettings(path string) (Settings, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return Settings{}, err
	}
	s := FromConfig(cfg.ExpandEnv())
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports every invalid field at once.
func (s Settings) Validate() error {
	var errs []error

	switch s.LLM.Provider {
	case "openai", "claude-cli", "mock":
	default:
		errs = append(errs, fmt.Errorf("llm.provider: unknown provider %q", s.LLM.Provider))
	}
	if s.LLM.Timeout < 0 {
		errs = append(errs, fmt.Errorf("llm.timeout: must not be negative, got %s", s.LLM.Timeout))
	}

	switch s.Checkpoint.Backend {
	case "memory":
	case "sqlite":
		if s.Checkpoint.Path == "" {
			errs = append(errs, errors.New("checkpoint.path: required for sqlite backend"))
		}
	case "redis":
		if s.Checkpoint.Addr == "" {
			errs = append(errs, errors.New("checkpoint.addr: required for redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("checkpoint.backend: unknown backend %q", s.Checkpoint.Backend))
	}

	if s.Tools.Parallel < 1 {
		errs = append(errs, fmt.Errorf("tools.parallel: must be at least 1, got %d", s.Tools.Parallel))
	}
	if s.Tools.Timeout < 0 {
		errs = append(errs, fmt.Errorf("tools.timeout: must not be negative, got %s", s.Tools.Timeout))
	}

	if s.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts: must be at least 1, got %d", s.Retry.MaxAttempts))
	}
	if s.Retry.BackoffFactor < 1 {
		errs = append(errs, fmt.Errorf("retry.backoff_factor: must be at least 1, got %g", s.Retry.BackoffFactor))
	}
	if s.Retry.Jitter < 0 || s.Retry.Jitter > 1 {
		errs = append(errs, fmt.Errorf("retry.jitter: must be in [0, 1], got %g", s.Retry.Jitter))
	}

	if !s.Run.Unbounded && s.Run.MaxSteps < 1 {
		errs = append(errs, fmt.Errorf("run.max_steps: must be at least 1 unless run.unbounded is set, got %d", s.Run.MaxSteps))
	}

	switch s.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", s.Log.Level))
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", s.Log.Format))
	}

	return errors.Join(errs...)
}
