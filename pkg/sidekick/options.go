package sidekick

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/randalmurphal/sidekick/pkg/sidekick/checkpoint"
	"github.com/randalmurphal/sidekick/pkg/sidekick/config"
	"github.com/randalmurphal/sidekick/pkg/sidekick/event"
	"github.com/randalmurphal/sidekick/pkg/sidekick/llm"
	"github.com/randalmurphal/sidekick/pkg/sidekick/retry"
	"github.com/randalmurphal/sidekick/pkg/sidekick/tools"
)

// Option configures a Session. Capabilities (model client, checkpoint
// store, tool registry, event bus) are injected here; anything not
// supplied is built from the session's Settings.
type Option func(*Session)

// WithSettings replaces the default configuration.
func WithSettings(settings config.Settings) Option {
	return func(s *Session) { s.settings = settings }
}

// WithSessionID fixes the session identifier instead of minting a new
// one. A session created with the identifier of a previously persisted
// session restores that session's state.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithClient injects the model client, bypassing provider construction
// from settings. The client is used as given; wrap it with llm.WithRetry
// if retries are wanted.
func WithClient(c llm.Client) Option {
	return func(s *Session) { s.client = c }
}

// WithStore injects a checkpoint store shared with the caller. The
// session will not close an injected store on teardown.
func WithStore(store checkpoint.Store) Option {
	return func(s *Session) { s.store = store }
}

// WithTools injects the session's tool registry. The tool set is fixed
// for the session's lifetime.
func WithTools(reg *tools.Registry) Option {
	return func(s *Session) { s.tools = reg }
}

// WithBus attaches an event bus for lifecycle notifications. Nil (the
// default) disables publishing.
func WithBus(bus *event.Bus) Option {
	return func(s *Session) { s.bus = bus }
}

// WithLogger sets the structured logger. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used in worker prompts. Tests pin
// it for deterministic prompt assertions.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithResources registers session-scoped external resources. They are
// acquired in order during setup and released in reverse order at
// teardown; a failed acquisition releases the already-acquired prefix.
func WithResources(acquirers ...AcquireFunc) Option {
	return func(s *Session) { s.acquirers = append(s.acquirers, acquirers...) }
}

// WithMetrics enables OpenTelemetry metrics for the session's runs.
func WithMetrics(enabled bool) Option {
	return func(s *Session) { s.metricsEnabled = enabled }
}

// WithTracing enables OpenTelemetry spans for the session's runs.
func WithTracing(enabled bool) Option {
	return func(s *Session) { s.tracingEnabled = enabled }
}

// buildClient constructs the model client named by settings, wrapped in
// the configured retry policy.
func buildClient(settings config.Settings) (llm.Client, error) {
	var client llm.Client

	switch settings.LLM.Provider {
	case "openai":
		key := settings.LLM.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		opts := []llm.OpenAIOption{llm.WithOpenAIModel(settings.LLM.Model)}
		if settings.LLM.BaseURL != "" {
			opts = append(opts, llm.WithBaseURL(settings.LLM.BaseURL))
		}
		if settings.LLM.Timeout > 0 {
			opts = append(opts, llm.WithOpenAITimeout(settings.LLM.Timeout))
		}
		c, err := llm.NewOpenAI(key, opts...)
		if err != nil {
			return nil, err
		}
		client = c

	case "claude-cli":
		var opts []llm.ClaudeOption
		if settings.LLM.Model != "" {
			opts = append(opts, llm.WithClaudeModel(settings.LLM.Model))
		}
		if settings.LLM.Timeout > 0 {
			opts = append(opts, llm.WithClaudeTimeout(settings.LLM.Timeout))
		}
		client = llm.NewClaudeCLI(opts...)

	case "mock":
		client = llm.NewMockClient("")

	default:
		return nil, fmt.Errorf("unknown llm provider %q", settings.LLM.Provider)
	}

	return llm.WithRetry(client, retryPolicy(settings.Retry)), nil
}

// retryPolicy maps retry settings onto a policy; classification and
// wait hints come from the llm error taxonomy via llm.WithRetry.
func retryPolicy(r config.RetrySettings) retry.Policy {
	return retry.Policy{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: r.InitialBackoff,
		MaxBackoff:     r.MaxBackoff,
		BackoffFactor:  r.BackoffFactor,
		Jitter:         r.Jitter,
	}
}

// buildStore constructs the checkpoint backend named by settings.
func buildStore(settings config.Settings) (checkpoint.Store, error) {
	switch settings.Checkpoint.Backend {
	case "", "memory":
		return checkpoint.NewMemoryStore(), nil
	case "sqlite":
		return checkpoint.NewSQLiteStore(settings.Checkpoint.Path)
	case "redis":
		var opts []checkpoint.RedisOption
		if settings.Checkpoint.TTL > 0 {
			opts = append(opts, checkpoint.WithRedisTTL(settings.Checkpoint.TTL))
		}
		return checkpoint.NewRedisStore(settings.Checkpoint.Addr, opts...)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", settings.Checkpoint.Backend)
	}
}

// buildTools constructs an empty registry shaped by the tool settings.
func buildTools(settings config.Settings) *tools.Registry {
	opts := []tools.Option{tools.WithParallel(settings.Tools.Parallel)}
	if settings.Tools.Timeout > 0 {
		opts = append(opts, tools.WithTimeout(settings.Tools.Timeout))
	}
	if len(settings.Tools.Enabled) > 0 {
		opts = append(opts, tools.WithEnabled(settings.Tools.Enabled...))
	}
	return tools.NewRegistry(opts...)
}
