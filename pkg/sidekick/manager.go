package sidekick

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/randalmurphal/sidekick/pkg/sidekick/checkpoint"
	"github.com/randalmurphal/sidekick/pkg/sidekick/config"
	"github.com/randalmurphal/sidekick/pkg/sidekick/event"
	"github.com/randalmurphal/sidekick/pkg/sidekick/llm"
	"github.com/randalmurphal/sidekick/pkg/sidekick/registry"
	"github.com/randalmurphal/sidekick/pkg/sidekick/tools"
)

// Manager runs many sessions against shared infrastructure: one
// checkpoint store, one event bus, one configuration. Sessions are
// created on first use of an identifier and restored from the store
// when it holds state for that identifier.
type Manager struct {
	settings    config.Settings
	store       checkpoint.Store
	bus         *event.Bus
	logger      *slog.Logger
	client      llm.Client
	tools       *tools.Registry
	sessionOpts []Option

	sessions  *registry.Registry[string, *Session]
	createMu  sync.Mutex
	ownsStore bool

	mu     sync.Mutex
	closed bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerSettings replaces the default configuration applied to
// every session the manager creates.
func WithManagerSettings(settings config.Settings) ManagerOption {
	return func(m *Manager) { m.settings = settings }
}

// WithManagerStore injects the checkpoint store shared by all sessions.
// The manager will not close an injected store.
func WithManagerStore(store checkpoint.Store) ManagerOption {
	return func(m *Manager) { m.store = store }
}

// WithManagerBus attaches an event bus shared by all sessions.
func WithManagerBus(bus *event.Bus) ManagerOption {
	return func(m *Manager) { m.bus = bus }
}

// WithManagerLogger sets the logger shared by all sessions.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerClient injects one model client shared by all sessions.
// Without it each session builds its own client from settings.
func WithManagerClient(c llm.Client) ManagerOption {
	return func(m *Manager) { m.client = c }
}

// WithManagerTools injects one tool registry shared by all sessions.
func WithManagerTools(reg *tools.Registry) ManagerOption {
	return func(m *Manager) { m.tools = reg }
}

// WithSessionOptions appends extra options applied to every session the
// manager creates, after the manager's own wiring. Use it for
// per-session concerns like WithResources or WithClock.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) { m.sessionOpts = append(m.sessionOpts, opts...) }
}

// NewManager creates a session manager. A store not injected through
// options is built from settings and closed by Close.
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		settings: config.Defaults(),
		logger:   slog.Default(),
		sessions: registry.New[string, *Session](),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		store, err := buildStore(m.settings)
		if err != nil {
			return nil, fmt.Errorf("manager setup: %w", err)
		}
		m.store = store
		m.ownsStore = true
	}

	return m, nil
}

// Session returns the live session for an identifier, creating and
// registering it on first use. Creation restores persisted state when
// the store holds checkpoints for the identifier.
func (m *Manager) Session(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	if s, ok := m.sessions.Get(sessionID); ok {
		return s, nil
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	if s, ok := m.sessions.Get(sessionID); ok {
		return s, nil
	}

	s, err := m.newSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	m.sessions.Register(s.ID(), s)
	return s, nil
}

// Create mints a session with a fresh identifier and registers it.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	s, err := m.newSession(ctx, "")
	if err != nil {
		return nil, err
	}
	m.sessions.Register(s.ID(), s)
	return s, nil
}

// newSession builds a session wired to the manager's shared
// infrastructure. An empty id lets the session mint its own.
func (m *Manager) newSession(ctx context.Context, sessionID string) (*Session, error) {
	opts := []Option{
		WithSettings(m.settings),
		WithStore(m.store),
		WithLogger(m.logger),
	}
	if sessionID != "" {
		opts = append(opts, WithSessionID(sessionID))
	}
	if m.bus != nil {
		opts = append(opts, WithBus(m.bus))
	}
	if m.client != nil {
		opts = append(opts, WithClient(m.client))
	}
	if m.tools != nil {
		opts = append(opts, WithTools(m.tools))
	}
	opts = append(opts, m.sessionOpts...)

	return New(ctx, opts...)
}

// Get returns the live session for an identifier without creating one.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	return m.sessions.Get(sessionID)
}

// Step runs one superstep on the named session, creating the session on
// first use.
func (m *Manager) Step(ctx context.Context, sessionID, userMessage, successCriteria string, visibleHistory []llm.Message) ([]llm.Message, error) {
	s, err := m.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Step(ctx, userMessage, successCriteria, visibleHistory)
}

// Reset abandons a session and starts over: the old session is torn
// down, its checkpoints are deleted, and a session with a fresh
// identifier and empty state takes its place. Returns the new
// identifier. The old identifier is usable afterwards only as a brand
// new session.
func (m *Manager) Reset(ctx context.Context, sessionID string) (string, error) {
	if err := m.checkOpen(); err != nil {
		return "", err
	}

	if old, ok := m.sessions.Pop(sessionID); ok {
		old.Teardown(ctx)
	}
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return "", fmt.Errorf("reset session %s: %w", sessionID, err)
	}

	fresh, err := m.Create(ctx)
	if err != nil {
		return "", err
	}

	if m.bus != nil {
		m.bus.Publish(event.New(event.TypeSessionReset, sessionID, map[string]any{
			"new_session_id": fresh.ID(),
		}))
	}
	return fresh.ID(), nil
}

// Teardown destroys the named session and releases its resources.
// Returns ErrSessionNotFound if the manager holds no such session.
// Persisted checkpoints survive; create a session with the same
// identifier to pick the conversation back up.
func (m *Manager) Teardown(ctx context.Context, sessionID string) error {
	s, ok := m.sessions.Pop(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	s.Teardown(ctx)
	return nil
}

// Close tears down every live session and closes the store if the
// manager built it. Idempotent.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.sessions.Range(func(id string, s *Session) bool {
		s.Teardown(ctx)
		m.sessions.Delete(id)
		return true
	})

	if m.ownsStore {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("close checkpoint store: %w", err)
		}
	}
	return nil
}

// checkOpen fails fast once the manager is closed.
func (m *Manager) checkOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	return nil
}
