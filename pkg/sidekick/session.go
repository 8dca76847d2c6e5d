package sidekick

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/sidekick/pkg/sidekick/checkpoint"
	"github.com/randalmurphal/sidekick/pkg/sidekick/config"
	"github.com/randalmurphal/sidekick/pkg/sidekick/event"
	"github.com/randalmurphal/sidekick/pkg/sidekick/graph"
	"github.com/randalmurphal/sidekick/pkg/sidekick/llm"
	"github.com/randalmurphal/sidekick/pkg/sidekick/observability"
	"github.com/randalmurphal/sidekick/pkg/sidekick/tools"
)

// Session is one conversation running the worker/evaluator loop.
//
// A session owns its conversation state, its compiled graph, and the
// capabilities the nodes use (model client, tool registry, checkpoint
// store). Steps on one session are serialized; use separate sessions
// for concurrent conversations.
type Session struct {
	id       string
	settings config.Settings

	client llm.Client
	store  checkpoint.Store
	tools  *tools.Registry
	bus    *event.Bus
	logger *slog.Logger
	clock  func() time.Time

	metrics        observability.MetricsRecorder
	metricsEnabled bool
	tracingEnabled bool

	acquirers []AcquireFunc
	resources []Resource
	graph     *graph.CompiledGraph[RunState]
	ownsStore bool

	mu     sync.Mutex
	state  RunState
	closed bool
}

// New creates a session, building any capability not injected through
// options from the session's settings. Resources registered with
// WithResources are acquired here, in order; if one fails, those already
// acquired are released before the error is returned.
//
// When the checkpoint store holds state for the session's identifier,
// that state is restored and the session continues the prior
// conversation. A corrupt or unreadable snapshot fails construction
// with a *StateError rather than silently starting fresh.
func New(ctx context.Context, opts ...Option) (*Session, error) {
	s := &Session{
		id:       uuid.New().String(),
		settings: config.Defaults(),
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := buildClient(s.settings)
		if err != nil {
			return nil, fmt.Errorf("session setup: %w", err)
		}
		s.client = client
	}
	if s.store == nil {
		store, err := buildStore(s.settings)
		if err != nil {
			return nil, fmt.Errorf("session setup: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}
	if s.tools == nil {
		s.tools = buildTools(s.settings)
	}
	if s.metricsEnabled {
		s.metrics = observability.NewMetricsRecorder()
	}

	compiled, err := buildLoop(s)
	if err != nil {
		s.closeOwnedStore()
		return nil, fmt.Errorf("session setup: %w", err)
	}
	s.graph = compiled

	resources, err := acquireResources(ctx, s.logger, s.id, s.acquirers)
	if err != nil {
		s.closeOwnedStore()
		return nil, fmt.Errorf("session setup: %w", err)
	}
	s.resources = resources

	restored, err := s.restore(ctx)
	if err != nil {
		releaseResources(ctx, s.logger, s.id, s.resources)
		s.closeOwnedStore()
		return nil, err
	}

	if restored {
		s.publish(event.New(event.TypeSessionResumed, s.id, map[string]any{
			"messages": len(s.state.Messages),
		}))
	} else {
		s.publish(event.New(event.TypeSessionCreated, s.id, nil))
	}

	return s, nil
}

// buildLoop assembles the worker/evaluator state machine.
//
//	worker --(tool calls?)--> tools --> worker
//	worker --(plain reply)--> evaluator
//	evaluator --(accepted or input needed)--> END
//	evaluator --(rejected)--> worker
func buildLoop(s *Session) (*graph.CompiledGraph[RunState], error) {
	return graph.New[RunState]().
		AddNode(NodeWorker, s.workerNode).
		AddNode(NodeTools, s.toolsNode).
		AddNode(NodeEvaluator, s.evaluatorNode).
		AddConditionalEdge(NodeWorker, workerRouter).
		AddEdge(NodeTools, NodeWorker).
		AddConditionalEdge(NodeEvaluator, evaluationRouter).
		SetEntry(NodeWorker).
		Compile()
}

// restore loads the session's latest snapshot from the checkpoint
// store. Reports whether prior state was found.
func (s *Session) restore(ctx context.Context) (bool, error) {
	data, err := s.store.Latest(ctx, s.id)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load session %s: %w", s.id, err)
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return false, &StateError{SessionID: s.id, Err: err}
	}
	if cp.Version != checkpoint.Version {
		return false, &StateError{SessionID: s.id, Err: fmt.Errorf("unsupported checkpoint version %d", cp.Version)}
	}
	if err := cp.Verify(); err != nil {
		return false, &StateError{SessionID: s.id, Err: err}
	}

	var st RunState
	if err := json.Unmarshal(cp.State, &st); err != nil {
		return false, &StateError{SessionID: s.id, Err: err}
	}

	s.state = st
	return true, nil
}

// Step runs one superstep: the user message enters the conversation and
// the loop cycles through worker, tools, and evaluator until the
// evaluator accepts the reply or asks for the user.
//
// On success the returned slice is visibleHistory extended with exactly
// two entries, the assistant's reply and the evaluator's feedback, and
// the session's conversation state advances. On failure the error is
// returned with the failing call's typed cause intact and the session's
// state remains exactly as it was before the call; checkpoints persist
// through the last node that completed.
func (s *Session) Step(ctx context.Context, userMessage, successCriteria string, visibleHistory []llm.Message) ([]llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	working := s.state.Append(llm.Message{Role: llm.RoleUser, Content: userMessage})
	working.SuccessCriteria = s.resolveCriteria(successCriteria)
	working.SuccessCriteriaMet = false
	working.UserInputNeeded = false
	// FeedbackOnWork carries across supersteps so the worker sees why
	// its previous answer was rejected.

	s.publish(event.New(event.TypeSuperstepStarted, s.id, map[string]any{
		"message": userMessage,
	}))

	gctx := graph.NewContext(ctx,
		graph.WithLogger(s.logger),
		graph.WithContextRunID(s.id),
		graph.WithCheckpointer(s.store),
	)

	final, err := s.graph.Run(gctx, working, s.runOptions()...)
	if err != nil {
		s.publish(event.New(event.TypeSuperstepFailed, s.id, map[string]any{
			"error": err.Error(),
		}))
		return nil, err
	}

	s.state = final
	s.publish(event.NewNode(event.TypeCheckpointSaved, s.id, NodeEvaluator, map[string]any{
		"messages": len(final.Messages),
	}))

	n := len(final.Messages)
	if n < 2 {
		return nil, fmt.Errorf("superstep for session %s ended with %d messages", s.id, n)
	}
	reply, feedback := final.Messages[n-2], final.Messages[n-1]

	out := make([]llm.Message, 0, len(visibleHistory)+2)
	out = append(out, visibleHistory...)
	out = append(out, reply, feedback)

	s.publish(event.New(event.TypeSuperstepCompleted, s.id, map[string]any{
		"reply":                reply.Content,
		"feedback":             feedback.Content,
		"success_criteria_met": final.SuccessCriteriaMet,
		"user_input_needed":    final.UserInputNeeded,
	}))

	return out, nil
}

// resolveCriteria picks the success criteria for a superstep: the
// explicit argument, then the configured default, then the built-in.
func (s *Session) resolveCriteria(criteria string) string {
	if c := strings.TrimSpace(criteria); c != "" {
		return c
	}
	if s.settings.Run.Criteria != "" {
		return s.settings.Run.Criteria
	}
	return DefaultSuccessCriteria
}

// runOptions maps session settings onto engine options for one run.
func (s *Session) runOptions() []graph.RunOption {
	opts := []graph.RunOption{
		graph.WithRunID(s.id),
		graph.WithCheckpointing(s.store),
		graph.WithObservabilityLogger(s.logger),
	}

	switch {
	case s.settings.Run.Unbounded:
		opts = append(opts, graph.WithUnbounded())
	case s.settings.Run.MaxSteps > 0:
		n := s.settings.Run.MaxSteps
		if n > graph.MaxIterationsLimit {
			n = graph.MaxIterationsLimit
		}
		opts = append(opts, graph.WithMaxIterations(n))
	}

	if s.metricsEnabled {
		opts = append(opts, graph.WithMetrics(true))
	}
	if s.tracingEnabled {
		opts = append(opts, graph.WithTracing(true))
	}
	return opts
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// History returns a copy of the session's full conversation, including
// the system preamble and tool turns.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]llm.Message, len(s.state.Messages))
	copy(msgs, s.state.Messages)
	return msgs
}

// State returns a snapshot of the session's run state.
func (s *Session) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Teardown releases the session's resources in reverse acquisition
// order and closes any store the session built for itself. Release
// failures are logged, never returned, and never stop the remaining
// releases. Safe to call more than once and usable with or without a
// live execution context.
func (s *Session) Teardown(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	resources := s.resources
	s.resources = nil
	s.mu.Unlock()

	releaseResources(ctx, s.logger, s.id, resources)
	s.closeOwnedStore()

	s.publish(event.New(event.TypeSessionEnded, s.id, nil))
}

// closeOwnedStore closes the checkpoint store if the session built it.
// Injected stores belong to the caller and are left open.
func (s *Session) closeOwnedStore() {
	if !s.ownsStore {
		return
	}
	if err := s.store.Close(); err != nil {
		observability.LogTeardownError(s.logger, s.id, "checkpoint store", err)
	}
}

// publish sends an event if a bus is attached.
func (s *Session) publish(evt event.Event) {
	if s.bus != nil {
		s.bus.Publish(evt)
	}
}
