package sidekick

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/sidekick/pkg/sidekick/observability"
)

// Resource is an external handle scoped to a session's lifetime: a
// browser, a subprocess, a temp directory. Resources are acquired at
// session setup and released at teardown through a single code path that
// works with or without an active execution context.
type Resource interface {
	// Name identifies the resource in teardown logs.
	Name() string

	// Release frees the resource. Called exactly once per session.
	Release(ctx context.Context) error
}

// AcquireFunc produces one session-scoped resource during setup.
type AcquireFunc func(ctx context.Context) (Resource, error)

// resource is the plain Resource implementation behind NewResource.
type resource struct {
	name    string
	release func(ctx context.Context) error
}

func (r *resource) Name() string { return r.name }

func (r *resource) Release(ctx context.Context) error {
	if r.release == nil {
		return nil
	}
	return r.release(ctx)
}

// NewResource wraps a release function as a named Resource.
func NewResource(name string, release func(ctx context.Context) error) Resource {
	return &resource{name: name, release: release}
}

// acquireResources runs the acquirers in declaration order. When one
// fails, the already-acquired prefix is released in reverse order and
// the acquisition error is returned.
func acquireResources(ctx context.Context, logger *slog.Logger, sessionID string, acquirers []AcquireFunc) ([]Resource, error) {
	acquired := make([]Resource, 0, len(acquirers))
	for i, acquire := range acquirers {
		res, err := acquire(ctx)
		if err != nil {
			releaseResources(ctx, logger, sessionID, acquired)
			return nil, fmt.Errorf("acquire resource %d: %w", i, err)
		}
		acquired = append(acquired, res)
	}
	return acquired, nil
}

// releaseResources releases in reverse acquisition order. Failures are
// logged and never propagated: a teardown error must not block session
// destruction or mask a session result.
func releaseResources(ctx context.Context, logger *slog.Logger, sessionID string, resources []Resource) {
	for i := len(resources) - 1; i >= 0; i-- {
		res := resources[i]
		if err := res.Release(ctx); err != nil {
			observability.LogTeardownError(logger, sessionID, res.Name(), err)
		}
	}
}
