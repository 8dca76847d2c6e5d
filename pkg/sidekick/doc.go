/*
Package sidekick runs tool-using assistant sessions through a
worker/evaluator loop.

# Overview

A session holds one conversation. Each user turn triggers a superstep:
the worker node produces an assistant reply (calling tools through the
tools node as needed), and the evaluator node judges the reply against
the session's success criteria. A rejected reply loops back to the
worker with feedback; an accepted reply, or one that needs the user,
ends the superstep.

	session, err := sidekick.New(ctx,
	    sidekick.WithTools(reg),
	    sidekick.WithBus(bus),
	)
	if err != nil {
	    log.Fatal(err)
	}
	defer session.Teardown(ctx)

	history, err = session.Step(ctx,
	    "Summarize the report in docs/q3.md",
	    "A three-sentence summary covering revenue, churn, and outlook",
	    history)

Step returns the visible history extended with exactly two entries: the
assistant's reply and the evaluator's feedback on it. Tool traffic and
the system preamble stay inside the session's internal conversation.

# Sessions and Persistence

Session state is checkpointed after every node, keyed by session
identifier. Creating a session with a known identifier restores the
conversation from the configured store:

	session, err := sidekick.New(ctx,
	    sidekick.WithSessionID("support-4211"),
	    sidekick.WithStore(store),
	)

A snapshot that exists but cannot be decoded or fails its integrity
check surfaces as *StateError; the caller decides whether to start
fresh. Between supersteps the store is the single owner of session
state.

# Manager

Manager serves many sessions over shared infrastructure and exposes the
per-identifier operations:

	mgr, err := sidekick.NewManager(sidekick.WithManagerStore(store))
	history, err = mgr.Step(ctx, id, msg, criteria, history)
	newID, err := mgr.Reset(ctx, id)
	err = mgr.Teardown(ctx, id)

Reset abandons a conversation: the old session's checkpoints are
deleted and a fresh identifier takes its place. Teardown releases a
session's resources but leaves its checkpoints, so the conversation can
be picked up later.

# Errors

Failures inside a superstep leave the session's in-memory state as it
was before the call; checkpoints persist through the last node that
completed. The typed cause survives wrapping:

	var llmErr llm.Error
	if errors.As(err, &llmErr) && llmErr.Retryable() {
	    // back off and retry the superstep
	}

Tool failures never fail a superstep. They come back to the worker as
error-flagged tool results, and the worker decides how to proceed.
*/
package sidekick
