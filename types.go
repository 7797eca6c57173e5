package loom

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NodeID is the user-declared identifier for a node within a single chain
// spec. It must be unique within that chain.
type NodeID string

// NodePath is the fully-qualified path to a node instance within a run,
// including any nested-chain or loop-iteration prefix (e.g.
// "/parent/child:#2/leaf"). Top-level nodes have a NodePath equal to their
// NodeID.
type NodePath string

// RunID uniquely identifies a single execute() invocation of a chain.
type RunID = uuid.UUID

// NewRunID mints a fresh RunID, mirroring the teacher's WorkflowUUID
// generation in heart.go.
func NewRunID() RunID { return uuid.New() }

// Level is the topological level of a node: 0 for roots, 1+max(level of
// dependencies) otherwise.
type Level int

// RunContext carries the state threaded through a single chain execution:
// the standard Go context for cancellation/deadlines, the run's identity,
// and its base node path. It is the loom analogue of the
// teacher's Context struct in heart.go/core.go, generalised away from a
// generics-parameterised execution graph toward a JSON-described one.
type RunContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	runID    RunID
	basePath NodePath

	// StartedAt records when the run entered execute(); used for
	// timeout accounting and metadata timestamps.
	StartedAt time.Time
}

// NewRunContext builds a RunContext rooted at parent, generating a fresh
// RunID and, if timeout > 0, attaching a deadline.
func NewRunContext(parent context.Context, timeout time.Duration) RunContext {
	ctx := parent
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	return RunContext{
		ctx:       ctx,
		cancel:    cancel,
		runID:     NewRunID(),
		basePath:  "/",
		StartedAt: time.Now(),
	}
}

// Context returns the underlying standard context.Context.
func (r RunContext) Context() context.Context { return r.ctx }

// RunID returns this run's identity.
func (r RunContext) RunID() RunID { return r.runID }

// Cancel triggers this run's cancellation signal. Safe to call multiple
// times.
func (r RunContext) Cancel() {
	if r.cancel != nil {
		r.cancel()
	}
}

// Done mirrors context.Context.Done, the single suspension-point signal
// every executor must honour per spec §5.
func (r RunContext) Done() <-chan struct{} { return r.ctx.Done() }

// Err mirrors context.Context.Err.
func (r RunContext) Err() error { return r.ctx.Err() }

// child returns a RunContext scoped to a nested chain or loop body,
// sharing the parent's cancellation but a fresh sub-path — mirroring how
// the teacher's WorkflowDefinition.New spins up a fresh Context per
// sub-run while inheriting the parent's Go context for cancellation.
func (r RunContext) child(segment NodePath) RunContext {
	c := r
	c.basePath = joinPath(r.basePath, segment)
	return c
}

// BasePath returns the path prefix nodes defined within this scope should
// use, mirroring core.go's Context.BasePath.
func (r RunContext) BasePath() NodePath { return r.basePath }

func joinPath(base NodePath, seg NodePath) NodePath {
	if base == "/" || base == "" {
		return "/" + seg
	}
	return base + "/" + seg
}
