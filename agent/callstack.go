package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"loom"
)

// callStackKey is the context.WithValue key carrying the current run's
// agent call stack, adapted from the teacher's supervisor.go dry-run
// context-value pattern (a *dryRunContextValue stashed under a private
// key, mutated in place while a func(ctx) callback runs) — generalised
// here from "which nodes ran in this dry run" to "which agent names are
// currently on the call stack", the mechanism spec.md §4.9 needs for
// cross-agent cycle detection.
type callStackKey struct{}

var stackKey = &callStackKey{}

type callStack struct {
	mu    sync.Mutex
	names []string
}

// WithCallStack attaches a fresh, empty call stack to ctx, mirroring
// supervisor.Supervise's ctx = context.WithValue(ctx, ..., new(...))
// setup step. Call once per run, at the top of the ai/llm executor path.
func WithCallStack(ctx context.Context) context.Context {
	return context.WithValue(ctx, stackKey, &callStack{})
}

func getCallStack(ctx context.Context) (*callStack, bool) {
	cs, ok := ctx.Value(stackKey).(*callStack)
	return cs, ok
}

// EnsureCallStack returns ctx unchanged if it already carries a call
// stack, otherwise installs a fresh one. Use at the top of each
// independently-scheduled ai/llm node invocation so nested as_tool
// self-calls triggered within that one node's task share a single
// stack, without one node's recursion leaking into a sibling's.
func EnsureCallStack(ctx context.Context) context.Context {
	if _, ok := getCallStack(ctx); ok {
		return ctx
	}
	return WithCallStack(ctx)
}

// PushAgent pushes name onto ctx's call stack, failing with AgentCycle
// if name is already present — spec.md §4.9's "re-entry of a name
// already on the stack aborts with AgentCycle(path)". It returns a pop
// function the caller must defer.
func PushAgent(ctx context.Context, name string) (pop func(), err error) {
	cs, ok := getCallStack(ctx)
	if !ok {
		// No call stack was installed (e.g. a direct unit test): nothing
		// is recorded and no cycle is detected; the returned pop is a
		// no-op.
		return func() {}, nil
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, n := range cs.names {
		if n == name {
			path := strings.Join(append(append([]string{}, cs.names...), name), " -> ")
			return func() {}, loom.NewError(loom.KindAgentCycle, path, fmt.Errorf("agent %q re-entered its own call stack", name))
		}
	}
	cs.names = append(cs.names, name)

	return func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		if len(cs.names) > 0 {
			cs.names = cs.names[:len(cs.names)-1]
		}
	}, nil
}
