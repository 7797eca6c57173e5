// Package registry implements the Node Registry (spec.md §4.1): a
// dispatch table from node Kind to an Executor function, with alias
// support (tool/skill, ai/llm) and last-writer-wins registration,
// grounded on the teacher's execution_registry.go pattern of a
// type-keyed map guarded by a mutex.
package registry

import (
	"context"
	"sync"

	"loom"
	"loom/nodecfg"
)

// Executor runs a single node given its resolved input values (already
// placeholder-substituted by loom/schedule) and returns its output.
type Executor func(ctx context.Context, rc loom.RunContext, n *nodecfg.Node, inputs map[string]any) (any, error)

// Registry maps a nodecfg.Kind to the Executor that handles it.
type Registry struct {
	mu        sync.RWMutex
	executors map[nodecfg.Kind]Executor
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{executors: make(map[nodecfg.Kind]Executor)}
}

// Register binds kind (and any alias pointing to the same canonical
// kind) to fn. A later call for the same kind overwrites the prior one,
// matching the teacher's last-writer-wins registration semantics.
func (r *Registry) Register(kind nodecfg.Kind, fn Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[nodecfg.Canonical(kind)] = fn
}

// Lookup resolves kind (through its canonical alias) to an Executor.
func (r *Registry) Lookup(kind nodecfg.Kind) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.executors[nodecfg.Canonical(kind)]
	return fn, ok
}
