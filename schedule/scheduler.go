package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"loom"
	"loom/ctxmgr"
	"loom/graph"
	"loom/nodecfg"
	"loom/registry"
	"loom/store"
)

// Options configures a single Run, per spec.md §4.7.
type Options struct {
	// MaxParallel caps in-flight tasks per level. <=0 means unbounded up
	// to the level size, per spec.md §4.7's default.
	MaxParallel int

	// DepthCeiling is the max topological level permitted, inclusive.
	// Negative means unlimited.
	DepthCeiling int

	// TokenCeiling is the max cumulative LLM total_tokens permitted
	// across the run. Zero means unlimited.
	TokenCeiling int

	// NodeTimeout bounds a single node's execution. Zero means no timeout.
	NodeTimeout time.Duration

	// RunTimeout bounds the whole run. Zero means no timeout.
	RunTimeout time.Duration

	// Strict, when true, cancels the whole run on the first node
	// failure instead of the permissive default (suppress descendants,
	// continue siblings), per spec.md §9's Open Question decision.
	Strict bool

	// Input seeds the context dictionary under the reserved "input" key
	// before any node has run.
	Input map[string]any
}

// DefaultOptions returns spec.md's documented defaults: unbounded
// parallelism, no ceilings, permissive failure policy.
func DefaultOptions() Options {
	return Options{MaxParallel: 0, DepthCeiling: -1, TokenCeiling: 0}
}

// Scheduler runs a validated chain level by level.
type Scheduler struct {
	registry *registry.Registry
	ctxmgr   *ctxmgr.Manager
	logger   store.Logger
}

// New builds a Scheduler bound to reg (the executor dispatch table) and
// cm (the shared per-run context manager).
func New(reg *registry.Registry, cm *ctxmgr.Manager, logger store.Logger) *Scheduler {
	if logger == nil {
		logger = store.NopLogger{}
	}
	return &Scheduler{registry: reg, ctxmgr: cm, logger: logger}
}

// nodeOutcome is the internal per-node result used to decide descendant
// eligibility; it wraps the node's loom.NodeExecutionResult. Node outputs
// reach the context dictionary through the ctxmgr.Manager, not through
// this struct.
type nodeOutcome struct {
	result loom.NodeExecutionResult
}

// Run executes v level by level under DefaultOptions, returning the uniform
// RunResult spec.md §4.10 describes.
func (s *Scheduler) Run(parent context.Context, v *graph.Validated) loom.RunResult {
	return s.RunWithOptions(parent, v, DefaultOptions())
}

// RunWithOptions is Run with explicit Options.
func (s *Scheduler) RunWithOptions(parent context.Context, v *graph.Validated, opts Options) loom.RunResult {
	rc := loom.NewRunContext(parent, opts.RunTimeout)
	defer rc.Cancel()

	if opts.Input != nil {
		s.ctxmgr.UpdateNodeContext("input", opts.Input)
	}

	outcomes := make(map[loom.NodeID]*nodeOutcome, len(v.Chain.Nodes))
	var outcomesMu sync.Mutex
	var aggUsage loom.Usage
	var aggMu sync.Mutex

	runFailed := false
	var runErr error

	for lvl, nodes := range v.Levels {
		if opts.DepthCeiling >= 0 && lvl > opts.DepthCeiling {
			runErr = loom.NewError(loom.KindDepthCeilingExceeded, fmt.Sprintf("%d", opts.DepthCeiling),
				fmt.Errorf("Depth ceiling %d exceeded at level %d", opts.DepthCeiling, lvl))
			runFailed = true
			break
		}

		select {
		case <-rc.Done():
			runErr = loom.NewError(loom.KindCancelled, "", rc.Err())
			runFailed = true
		default:
		}
		if runFailed {
			break
		}

		sem := newSemaphore(opts.MaxParallel, len(nodes))
		var wg sync.WaitGroup
		levelFailed := false
		var levelMu sync.Mutex

		for _, n := range nodes {
			n := n
			wg.Add(1)
			sem.acquire()
			go func() {
				defer wg.Done()
				defer sem.release()

				outcome := s.runOne(rc, n, v, opts, &outcomesMu, outcomes)

				outcomesMu.Lock()
				outcomes[n.ID] = outcome
				outcomesMu.Unlock()

				if outcome.result.Usage != nil {
					aggMu.Lock()
					aggUsage.Add(*outcome.result.Usage)
					aggMu.Unlock()
				}
				if !outcome.result.Success {
					levelMu.Lock()
					levelFailed = true
					levelMu.Unlock()
					if opts.Strict {
						rc.Cancel()
					}
				}
			}()
		}
		wg.Wait()

		if opts.TokenCeiling > 0 {
			aggMu.Lock()
			exceeded := aggUsage.TotalTokens > opts.TokenCeiling
			aggMu.Unlock()
			if exceeded {
				rc.Cancel()
				runErr = loom.NewError(loom.KindTokenCeilingExceeded, fmt.Sprintf("%d", opts.TokenCeiling),
					fmt.Errorf("token ceiling %d exceeded", opts.TokenCeiling))
				runFailed = true
				break
			}
		}

		if levelFailed && opts.Strict {
			rc.Cancel()
			runErr = loom.NewError(loom.KindUpstreamFailed, "", fmt.Errorf("node failure at level %d, strict mode cancels the run", lvl))
			runFailed = true
			break
		}
	}

	output := make(map[loom.NodeID]loom.NodeExecutionResult, len(outcomes))
	allSucceeded := true
	for id, o := range outcomes {
		output[id] = o.result
		if !o.result.Success {
			allSucceeded = false
		}
	}

	result := loom.RunResult{
		Success: allSucceeded && !runFailed,
		Output:  output,
		Usage:   aggUsage,
	}
	switch {
	case runFailed && runErr != nil:
		result.Error = runErr.Error()
		result.ErrorKind = loom.Classify(runErr)
	case !allSucceeded:
		// No run-level ceiling/strict-mode error fired; surface the
		// first node-level failure (in deterministic level/ID order) as
		// the run's representative error, per spec.md §6's exit-condition
		// list — callers should be able to read result.ErrorKind even
		// when the failure originated from a single permissive-mode node.
		for _, nodes := range v.Levels {
			for _, n := range nodes {
				if o, ok := outcomes[n.ID]; ok && !o.result.Success {
					result.Error = o.result.Error
					result.ErrorKind = o.result.ErrorKind
					goto found
				}
			}
		}
	found:
	}
	return result
}

// runOne executes a single node, short-circuiting to UpstreamFailed or
// CancelledUpstream if any dependency did not succeed, per spec.md
// §4.7's failure-policy rule.
func (s *Scheduler) runOne(rc loom.RunContext, n *nodecfg.Node, v *graph.Validated, opts Options, mu *sync.Mutex, outcomes map[loom.NodeID]*nodeOutcome) *nodeOutcome {
	meta := loom.NodeMetadata{NodeID: n.ID, NodeType: string(n.Type), Name: n.Name, StartTime: time.Now()}

	select {
	case <-rc.Done():
		return &nodeOutcome{result: loom.Fail(meta, loom.NewError(loom.KindCancelledUpstream, string(n.ID), rc.Err()))}
	default:
	}

	mu.Lock()
	for _, dep := range n.Dependencies {
		depOutcome, ok := outcomes[dep]
		mu.Unlock()
		if !ok || !depOutcome.result.Success {
			var kind loom.ErrorKind = loom.KindUpstreamFailed
			if ok && depOutcome.result.ErrorKind == loom.KindCancelled {
				kind = loom.KindCancelledUpstream
			}
			return &nodeOutcome{result: loom.Fail(meta, loom.NewError(kind, string(dep),
				fmt.Errorf("dependency %q did not succeed", dep)))}
		}
		mu.Lock()
	}
	mu.Unlock()

	exec, ok := s.registry.Lookup(n.Type)
	if !ok {
		return &nodeOutcome{result: loom.Fail(meta, loom.NewError(loom.KindUnknownNodeType, string(n.Type),
			fmt.Errorf("no executor registered for node type %q", n.Type)))}
	}

	nodeCtx := rc.Context()
	cancel := func() {}
	if opts.NodeTimeout > 0 {
		nodeCtx, cancel = context.WithTimeout(nodeCtx, opts.NodeTimeout)
	}
	defer cancel()

	inputs := s.ctxmgr.Snapshot()
	out, err := exec(nodeCtx, rc, n, toStringAnyMap(inputs))
	if err != nil {
		if nodeCtx.Err() == context.DeadlineExceeded {
			err = loom.NewError(loom.KindTimeout, string(n.ID), err)
		}
		return &nodeOutcome{result: loom.Fail(meta, err)}
	}

	value := out
	var usage *loom.Usage
	if eo, ok := out.(*loom.ExecutorOutput); ok {
		value = eo.Value
		usage = eo.Usage
		meta.Branch = eo.Branch
		meta.RoundsExhausted = eo.RoundsExhausted
	}

	s.ctxmgr.UpdateNodeContext(n.ID, value)

	return &nodeOutcome{result: loom.Succeed(meta, value, usage)}
}

func toStringAnyMap(m map[loom.NodeID]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

// semaphore is a counting semaphore sized to opts.MaxParallel, or to
// levelSize when MaxParallel is unset (<=0) — spec.md §4.7's "default
// unbounded up to the level size".
type semaphore struct{ ch chan struct{} }

func newSemaphore(maxParallel, levelSize int) *semaphore {
	size := maxParallel
	if size <= 0 || size > levelSize {
		size = levelSize
	}
	if size <= 0 {
		size = 1
	}
	return &semaphore{ch: make(chan struct{}, size)}
}

func (s *semaphore) acquire() { s.ch <- struct{}{} }
func (s *semaphore) release() { <-s.ch }
