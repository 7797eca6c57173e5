// Package graph implements the Graph Validator (spec.md §4.2): cycle
// detection, unknown-dependency checks, best-effort schema-fit warnings
// between adjacent nodes, and level assignment for the scheduler.
package graph

import (
	"fmt"
	"sort"

	"loom"
	"loom/chain"
	"loom/nodecfg"
)

// Warning is a non-fatal validator finding (currently only schema
// mismatches, per spec.md §4.2 step 4 — "best effort", never blocking).
type Warning struct {
	Kind    loom.ErrorKind
	Message string
}

// Validated holds the outcome of validating a chain: every node now has
// its Level populated, plus any non-fatal Warnings collected along the
// way.
type Validated struct {
	Chain    *chain.Chain
	Levels   [][]*nodecfg.Node // index == Level
	Warnings []Warning
}

// Validate runs spec.md §4.2's checks in order: unknown dependency
// references, cycle detection (Kahn's algorithm), then level assignment.
// Schema-fit is checked opportunistically while walking dependency edges.
func Validate(c *chain.Chain) (*Validated, error) {
	byID := c.ByID()

	for _, n := range c.Nodes {
		for _, dep := range n.Dependencies {
			if _, ok := byID[dep]; !ok {
				return nil, loom.NewError(loom.KindUnknownDependency, string(n.ID),
					fmt.Errorf("node %q depends on unknown node %q", n.ID, dep))
			}
		}
	}

	levelOf, order, err := kahnLevels(c.Nodes, byID)
	if err != nil {
		return nil, err
	}

	var warnings []Warning
	for _, n := range c.Nodes {
		n.Level = loom.Level(levelOf[n.ID])
		warnings = append(warnings, schemaWarnings(n, byID)...)
	}

	levels := make([][]*nodecfg.Node, maxLevel(levelOf)+1)
	for _, n := range order {
		levels[n.Level] = append(levels[n.Level], n)
	}
	for _, lvl := range levels {
		sort.Slice(lvl, func(i, j int) bool { return lvl[i].ID < lvl[j].ID })
	}

	return &Validated{Chain: c, Levels: levels, Warnings: warnings}, nil
}

// kahnLevels runs Kahn's algorithm over the dependency graph, returning
// each node's level (0 for roots, 1+max(dependency levels) otherwise)
// and the visited order. A non-empty remainder after the queue drains
// indicates a cycle, per spec.md §4.2 step 2.
func kahnLevels(nodes []*nodecfg.Node, byID map[loom.NodeID]*nodecfg.Node) (map[loom.NodeID]int, []*nodecfg.Node, error) {
	indegree := make(map[loom.NodeID]int, len(nodes))
	dependents := make(map[loom.NodeID][]loom.NodeID, len(nodes))
	for _, n := range nodes {
		if _, ok := indegree[n.ID]; !ok {
			indegree[n.ID] = 0
		}
		for _, dep := range n.Dependencies {
			indegree[n.ID]++
			dependents[dep] = append(dependents[dep], n.ID)
		}
	}

	var queue []loom.NodeID
	for _, n := range nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })

	levelOf := make(map[loom.NodeID]int, len(nodes))
	var order []*nodecfg.Node
	visited := 0

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, byID[id])
		visited++

		maxDepLevel := -1
		for _, dep := range byID[id].Dependencies {
			if levelOf[dep] > maxDepLevel {
				maxDepLevel = levelOf[dep]
			}
		}
		levelOf[id] = maxDepLevel + 1

		var next []loom.NodeID
		for _, child := range dependents[id] {
			indegree[child]--
			if indegree[child] == 0 {
				next = append(next, child)
			}
		}
		sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
		queue = append(queue, next...)
	}

	if visited != len(nodes) {
		var stuck []string
		for _, n := range nodes {
			if indegree[n.ID] > 0 {
				stuck = append(stuck, string(n.ID))
			}
		}
		sort.Strings(stuck)
		return nil, nil, loom.NewError(loom.KindCycleDetected, fmt.Sprintf("%v", stuck),
			fmt.Errorf("cycle detected among nodes %v", stuck))
	}

	return levelOf, order, nil
}

func maxLevel(levelOf map[loom.NodeID]int) int {
	m := 0
	for _, l := range levelOf {
		if l > m {
			m = l
		}
	}
	return m
}

// schemaWarnings does a best-effort shape check between n's declared
// input_schema (if n is a tool node) and each dependency's declared
// output_schema — a mismatch is reported as a Warning, never an error,
// per spec.md §4.2 step 4's "does not block execution" wording.
func schemaWarnings(n *nodecfg.Node, byID map[loom.NodeID]*nodecfg.Node) []Warning {
	toolCfg, ok := n.Config.(*nodecfg.ToolConfig)
	if !ok || toolCfg.InputSchema == nil {
		return nil
	}
	var warnings []Warning
	for _, dep := range n.Dependencies {
		depNode, ok := byID[dep]
		if !ok {
			continue
		}
		depCfg, ok := depNode.Config.(*nodecfg.ToolConfig)
		if !ok || depCfg.OutputSchema == nil {
			continue
		}
		if !schemasCompatible(depCfg.OutputSchema, toolCfg.InputSchema) {
			warnings = append(warnings, Warning{
				Kind:    loom.KindSchemaMismatch,
				Message: fmt.Sprintf("node %q input_schema may not accept node %q's output_schema", n.ID, dep),
			})
		}
	}
	return warnings
}

// schemasCompatible is a shallow "type" field comparison — just enough
// to flag an obvious shape mismatch without becoming a full JSON-Schema
// validator, which spec.md §4.2 explicitly scopes as "best effort".
func schemasCompatible(producer, consumer map[string]any) bool {
	pt, pok := producer["type"]
	ct, cok := consumer["type"]
	if !pok || !cok {
		return true
	}
	return pt == ct
}
