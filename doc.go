// Package loom executes workflows described as directed acyclic graphs of
// heterogeneous compute nodes — tool invocations, LLM calls, conditional
// branches, and nested sub-workflows — against a shared, typed context.
//
// The subpackages implement one component each: nodecfg (data model),
// chain (factory), graph (validator), registry (node dispatch table),
// schedule (level-by-level scheduler), exec (built-in executors), agent
// (the LLM-and-tool reasoning loop), llm (LLM service contract and
// providers), tool (the tool/skill registry), store and ctxmgr (the
// shared per-run context), condeval (safe expression evaluation), and
// mcpexpose (Model Context Protocol tool exposure). This root package
// holds the identifiers, the service locator, and the result model that
// every other package depends on.
package loom
