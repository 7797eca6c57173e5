package main

import (
	"context"
	"fmt"

	"loom"
	"loom/agent"
	"loom/builtin"
	"loom/chain"
	"loom/ctxmgr"
	"loom/dioc"
	"loom/exec"
	"loom/graph"
	"loom/llm"
	"loom/mcpexpose"
	"loom/registry"
	"loom/schedule"
	"loom/store"
	"loom/tool"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Runner is loomd's public surface: build a chain from a spec document
// and run it to completion.
type Runner struct {
	factory   *chain.Factory
	scheduler *schedule.Scheduler
}

// Run parses spec (a chain.Spec-shaped JSON document), validates its
// graph, and executes it with the process's configured scheduler
// options and seeded input.
func (r *Runner) Run(ctx context.Context, spec []byte, input map[string]any) (loom.RunResult, error) {
	c, err := r.factory.Build(spec)
	if err != nil {
		return loom.RunResult{}, err
	}
	validated, err := graph.Validate(c)
	if err != nil {
		return loom.RunResult{}, err
	}
	opts := appConfig.Scheduler
	opts.Input = input
	return r.scheduler.RunWithOptions(ctx, validated, opts), nil
}

// appConfig is populated once at startup by loadConfig and read by
// Runner.Run for per-run scheduler defaults; loomd is a single-config
// process, not a multi-tenant server, so a package-level value (rather
// than threading Config through every call) matches its scope.
var appConfig Config

func newLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func newStoreLogger(l *zap.Logger) store.Logger {
	return store.NewZapLogger(l)
}

func newToolRegistry() *tool.Registry {
	r := tool.NewRegistry()
	builtin.RegisterAll(r)
	return r
}

func newContextManager(tools *tool.Registry) *ctxmgr.Manager {
	return ctxmgr.New(tools, nil)
}

func newBackingStore() store.Store {
	return store.NewMemoryStore()
}

func newMemory(backing store.Store, router *llm.Router, cfg Config) agent.MemoryAdapter {
	return agent.NewDefaultMemory(backing, "loomd", router, cfg.SummaryModel)
}

// newLLMRouter wires both teacher-grounded providers behind a single
// spec.md §6 Service contract, registered under the same provider names
// a chain's LLMConfig.Provider field would name.
func newLLMRouter(cfg Config, logger *zap.Logger) *llm.Router {
	router := llm.NewRouter(cfg.DefaultProvider)

	if cfg.OpenAIAPIKey != "" {
		chatClient := openai.NewClient(cfg.OpenAIAPIKey)
		router.Register("openai-functions", llm.NewChatProvider(chatClient))

		router.Register("openai", llm.NewOpenAIService(cfg.OpenAIAPIKey))
	} else {
		logger.Warn("LOOMD_OPENAI_API_KEY unset, no LLM providers registered")
	}
	return router
}

func newFactory() *chain.Factory {
	return chain.NewFactory()
}

func newRegistry() *registry.Registry {
	return registry.New()
}

// newExecDeps builds the shared collaborators loom/exec's five executors
// close over; exec.RegisterAll (an fx.Invoke in newApp) registers them.
// MCP exposure of the tool registry is built separately by mcpServer.
func newExecDeps(cm *ctxmgr.Manager, router *llm.Router, mem agent.MemoryAdapter, logger store.Logger, factory *chain.Factory, reg *registry.Registry, cfg Config) *exec.Deps {
	return &exec.Deps{
		CtxMgr:           cm,
		LLMSvc:           router,
		Memory:           mem,
		Logger:           logger,
		Factory:          factory,
		Registry:         reg,
		SchedulerOptions: cfg.Scheduler,
	}
}

func newScheduler(reg *registry.Registry, cm *ctxmgr.Manager, logger store.Logger) *schedule.Scheduler {
	return schedule.New(reg, cm, logger)
}

func newRunner(factory *chain.Factory, sched *schedule.Scheduler) *Runner {
	return &Runner{factory: factory, scheduler: sched}
}

// mcpServer exposes every builtin tool over MCP for external drivers,
// generalising the teacher's single-tool mcp/server.go example into a
// whole-registry export.
func mcpServer(tools *tool.Registry) *mcpexpose.Server {
	adapted := mcpexpose.FromRegistry(tools)
	return mcpexpose.NewServer("loomd", "1.0.0", adapted...)
}

// registerLocator publishes the process's core services into
// loom.Default() under the spec.md §4.2 well-known keys, using
// loom/dioc's dig-backed Builder instead of calling loom.Default().Register
// directly, so cmd/loomd exercises the constructor-graph resolution path
// the way a larger application (with cross-service constructor
// dependencies) would.
func registerLocator(cm *ctxmgr.Manager, router *llm.Router, tools *tool.Registry) error {
	b := dioc.New()
	if err := b.Provide(func() *ctxmgr.Manager { return cm }); err != nil {
		return fmt.Errorf("loomd: provide context manager: %w", err)
	}
	if err := b.Provide(func() *llm.Router { return router }); err != nil {
		return fmt.Errorf("loomd: provide llm router: %w", err)
	}
	if err := b.Provide(func() *tool.Registry { return tools }); err != nil {
		return fmt.Errorf("loomd: provide tool registry: %w", err)
	}
	dioc.Bind[*ctxmgr.Manager](b, loom.ServiceContext)
	dioc.Bind[*llm.Router](b, loom.ServiceLLM)
	dioc.Bind[*tool.Registry](b, loom.ServiceTool)
	return b.Build(loom.Default())
}

// newApp assembles the fx graph: every constructor above plus fx.Invoke
// hooks that register the executors, seed loom.Default(), and call runFn
// (which runs a chain or serves MCP, depending on the subcommand).
func newApp(runFn func(*Runner, *mcpexpose.Server)) *fx.App {
	return fx.New(
		fx.Provide(
			loadConfig,
			newLogger,
			newStoreLogger,
			newToolRegistry,
			newContextManager,
			newBackingStore,
			newLLMRouter,
			newMemory,
			newFactory,
			newRegistry,
			newExecDeps,
			newScheduler,
			newRunner,
			mcpServer,
		),
		fx.Invoke(func(cfg Config) { appConfig = cfg }),
		fx.Invoke(exec.RegisterAll),
		fx.Invoke(registerLocator),
		fx.Invoke(runFn),
	)
}
