// Command loomd is a thin fx-wired example entrypoint: it wires the
// service locator, LLM providers, tool registry, chain factory, graph
// validator and scheduler behind fx.New, then either runs a single chain
// spec against an optional JSON input file, or serves the tool registry
// over MCP on stdio.
//
// Usage:
//
//	loomd run chain.json input.json
//	loomd mcp
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"loom/mcpexpose"

	"github.com/mark3labs/mcp-go/server"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: loomd run <chain.json> [input.json] | loomd mcp")
		os.Exit(2)
	}

	app := newApp(func(runner *Runner, mcpSrv *mcpexpose.Server) {
		switch os.Args[1] {
		case "run":
			runChain(runner, os.Args[2:])
		case "mcp":
			serveMCP(mcpSrv)
		default:
			fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
			os.Exit(2)
		}
	})

	// fx.New's fx.Invoke hooks already ran registerLocator/RegisterAll/
	// the run function above by the time Start returns; loomd has no
	// long-running fx.Lifecycle hooks of its own, so Start-then-Stop is
	// enough to drive the whole wiring graph once per process.
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "loomd: startup failed:", err)
		os.Exit(1)
	}
	defer app.Stop(ctx)
}

func runChain(runner *Runner, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: loomd run <chain.json> [input.json]")
		os.Exit(2)
	}
	spec, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "loomd: reading chain spec:", err)
		os.Exit(1)
	}

	var input map[string]any
	if len(args) > 1 {
		raw, err := os.ReadFile(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "loomd: reading input:", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(raw, &input); err != nil {
			fmt.Fprintln(os.Stderr, "loomd: parsing input:", err)
			os.Exit(1)
		}
	}

	result, err := runner.Run(context.Background(), spec, input)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loomd: run failed:", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
	if !result.Success {
		os.Exit(1)
	}
}

func serveMCP(s *mcpexpose.Server) {
	if err := server.ServeStdio((*server.MCPServer)(s)); err != nil {
		fmt.Fprintln(os.Stderr, "loomd: mcp server exited:", err)
		os.Exit(1)
	}
}
