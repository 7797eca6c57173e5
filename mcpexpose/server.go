package mcpexpose

import (
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps an mcp-go MCPServer the way the teacher's mcp.MCPServer
// wrapped mark3labs' server.MCPServer, generalised to accept any number
// of Adapted tools instead of a single generic one.
type Server server.MCPServer

// NewServer builds an MCP server named name/version and registers every
// tool in tools against it.
func NewServer(name, version string, tools ...Adapted) *Server {
	s := server.NewMCPServer(name, version)
	AddTools(s, tools...)
	return (*Server)(s)
}

// AddTools registers tools against an already-constructed mark3labs
// server.MCPServer, mirroring the teacher's NewMCPServer(s, tools...)
// signature split into a standalone helper so callers building the
// underlying server themselves (e.g. with server.WithLogging()) can
// still reuse loom's tool adaptation.
func AddTools(s *server.MCPServer, tools ...Adapted) {
	serverTools := make([]server.ServerTool, 0, len(tools))
	for _, t := range tools {
		a, ok := t.(*adapted)
		if !ok {
			continue
		}
		serverTools = append(serverTools, server.ServerTool{
			Tool:    a.Definition(),
			Handler: a.handle,
		})
	}
	s.AddTools(serverTools...)
}
