package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/vibeheal/vibeheal/internal/domain"
)

// Deps are the read-only collaborators the MCP tools query.
type Deps struct {
	Tracker      domain.IssueTracker
	Duplications domain.DuplicationSource
	History      domain.RunHistory
	Config       domain.Config
	// Dir is the repository root history is stored under.
	Dir string
}

// NewVibehealMCPServer creates an MCP server exposing issue listings, fix
// plans and run history. Nothing it exposes modifies files or the tracker.
func NewVibehealMCPServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"vibeheal",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	registerTools(s, deps)
	registerResources(s, deps)

	return s
}
