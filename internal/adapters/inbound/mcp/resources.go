package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// registerResources registers all vibeheal MCP resources on the given server.
func registerResources(s *server.MCPServer, deps Deps) {
	// 1. vibeheal://config - resolved configuration, secrets masked
	s.AddResource(
		mcplib.NewResource(
			"vibeheal://config",
			"Configuration",
			mcplib.WithResourceDescription("Resolved vibeheal configuration with secrets masked"),
			mcplib.WithMIMEType("application/json"),
		),
		handleConfigResource(deps),
	)

	// 2. vibeheal://history - all recorded runs
	s.AddResource(
		mcplib.NewResource(
			"vibeheal://history",
			"Run History",
			mcplib.WithResourceDescription("Recorded fix and cleanup runs, oldest first"),
			mcplib.WithMIMEType("application/json"),
		),
		handleHistoryResource(deps),
	)
}

func handleConfigResource(deps Deps) server.ResourceHandlerFunc {
	return func(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		return jsonResource("vibeheal://config", deps.Config.Redacted())
	}
}

func handleHistoryResource(deps Deps) server.ResourceHandlerFunc {
	return func(_ context.Context, _ mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
		records, err := deps.History.Load(deps.Dir)
		if err != nil {
			return nil, fmt.Errorf("loading history: %w", err)
		}
		return jsonResource("vibeheal://history", records)
	}
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
