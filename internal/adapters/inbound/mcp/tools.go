package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vibeheal/vibeheal/internal/domain"
	"github.com/vibeheal/vibeheal/internal/domain/processor"
)

const (
	defaultIssueLimit = 100
	notConfigured     = "SonarQube is not configured: set sonarqube.url, credentials and project_key"
)

// registerTools registers all vibeheal MCP tools on the given server.
func registerTools(s *server.MCPServer, deps Deps) {
	// 1. vibeheal_list_issues
	s.AddTool(
		mcplib.NewTool("vibeheal_list_issues",
			mcplib.WithDescription("Lists open SonarQube issues for the project, or for one file when file is given"),
			mcplib.WithString("file", mcplib.Description("Path relative to the project root")),
			mcplib.WithNumber("limit", mcplib.Description("Maximum number of issues to return (default 100)")),
		),
		handleListIssues(deps),
	)

	// 2. vibeheal_plan_file
	s.AddTool(
		mcplib.NewTool("vibeheal_plan_file",
			mcplib.WithDescription("Returns the ordered fix plan vibeheal would execute for a file, without changing anything"),
			mcplib.WithString("file",
				mcplib.Required(),
				mcplib.Description("Path relative to the project root"),
			),
			mcplib.WithString("min_severity", mcplib.Description("Lowest severity to include: BLOCKER, CRITICAL, MAJOR, MINOR or INFO")),
			mcplib.WithNumber("max_issues", mcplib.Description("Maximum number of issues to plan")),
		),
		handlePlanFile(deps),
	)

	// 3. vibeheal_plan_duplications
	s.AddTool(
		mcplib.NewTool("vibeheal_plan_duplications",
			mcplib.WithDescription("Returns the duplicated blocks of a file in the order vibeheal would refactor them, without changing anything"),
			mcplib.WithString("file",
				mcplib.Required(),
				mcplib.Description("Path relative to the project root"),
			),
			mcplib.WithNumber("max_duplications", mcplib.Description("Maximum number of duplications to plan")),
		),
		handlePlanDuplications(deps),
	)

	// 4. vibeheal_history
	s.AddTool(
		mcplib.NewTool("vibeheal_history",
			mcplib.WithDescription("Returns past fix and cleanup runs, newest first"),
			mcplib.WithNumber("limit", mcplib.Description("Maximum number of runs to return (default all)")),
		),
		handleHistory(deps),
	)
}

func handleListIssues(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		if msg := trackerUnavailable(deps); msg != "" {
			return errorResult(msg), nil
		}
		file := cleanPath(request.GetString("file", ""))
		limit := request.GetInt("limit", defaultIssueLimit)

		var (
			issues []domain.Issue
			err    error
		)
		if file != "" {
			issues, err = deps.Tracker.IssuesForFile(ctx, deps.Config.SonarQube.ProjectKey, file)
		} else {
			issues, err = deps.Tracker.IssuesForProject(ctx, deps.Config.SonarQube.ProjectKey)
		}
		if err != nil {
			return errorResult(fmt.Sprintf("fetching issues failed: %v", err)), nil
		}

		total := len(issues)
		if limit > 0 && len(issues) > limit {
			issues = issues[:limit]
		}
		return jsonResult(map[string]any{
			"project": deps.Config.SonarQube.ProjectKey,
			"file":    file,
			"total":   total,
			"issues":  issues,
		})
	}
}

func handlePlanFile(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		file, err := request.RequireString("file")
		if err != nil {
			return errorResult("missing required parameter: file"), nil
		}
		if msg := trackerUnavailable(deps); msg != "" {
			return errorResult(msg), nil
		}

		var sev domain.Severity
		if raw := request.GetString("min_severity", ""); raw != "" {
			sev, err = domain.ParseSeverity(raw)
			if err != nil {
				return errorResult(err.Error()), nil
			}
		}
		maxIssues := request.GetInt("max_issues", 0)

		file = cleanPath(file)
		issues, err := deps.Tracker.IssuesForFile(ctx, deps.Config.SonarQube.ProjectKey, file)
		if err != nil {
			return errorResult(fmt.Sprintf("fetching issues failed: %v", err)), nil
		}

		plan := processor.Plan(issues, processor.Options(sev, maxIssues, maxIssues > 0))
		return jsonResult(map[string]any{
			"file": file,
			"plan": plan,
		})
	}
}

func handlePlanDuplications(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		file, err := request.RequireString("file")
		if err != nil {
			return errorResult("missing required parameter: file"), nil
		}
		if deps.Duplications == nil {
			return errorResult(notConfigured), nil
		}

		file = cleanPath(file)
		projectKey := deps.Config.SonarQube.ProjectKey
		dups, err := deps.Duplications.DuplicationsForFile(ctx, projectKey, file)
		if err != nil {
			return errorResult(fmt.Sprintf("fetching duplications failed: %v", err)), nil
		}

		plan := processor.PlanDuplications(dups, projectKey+":"+file, request.GetInt("max_duplications", 0))
		locations := make([][]string, 0, plan.Len())
		for _, g := range plan.Groups {
			var locs []string
			for _, b := range g.Others(plan.Ref) {
				locs = append(locs, dups.Location(b))
			}
			locations = append(locations, locs)
		}
		return jsonResult(map[string]any{
			"file":      file,
			"plan":      plan,
			"locations": locations,
		})
	}
}

func handleHistory(deps Deps) server.ToolHandlerFunc {
	return func(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		records, err := deps.History.Load(deps.Dir)
		if err != nil {
			return errorResult(fmt.Sprintf("loading history failed: %v", err)), nil
		}
		newest := make([]domain.RunRecord, 0, len(records))
		for i := len(records) - 1; i >= 0; i-- {
			newest = append(newest, records[i])
		}
		if limit := request.GetInt("limit", 0); limit > 0 && len(newest) > limit {
			newest = newest[:limit]
		}
		return jsonResult(newest)
	}
}

func trackerUnavailable(deps Deps) string {
	if deps.Tracker == nil {
		return notConfigured
	}
	return ""
}

func cleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "./")
}

// jsonResult marshals v to JSON and returns it as a text content result.
func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(data))},
	}, nil
}

// errorResult returns a tool result that indicates an error occurred.
func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(msg)},
		IsError: true,
	}
}
