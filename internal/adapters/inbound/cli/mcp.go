package cli

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcpadapter "github.com/vibeheal/vibeheal/internal/adapters/inbound/mcp"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/history"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/sonarqube"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/vcs"
)

func newMCPCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "MCP server commands",
		Long:  "Commands for running the vibeheal MCP (Model Context Protocol) server.",
	}
	cmd.AddCommand(newMCPServeCmd(g))
	return cmd
}

func newMCPServeCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start vibeheal MCP server (stdio)",
		Long: "Start the vibeheal MCP server using stdio transport. AI coding assistants can list " +
			"SonarQube issues, preview fix plans and read run history. Nothing is modified.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := g.open(cmd, false)
			if err != nil {
				return err
			}
			defer sess.close(cmd.Context())

			repo, _ := vcs.Open(sess.workDir, sess.logger)
			deps := mcpadapter.Deps{
				History: history.New(),
				Config:  sess.cfg,
				Dir:     repoRoot(repo, sess.workDir),
			}
			if err := sess.cfg.Validate(); err != nil {
				sess.logger.Warn("issue tools disabled", zap.Error(err))
			} else {
				client := sonarqube.New(sess.cfg.SonarQube, sess.cfg.HTTP, sess.logger)
				deps.Tracker = client
				deps.Duplications = client
			}

			return server.ServeStdio(mcpadapter.NewVibehealMCPServer(deps, version))
		},
	}
}
