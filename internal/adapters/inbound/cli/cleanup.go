package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/adapters/outbound/analysis"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/tui"
	"github.com/vibeheal/vibeheal/internal/application"
	"github.com/vibeheal/vibeheal/internal/domain"
)

func newCleanupCmd(g *globalOptions) *cobra.Command {
	var (
		baseBranch    string
		maxIterations int
		patterns      []string
		aiTool        string
		jsonOutput    bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Fix the issues introduced on the current branch",
		Long: "Analyze the files changed since the base branch in a temporary SonarQube project, " +
			"fix what is found, and repeat until no issues remain or no progress is made. " +
			"The temporary project is deleted afterwards.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxIterations < 1 {
				return fmt.Errorf("--max-iterations must be at least 1")
			}
			if err := domain.ValidatePatterns(patterns); err != nil {
				return err
			}

			sess, err := g.open(cmd, true)
			if err != nil {
				return err
			}
			defer sess.close(cmd.Context())

			r, err := sess.wire(aiTool)
			if err != nil {
				return err
			}

			rec := sess.recorder(r.tool.Kind())
			fixOpts := []application.FixOption{
				application.WithWorkDir(r.root),
				application.WithLogger(sess.logger),
				application.WithRuleResolver(r.rules),
			}
			if rec != nil {
				fixOpts = append(fixOpts, application.WithRecorder(rec))
			}
			fixer := application.NewFixService(r.client, r.tool, r.repo, sess.cfg, fixOpts...)

			runner := analysis.New(sess.cfg.SonarQube, sess.cfg.Analysis, r.root, r.client, sess.logger)
			temp := application.NewTempProjectService(r.client, sess.logger)
			svc := application.NewCleanupService(fixer, temp, r.client, runner, r.repo, r.repo, sess.cfg, sess.logger)
			if rec != nil {
				svc.WithRecorder(rec)
			}

			sess.logger.Info("starting branch cleanup",
				zap.String("base", baseBranch),
				zap.Int("max_iterations", maxIterations),
				zap.String("tool", r.tool.DisplayName()))

			result, runErr := svc.Run(cmd.Context(), application.CleanupRequest{
				BaseBranch:    baseBranch,
				MaxIterations: maxIterations,
				Patterns:      patterns,
			})
			if result != nil {
				sess.saveRun(r.root, domain.RecordFromCleanup(sess.runID, string(r.tool.Kind()), baseBranch, time.Now().UTC(), result), runErr)
				if jsonOutput {
					if err := writeJSON(cmd, result); err != nil {
						return err
					}
				} else {
					fmt.Fprint(cmd.OutOrStdout(), tui.RenderCleanup(result))
				}
			}
			if runErr != nil {
				return runErr
			}
			if result.TotalFailed > 0 {
				return errFixesFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&baseBranch, "base-branch", "b", application.DefaultBaseBranch, "Branch to compare against")
	cmd.Flags().IntVarP(&maxIterations, "max-iterations", "i", application.DefaultMaxIterations, "Maximum analyze-and-fix iterations")
	cmd.Flags().StringArrayVarP(&patterns, "pattern", "p", nil, "Only consider changed files matching this glob (repeatable)")
	cmd.Flags().StringVar(&aiTool, "ai-tool", "", "AI tool to use: claude-code, aider or gemini (default: config, then auto-detect)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	return cmd
}
