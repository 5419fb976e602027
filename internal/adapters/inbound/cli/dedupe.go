package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vibeheal/vibeheal/internal/adapters/outbound/analysis"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/tui"
	"github.com/vibeheal/vibeheal/internal/application"
	"github.com/vibeheal/vibeheal/internal/domain"
)

func newDedupeCmd(g *globalOptions) *cobra.Command {
	var (
		dryRun          bool
		maxDuplications int
		aiTool          string
		assumeYes       bool
		jsonOutput      bool
	)

	cmd := &cobra.Command{
		Use:   "dedupe <file>",
		Short: "Refactor the duplicated code SonarQube reports for one file",
		Long: "Fetch the duplication groups a file takes part in, refactor them bottom-up with the " +
			"configured AI tool and commit each refactor separately. The file must have no uncommitted changes.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxDuplications < 0 {
				return fmt.Errorf("--max-duplications must not be negative")
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

			target, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			target = resolvePath(target)

			out := cmd.OutOrStdout()
			opts := []application.FixOption{
				application.WithWorkDir(r.root),
				application.WithLogger(sess.logger),
				application.WithRuleResolver(r.rules),
				application.WithDuplicationSource(r.client),
				application.WithConfirmer(newPromptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())),
				application.WithDuplicationPlanHook(func(file string, plan domain.DuplicationPlan) {
					if !jsonOutput {
						fmt.Fprint(out, tui.RenderDuplicationPlan(file, plan, r.tool.DisplayName(), dryRun))
					}
				}),
			}
			if rec := sess.recorder(r.tool.Kind()); rec != nil {
				opts = append(opts, application.WithRecorder(rec))
			}
			svc := application.NewFixService(r.client, r.tool, r.repo, sess.cfg, opts...)

			summary, runErr := svc.DedupeFile(cmd.Context(), application.DedupeRequest{
				File:            target,
				DryRun:          dryRun,
				AssumeYes:       assumeYes,
				MaxDuplications: maxDuplications,
			})
			if summary != nil {
				rec := domain.RecordFromSummary(sess.runID, string(r.tool.Kind()), time.Now().UTC(), summary)
				rec.Kind = domain.RunKindDedupe
				sess.saveRun(r.root, rec, runErr)
				if jsonOutput {
					if err := writeJSON(cmd, summary); err != nil {
						return err
					}
				} else {
					fmt.Fprint(out, tui.RenderSummary(summary))
				}
			}
			if runErr != nil {
				return runErr
			}
			if summary.HasFailures() {
				return errFixesFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Run the AI tool but do not commit")
	cmd.Flags().IntVarP(&maxDuplications, "max-duplications", "n", 0, "Refactor at most N duplications (0 for all)")
	cmd.Flags().StringVar(&aiTool, "ai-tool", "", "AI tool to use: claude-code, aider or gemini (default: config, then auto-detect)")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the summary as JSON")

	return cmd
}

func newDedupeBranchCmd(g *globalOptions) *cobra.Command {
	var (
		baseBranch    string
		maxIterations int
		patterns      []string
		aiTool        string
		jsonOutput    bool
	)

	cmd := &cobra.Command{
		Use:   "dedupe-branch",
		Short: "Refactor the duplicated code in files changed on the current branch",
		Long: "Analyze the files changed since the base branch in a temporary SonarQube project, " +
			"refactor the duplications it reports, and repeat until none remain or no progress is made. " +
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
				application.WithDuplicationSource(r.client),
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

			sess.logger.Info("starting branch deduplication",
				zap.String("base", baseBranch),
				zap.Int("max_iterations", maxIterations),
				zap.String("tool", r.tool.DisplayName()))

			result, runErr := svc.Dedupe(cmd.Context(), application.CleanupRequest{
				BaseBranch:    baseBranch,
				MaxIterations: maxIterations,
				Patterns:      patterns,
			})
			if result != nil {
				record := domain.RecordFromCleanup(sess.runID, string(r.tool.Kind()), baseBranch, time.Now().UTC(), result)
				record.Kind = domain.RunKindDedupeBranch
				sess.saveRun(r.root, record, runErr)
				if jsonOutput {
					if err := writeJSON(cmd, result); err != nil {
						return err
					}
				} else {
					fmt.Fprint(cmd.OutOrStdout(), tui.RenderDedupeBranch(result))
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
	cmd.Flags().IntVarP(&maxIterations, "max-iterations", "i", application.DefaultMaxIterations, "Maximum analyze-and-refactor iterations")
	cmd.Flags().StringArrayVarP(&patterns, "pattern", "p", nil, "Only consider changed files matching this glob (repeatable)")
	cmd.Flags().StringVar(&aiTool, "ai-tool", "", "AI tool to use: claude-code, aider or gemini (default: config, then auto-detect)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	return cmd
}
