package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibeheal/vibeheal/internal/adapters/outbound/tui"
	"github.com/vibeheal/vibeheal/internal/application"
	"github.com/vibeheal/vibeheal/internal/domain"
)

func newFixCmd(g *globalOptions) *cobra.Command {
	var (
		dryRun      bool
		maxIssues   int
		minSeverity string
		aiTool      string
		assumeYes   bool
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "fix <file>",
		Short: "Fix the open SonarQube issues of one file",
		Long: "Fetch the open issues of a file, fix them bottom-up with the configured AI tool " +
			"and commit each fix separately. The file must have no uncommitted changes.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sev domain.Severity
			if minSeverity != "" {
				parsed, err := domain.ParseSeverity(minSeverity)
				if err != nil {
					return err
				}
				sev = parsed
			}
			if cmd.Flags().Changed("max-issues") && maxIssues < 0 {
				return fmt.Errorf("--max-issues must not be negative")
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
				application.WithConfirmer(newPromptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())),
				application.WithPlanHook(func(file string, plan domain.FixPlan) {
					if !jsonOutput {
						fmt.Fprint(out, tui.RenderPlan(file, plan, r.tool.DisplayName(), dryRun))
					}
				}),
			}
			if rec := sess.recorder(r.tool.Kind()); rec != nil {
				opts = append(opts, application.WithRecorder(rec))
			}
			svc := application.NewFixService(r.client, r.tool, r.repo, sess.cfg, opts...)

			req := application.FixRequest{
				File:        target,
				DryRun:      dryRun,
				AssumeYes:   assumeYes,
				MinSeverity: sev,
			}
			if cmd.Flags().Changed("max-issues") {
				req.MaxIssues = &maxIssues
			}

			summary, runErr := svc.FixFile(cmd.Context(), req)
			if summary != nil {
				sess.saveRun(r.root, domain.RecordFromSummary(sess.runID, string(r.tool.Kind()), time.Now().UTC(), summary), runErr)
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
	cmd.Flags().IntVarP(&maxIssues, "max-issues", "n", 0, "Fix at most N issues")
	cmd.Flags().StringVar(&minSeverity, "min-severity", "", "Skip issues below this severity (BLOCKER, CRITICAL, MAJOR, MINOR, INFO)")
	cmd.Flags().StringVar(&aiTool, "ai-tool", "", "AI tool to use: claude-code, aider or gemini (default: config, then auto-detect)")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the summary as JSON")

	return cmd
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
