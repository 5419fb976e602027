package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vibeheal/vibeheal/internal/adapters/outbound/sonarqube"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/tui"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/vcs"
	"github.com/vibeheal/vibeheal/internal/domain"
)

func newIssuesCmd(g *globalOptions) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "issues [file]",
		Short: "List open SonarQube issues for the project or one file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := g.open(cmd, true)
			if err != nil {
				return err
			}
			defer sess.close(cmd.Context())

			client := sonarqube.New(sess.cfg.SonarQube, sess.cfg.HTTP, sess.logger)
			key := sess.cfg.SonarQube.ProjectKey

			var issues []domain.Issue
			if len(args) == 1 {
				repo, _ := vcs.Open(sess.workDir, sess.logger)
				rel, err := relativeTo(repoRoot(repo, sess.workDir), args[0])
				if err != nil {
					return err
				}
				issues, err = client.IssuesForFile(cmd.Context(), key, rel)
				if err != nil {
					return fmt.Errorf("fetching issues for %s: %w", rel, err)
				}
			} else {
				issues, err = client.IssuesForProject(cmd.Context(), key)
				if err != nil {
					return fmt.Errorf("fetching issues for %s: %w", key, err)
				}
			}

			if limit > 0 && len(issues) > limit {
				issues = issues[:limit]
			}
			if jsonOutput {
				return writeJSON(cmd, issues)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderIssues(issues))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most N issues")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output issues as JSON")

	return cmd
}

// relativeTo returns file relative to root in slash form.
func relativeTo(root, file string) (string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	rel, err := filepath.Rel(root, resolvePath(abs))
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return filepath.ToSlash(rel), nil
}
