package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibeheal/vibeheal/internal/adapters/outbound/history"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/tui"
	"github.com/vibeheal/vibeheal/internal/adapters/outbound/vcs"
)

func newHistoryCmd(g *globalOptions) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past fix and cleanup runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := g.open(cmd, false)
			if err != nil {
				return err
			}
			defer sess.close(cmd.Context())

			repo, _ := vcs.Open(sess.workDir, sess.logger)
			records, err := history.New().Load(repoRoot(repo, sess.workDir))
			if err != nil {
				return fmt.Errorf("loading history: %w", err)
			}
			records = history.Last(records, limit)

			if jsonOutput {
				return writeJSON(cmd, records)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderHistory(records))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show at most N runs (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output history as JSON")

	return cmd
}
