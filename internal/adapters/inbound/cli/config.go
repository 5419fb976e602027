package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vibeheal/vibeheal/internal/adapters/outbound/tui"
)

func newConfigCmd(g *globalOptions) *cobra.Command {
	var pretty bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		Long:  "Print the configuration after defaults, .vibeheal.yaml and environment overrides are applied. Secrets are masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := g.open(cmd, false)
			if err != nil {
				return err
			}
			defer sess.close(cmd.Context())

			out := cmd.OutOrStdout()
			if pretty {
				fmt.Fprint(out, tui.RenderConfig(sess.cfg, g.configPath))
			} else {
				data, err := yaml.Marshal(sess.cfg.Redacted())
				if err != nil {
					return fmt.Errorf("encoding config: %w", err)
				}
				fmt.Fprint(out, string(data))
			}

			if err := sess.cfg.Validate(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: configuration is incomplete: %v\n", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "Render as a styled table")

	return cmd
}
