package commands

import (
	"github.com/spf13/cobra"

	"github.com/auravis/auravis/pkg/cli"
)

var (
	statusJQ  string
	statusAll bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session training status",
	Long: `Query a session's projector state, training progress and frame count.

Examples:
  auravis status
  auravis status --session live
  auravis status --all
  auravis status --jq .status.progress`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		if statusAll {
			var sessions []any
			if err := c.get("/api/v1/viz/sessions", &sessions); err != nil {
				return err
			}
			return cli.OutputFiltered(sessions, statusJQ, outputOptions())
		}
		var info any
		if err := c.get("/api/v1/viz/status/"+resolveSession(), &info); err != nil {
			return err
		}
		return cli.OutputFiltered(info, statusJQ, outputOptions())
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusJQ, "jq", "", "filter output with a jq expression")
	statusCmd.Flags().BoolVar(&statusAll, "all", false, "list all sessions")
	rootCmd.AddCommand(statusCmd)
}
