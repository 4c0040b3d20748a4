package commands

import (
	"github.com/spf13/cobra"

	"github.com/auravis/auravis/pkg/cli"
)

var resetModel bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset a session's audio state",
	Long: `Clear a session's audio buffer and smoothing state. With --model the
trained projector is also discarded and sample collection starts over;
without it a trained embedding survives the reset.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		var out any
		err := c.post("/api/v1/viz/reset/"+resolveSession(),
			map[string]bool{"reset_model": resetModel}, &out)
		if err != nil {
			return err
		}
		return cli.Output(out, outputOptions())
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetModel, "model", false, "also reset the trained projector")
	rootCmd.AddCommand(resetCmd)
}
