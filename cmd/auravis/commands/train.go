package commands

import (
	"github.com/spf13/cobra"

	"github.com/auravis/auravis/pkg/cli"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Force projector training",
	Long: `Trigger training before the sample target is reached. The server
refuses (HTTP 409) when fewer than the minimum samples are collected or
training already ran.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		var out any
		if err := c.post("/api/v1/viz/train/"+resolveSession(), nil, &out); err != nil {
			return err
		}
		return cli.Output(out, outputOptions())
	},
}

func init() {
	rootCmd.AddCommand(trainCmd)
}
