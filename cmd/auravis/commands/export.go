package commands

import (
	"github.com/spf13/cobra"

	"github.com/auravis/auravis/pkg/cli"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a session archive",
	Long: `Write a session archive (status plus recent frames) through the
server's configured export backend and print its manifest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		var out any
		if err := c.post("/api/v1/viz/export/"+resolveSession(), nil, &out); err != nil {
			return err
		}
		return cli.Output(out, outputOptions())
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
