package commands

import (
	"github.com/spf13/cobra"

	"github.com/auravis/auravis/pkg/cli"
)

var (
	// Global flags
	verbose    bool
	serverURL  string
	sessionID  string
	outputFmt  string
	contextArg string
)

var rootCmd = &cobra.Command{
	Use:   "auravis",
	Short: "Live audio visualization server and client",
	Long: `auravis - turn a live audio stream into a moving point in 3D space.

The server extracts timbral features from inbound PCM, trains a 3D
embedding online from the live stream and serves frames over HTTP and
WebSocket. The client commands talk to a running server.

Examples:
  # Run the server
  auravis serve -c config.yaml

  # Stream a synthetic 440 Hz tone and watch the projection train
  auravis simulate --freq 440 --seconds 10

  # Live terminal view of a session
  auravis monitor --session default

  # Query training state
  auravis status --jq .status.trained`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL (default http://127.0.0.1:8780)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session ID (default \"default\")")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "", "output format: yaml|json|raw")
	rootCmd.PersistentFlags().StringVar(&contextArg, "context", "", "named context from the CLI config")
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}

// resolveServer picks the server base URL: flag, then context, then default.
func resolveServer() string {
	if serverURL != "" {
		return serverURL
	}
	if cfg, err := cli.LoadConfig("auravis"); err == nil {
		if ctx, err := cfg.ResolveContext(contextArg); err == nil && ctx.Server != "" {
			return ctx.Server
		}
	}
	return "http://127.0.0.1:8780"
}

// resolveSession picks the session ID: flag, then context, then "default".
func resolveSession() string {
	if sessionID != "" {
		return sessionID
	}
	if cfg, err := cli.LoadConfig("auravis"); err == nil {
		if ctx, err := cfg.ResolveContext(contextArg); err == nil && ctx.Session != "" {
			return ctx.Session
		}
	}
	return "default"
}

// outputOptions maps the --output flag to cli output options.
func outputOptions() cli.OutputOptions {
	return cli.OutputOptions{Format: cli.OutputFormat(outputFmt)}
}
