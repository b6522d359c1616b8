// Package main is the entry point for the livemark command.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "livemark",
	Short: "Live-rendered markdown in the terminal",
	Long: `livemark renders markdown notes the way a live-preview editor shows them:
callouts, query and habit blocks, embeds and tasks become widgets, while the
line under the cursor stays raw.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(decorationsCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "path to configuration file")
	flags.String("vault", "", "vault directory used to resolve embeds")
	flags.String("bridge", "", "websocket URL of the host answering queries")
	flags.String("theme", "", "color theme (default|mono|solarized)")
	flags.String("glyphs", "", "glyph set (unicode|ascii)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.String("log-level", "", "log level (debug|info|warn|error)")
	flags.String("log-file", "", "write logs to a file instead of stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
