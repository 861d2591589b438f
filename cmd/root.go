package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"parley/internal/ui"
	"parley/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Two-party WebRTC rendezvous: signaling server and call client",
	Long: `Parley pairs exactly two participants into a room and relays the
handshake they need to establish a direct peer-to-peer media session.
It never touches the media itself.

Run the signaling server with "parley serve" and join a room with
"parley call <room>".`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main. An interrupt cancels the
// command context so a running call can hang up before exiting.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
