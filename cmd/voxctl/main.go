package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"voxctl/internal/domain"
	"voxctl/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "voxctl",
	Short:         "Hotkey-driven dictation and speech playback controller",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `voxctl turns hotkeys into a push-to-talk dictation loop: record from
the microphone, transcribe, and paste the text into the focused window.
It also speaks text aloud with paragraph navigation, pause/resume and a
switchable local/remote voice backend.

Every invocation except "listen" is short-lived: it applies one
transition against the shared on-disk session and exits.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("verbose") {
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting verbose flag: %v\n", err)
				return
			}
			logger.SetVerbose(verbose)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

// Execute runs the CLI and maps failures to exit codes: 2 for a
// transition the current mode rejects, 1 for everything else.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "voxctl:", err)
		if domain.IsStateConflict(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func main() {
	// Optional per-user overrides; absence is the normal case.
	_ = godotenv.Load()
	Execute()
}
