package main

import (
	"github.com/spf13/cobra"

	"voxctl/internal/bootstrap"
	"voxctl/internal/domain"
)

// actionRunE builds the runtime graph and applies a single transition.
// Shared by every short-lived hotkey-style subcommand.
func actionRunE(action domain.Action) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		services, err := bootstrap.Build()
		if err != nil {
			return err
		}
		return services.Controller.Apply(cmd.Context(), action)
	}
}

var startRecordCmd = &cobra.Command{
	Use:   "start-record",
	Short: "Start a microphone capture",
	Args:  cobra.NoArgs,
	RunE:  actionRunE(domain.ActionStartRecording),
}

var stopRecordCmd = &cobra.Command{
	Use:   "stop-record",
	Short: "Stop the capture, transcribe it and paste the text",
	Args:  cobra.NoArgs,
	RunE:  actionRunE(domain.ActionStopRecording),
}

var nextParagraphCmd = &cobra.Command{
	Use:   "next-paragraph",
	Short: "Skip playback forward one paragraph",
	Args:  cobra.NoArgs,
	RunE:  actionRunE(domain.ActionNextParagraph),
}

var prevParagraphCmd = &cobra.Command{
	Use:   "prev-paragraph",
	Short: "Skip playback back one paragraph",
	Args:  cobra.NoArgs,
	RunE:  actionRunE(domain.ActionPrevParagraph),
}

var pauseResumeCmd = &cobra.Command{
	Use:   "pause-resume",
	Short: "Pause or resume playback",
	Args:  cobra.NoArgs,
	RunE:  actionRunE(domain.ActionPauseResume),
}

var toggleBackendCmd = &cobra.Command{
	Use:   "toggle-backend",
	Short: "Switch between the local and remote voice backend",
	Args:  cobra.NoArgs,
	RunE:  actionRunE(domain.ActionToggleBackend),
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Kill any owned process and reset the session to idle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := bootstrap.Build()
		if err != nil {
			return err
		}
		return services.Controller.Clean(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(startRecordCmd)
	rootCmd.AddCommand(stopRecordCmd)
	rootCmd.AddCommand(nextParagraphCmd)
	rootCmd.AddCommand(prevParagraphCmd)
	rootCmd.AddCommand(pauseResumeCmd)
	rootCmd.AddCommand(toggleBackendCmd)
	rootCmd.AddCommand(cleanCmd)
}
