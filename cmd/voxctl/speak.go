package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"voxctl/internal/bootstrap"
)

var speakCmd = &cobra.Command{
	Use:   "speak",
	Short: "Read text from stdin and speak it aloud",
	Long: `Reads text from stdin and starts playback in a detached player
process, paragraph by paragraph. Refuses to start while a recording or
another playback owns the session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("cannot read stdin: %w", err)
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			fmt.Fprintln(os.Stderr, "voxctl: nothing to speak")
			return nil
		}

		services, err := bootstrap.Build()
		if err != nil {
			return err
		}
		return services.Controller.Speak(cmd.Context(), text)
	},
}

func init() {
	rootCmd.AddCommand(speakCmd)
}
