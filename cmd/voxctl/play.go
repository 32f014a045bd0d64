package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voxctl/internal/bootstrap"
	"voxctl/internal/config"
	"voxctl/internal/domain"
)

var playFlags struct {
	textPath string
	start    int
	backend  string
}

// playCmd is the detached player subprocess spawned by "speak" and the
// paragraph-navigation restarts. Hidden: users interact through the
// session commands, never by launching a player directly.
var playCmd = &cobra.Command{
	Use:    "play",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend := domain.Backend(playFlags.backend)
		if backend != domain.BackendRemote {
			backend = domain.BackendLocal
		}

		return bootstrap.Engine(cfg).Run(ctx, playFlags.textPath, playFlags.start, backend)
	},
}

func init() {
	playCmd.Flags().StringVar(&playFlags.textPath, "text", "", "Path of the persisted text to speak")
	playCmd.Flags().IntVar(&playFlags.start, "start", 0, "Paragraph index to start from")
	playCmd.Flags().StringVar(&playFlags.backend, "backend", string(domain.BackendLocal), "Voice backend (local or remote)")
	_ = playCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(playCmd)
}
