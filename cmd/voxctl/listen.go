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
	"voxctl/internal/hotkey"
	"voxctl/internal/logger"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Grab the configured hotkeys and dispatch actions until interrupted",
	Long: `Connects to the X server, grabs the configured key combos globally and
applies the matching action on every press. This is the only long-lived
voxctl process; state still lives on disk, so hotkey invocations and
manual CLI invocations can be mixed freely.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := bootstrap.Build()
		if err != nil {
			return err
		}

		source, err := hotkey.NewX11Source(bindingsFrom(services.Config.Hotkeys))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dispatcher := hotkey.NewDispatcher(services.Controller, services.Config.Hotkeys.Debounce)

		done := make(chan error, 1)
		go func() {
			done <- dispatcher.Run(ctx, source.Events())
		}()

		logger.Info("listening for hotkeys", "state_dir", services.Store.Dir())
		if err := source.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		if err := <-done; err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func bindingsFrom(cfg config.HotkeyConfig) []hotkey.Binding {
	return []hotkey.Binding{
		{Combo: cfg.StartRecord, Action: domain.ActionStartRecording},
		{Combo: cfg.StopRecord, Action: domain.ActionStopRecording},
		{Combo: cfg.NextParagraph, Action: domain.ActionNextParagraph},
		{Combo: cfg.PrevParagraph, Action: domain.ActionPrevParagraph},
		{Combo: cfg.PauseResume, Action: domain.ActionPauseResume},
		{Combo: cfg.ToggleBackend, Action: domain.ActionToggleBackend},
	}
}

func init() {
	rootCmd.AddCommand(listenCmd)
}
