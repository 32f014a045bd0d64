package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"voxctl/internal/bootstrap"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := bootstrap.Build()
		if err != nil {
			return err
		}

		session, err := services.Controller.Status()
		if err != nil {
			return err
		}
		if session.Backend == "" {
			session.Backend = services.Store.Backend()
		}

		if statusJSON {
			out, err := json.MarshalIndent(session, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "mode: %s\n", session.Mode)
		fmt.Fprintf(cmd.OutOrStdout(), "backend: %s\n", session.Backend)
		if session.HasProcess() {
			fmt.Fprintf(cmd.OutOrStdout(), "pid: %d\n", session.PID)
		}
		if session.Speaking() {
			fmt.Fprintf(cmd.OutOrStdout(), "paragraph: %d\n", session.ParagraphCursor)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw session record as JSON")
	rootCmd.AddCommand(statusCmd)
}
