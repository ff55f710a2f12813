package main

import (
	"fmt"

	"github.com/itachisky/livecap/internal/tui"
	"github.com/spf13/cobra"
)

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Launch the interactive dashboard",
	RunE:  runDash,
}

func runDash(cmd *cobra.Command, args []string) error {
	if err := tui.Run(cfg); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}
