package main

import (
	"fmt"
	"os"

	"github.com/itachisky/livecap/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "livecap",
	Short: "livecap - multi-run live video captioning client",
	Long:  `livecap launches, monitors, and stops concurrent video-analysis runs against a captioning backend, with live captions and system telemetry.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr      string
	signalingURL string
	collectorURL string
	alertMode    bool
	cfg          config.Config
)

func init() {
	cobra.OnInitialize(loadConfig)

	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "", "Backend API base URL (default $LIVECAP_API or http://127.0.0.1:8000)")
	rootCmd.PersistentFlags().StringVar(&signalingURL, "signaling", "", "WebRTC signaling base URL for video links")
	rootCmd.PersistentFlags().StringVar(&collectorURL, "collector", "", "Metrics collector websocket URL")
	rootCmd.PersistentFlags().BoolVar(&alertMode, "alerts", false, "Enable yes/no caption alert tagging")

	// Add subcommands
	rootCmd.AddCommand(dashCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(pipelinesCmd)
}

// loadConfig layers .env, environment, and flags. Flags win.
func loadConfig() {
	_ = config.Load()
	cfg = config.FromEnv()
	if apiAddr != "" {
		cfg.APIBase = apiAddr
	}
	if signalingURL != "" {
		cfg.SignalingURL = signalingURL
	}
	if collectorURL != "" {
		cfg.CollectorURL = collectorURL
	}
	if alertMode {
		cfg.AlertMode = true
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
