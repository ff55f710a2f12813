package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/itachisky/livecap/internal/api"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new captioning run",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop [run-id]",
	Short: "Stop a run (idempotent when the run is already gone)",
	Args:  cobra.ExactArgs(1),
	RunE:  runStop,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active runs",
	RunE:  runList,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available captioning models",
	RunE:  runModels,
}

var pipelinesCmd = &cobra.Command{
	Use:   "pipelines",
	Short: "List available pipelines",
	RunE:  runPipelines,
}

var (
	startRTSP               string
	startPrompt             string
	startModel              string
	startPipeline           string
	startMaxTokens          int
	startRunName            string
	startDetectionModel     string
	startDetectionThreshold float64
)

func init() {
	startCmd.Flags().StringVar(&startRTSP, "rtsp", "", "RTSP source URL (required)")
	startCmd.Flags().StringVar(&startPrompt, "prompt", "", "Captioning prompt")
	startCmd.Flags().StringVar(&startModel, "model", "", "Captioning model name")
	startCmd.Flags().StringVar(&startPipeline, "pipeline", "", "Pipeline name")
	startCmd.Flags().IntVar(&startMaxTokens, "max-tokens", 70, "Max new tokens per caption")
	startCmd.Flags().StringVar(&startRunName, "name", "", "Optional run name")
	startCmd.Flags().StringVar(&startDetectionModel, "detection-model", "", "Detection model (detection pipelines only)")
	startCmd.Flags().Float64Var(&startDetectionThreshold, "detection-threshold", 0.5, "Detection threshold 0-1")
	startCmd.MarkFlagRequired("rtsp")

	modelsCmd.Flags().Bool("detection", false, "List detection models instead")
}

func runStart(cmd *cobra.Command, args []string) error {
	client := api.NewClient(cfg.APIBase)

	prompt := startPrompt
	if prompt == "" {
		prompt = cfg.DefaultPrompt
	}

	req := api.StartRunRequest{
		RTSPURL:      startRTSP,
		Prompt:       prompt,
		ModelName:    startModel,
		MaxNewTokens: startMaxTokens,
		PipelineName: startPipeline,
		RunName:      startRunName,
	}
	if startDetectionModel != "" {
		req.DetectionModelName = &startDetectionModel
		req.DetectionThreshold = &startDetectionThreshold
	}

	info, err := client.StartRun(req)
	if err != nil {
		return err
	}

	fmt.Printf("Run ID:      %s\n", info.RunID)
	fmt.Printf("Pipeline ID: %s\n", info.PipelineID)
	fmt.Printf("Peer ID:     %s\n", info.PeerID)
	if url := api.VideoURL(cfg.SignalingURL, cfg.APIBase, info.PeerID); url != "" {
		fmt.Printf("Video:       %s\n", url)
	}
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	client := api.NewClient(cfg.APIBase)

	err := client.StopRun(args[0])
	if errors.Is(err, api.ErrNotFound) {
		fmt.Printf("Run %s missing on server, nothing to stop\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("Stopped run %s\n", args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	client := api.NewClient(cfg.APIBase)

	infos, err := client.FetchRuns()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No active runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tMODEL\tPIPELINE\tRTSP")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.RunID, info.ModelName, info.PipelineName, info.RTSPURL)
	}
	w.Flush()
	return nil
}

func runModels(cmd *cobra.Command, args []string) error {
	client := api.NewClient(cfg.APIBase)

	detection, _ := cmd.Flags().GetBool("detection")
	var models []string
	var err error
	if detection {
		models, err = client.FetchDetectionModels()
	} else {
		models, err = client.FetchModels()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Model list unavailable, using default: %v\n", err)
	}
	for _, m := range models {
		fmt.Println(m)
	}
	return nil
}

func runPipelines(cmd *cobra.Command, args []string) error {
	client := api.NewClient(cfg.APIBase)

	pipelines, err := client.FetchPipelines()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Pipeline list unavailable, using default: %v\n", err)
	}
	for _, p := range pipelines {
		if p.IsDetection() {
			fmt.Printf("%s  [Detection]\n", p.Name)
		} else {
			fmt.Println(p.Name)
		}
	}
	return nil
}
