// cmd/detect.go
package cmd

import (
	"errors"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/varkai/screenpilot/internal/capture"
	"github.com/varkai/screenpilot/internal/observability"
	"github.com/varkai/screenpilot/internal/workflow"
	"github.com/varkai/screenpilot/pkg/pagegraph"
	"github.com/varkai/screenpilot/pkg/state"
)

// frameDetection is one line of the detect report: what the page detector
// and, when configured, the state detector made of one recorded frame.
type frameDetection struct {
	Frame           int      `json:"frame"`
	PageID          string   `json:"page_id,omitempty"`
	Confidence      float64  `json:"confidence,omitempty"`
	ElementsFound   []string `json:"elements_found,omitempty"`
	State           string   `json:"state,omitempty"`
	StateConfidence float64  `json:"state_confidence,omitempty"`
}

type detectionReport struct {
	Graph      string           `json:"graph"`
	Frames     string           `json:"frames"`
	Detections []frameDetection `json:"detections"`
}

func newDetectCmd() *cobra.Command {
	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Classify recorded frames against a page graph",
		Long: `Detect replays a directory of recorded frames through the page detector
and prints a JSON report of what each frame shows. With --state-config it
also runs screen-state detection per frame.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			graphPath, _ := cmd.Flags().GetString("graph")
			framesDir, _ := cmd.Flags().GetString("frames")
			statesPath, _ := cmd.Flags().GetString("state-config")

			graph := pagegraph.NewManager(logger)
			if err := graph.Load(graphPath); err != nil {
				return err
			}

			frames, err := capture.NewReplayProvider(framesDir, logger)
			if err != nil {
				return err
			}

			var detector *state.Detector
			if statesPath != "" {
				doc, err := workflow.LoadStates(statesPath)
				if err != nil {
					return err
				}
				detector, err = workflow.BuildDetector(graph, doc, loadedConfig.Detection.DefaultThreshold, logger)
				if err != nil {
					return err
				}
			}

			pages := pagegraph.NewPageDetector(graph, logger)
			report := detectionReport{Graph: graphPath, Frames: framesDir}
			for i := 0; i < frames.Len(); i++ {
				frame, err := frames.CaptureFrame(ctx)
				if err != nil {
					return err
				}
				entry := frameDetection{Frame: i + 1}

				page, err := pages.DetectPage(ctx, frame)
				switch {
				case errors.Is(err, pagegraph.ErrNoPage):
					// No page fields; the frame matched nothing.
				case err != nil:
					return err
				default:
					entry.PageID = page.PageID
					entry.Confidence = page.Confidence
					entry.ElementsFound = page.ElementsFound
				}

				if detector != nil {
					det, err := detector.DetectState(ctx, frame)
					if err != nil {
						return err
					}
					if det.Found {
						entry.State = det.State
						entry.StateConfidence = det.Confidence
					}
				}

				report.Detections = append(report.Detections, entry)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	detectCmd.Flags().String("graph", "", "page graph document (required)")
	detectCmd.Flags().String("frames", "", "directory of recorded frames (required)")
	detectCmd.Flags().String("state-config", "", "screen-state document for per-frame state detection")
	_ = detectCmd.MarkFlagRequired("graph")
	_ = detectCmd.MarkFlagRequired("frames")
	return detectCmd
}
