// cmd/run.go
package cmd

import (
	"context"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/varkai/screenpilot/internal/capture"
	"github.com/varkai/screenpilot/internal/config"
	"github.com/varkai/screenpilot/internal/observability"
	"github.com/varkai/screenpilot/internal/store"
	"github.com/varkai/screenpilot/internal/workflow"
	"github.com/varkai/screenpilot/pkg/automation"
	"github.com/varkai/screenpilot/pkg/pagegraph"
	"github.com/varkai/screenpilot/pkg/state"
	"github.com/varkai/screenpilot/pkg/types"
)

// workflowOutcome pairs a workflow file with its finished report.
type workflowOutcome struct {
	Workflow string                    `json:"workflow"`
	Report   automation.WorkflowReport `json:"report"`
}

func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute declarative workflows",
		Long: `Run executes one or more workflow documents against a page graph.
Each --workflow gets its own capture session and controller; several
workflows run concurrently. The combined reports are printed as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			graphPath, _ := cmd.Flags().GetString("graph")
			workflowPaths, _ := cmd.Flags().GetStringSlice("workflow")
			framesDir, _ := cmd.Flags().GetString("frames")
			cdpURL, _ := cmd.Flags().GetString("cdp")
			targetURL, _ := cmd.Flags().GetString("url")
			statesPath, _ := cmd.Flags().GetString("state-config")
			historyDSN, _ := cmd.Flags().GetString("history-dsn")

			// Flags override the loaded configuration. Switching the source
			// also switches the capture mode.
			cfg := *loadedConfig
			if cmd.Flags().Changed("frames") {
				cfg.Capture.Mode = config.CaptureModeReplay
				cfg.Capture.FramesDir = framesDir
			}
			if cmd.Flags().Changed("cdp") {
				cfg.Capture.Mode = config.CaptureModeCDP
				cfg.Capture.CDPURL = cdpURL
			}
			if err := cfg.Capture.Validate(); err != nil {
				return err
			}
			if cmd.Flags().Changed("history-dsn") {
				cfg.History.DSN = historyDSN
			}
			if targetURL != "" && cfg.Capture.Mode == config.CaptureModeReplay {
				logger.Warn("--url has no effect when replaying recorded frames")
			}

			var statesDoc *workflow.StatesDocument
			if statesPath != "" {
				doc, err := workflow.LoadStates(statesPath)
				if err != nil {
					return err
				}
				statesDoc = &doc
			}

			sink := openHistory(ctx, cfg.History.DSN, logger)
			if sink != nil {
				defer sink.Close()
			}

			// One goroutine per workflow, each with its own graph, capture
			// session and controller. A setup failure cancels the siblings;
			// a failed step is a reported outcome, not an error.
			g, gctx := errgroup.WithContext(ctx)
			outcomes := make([]workflowOutcome, len(workflowPaths))
			for i, wfPath := range workflowPaths {
				g.Go(func() error {
					outcome, err := runOne(gctx, cfg, graphPath, wfPath, statesDoc, targetURL, sink, logger)
					if err != nil {
						return err
					}
					outcomes[i] = outcome
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(outcomes); err != nil {
				return err
			}

			failed := 0
			for _, o := range outcomes {
				if !o.Report.Succeeded {
					failed++
				}
			}
			if failed > 0 {
				return types.NewError(types.CodeStep, "%d of %d workflows failed", failed, len(outcomes))
			}
			return nil
		},
	}

	runCmd.Flags().String("graph", "", "page graph document (required)")
	runCmd.Flags().StringSlice("workflow", nil, "workflow document; repeat to run several concurrently (required)")
	runCmd.Flags().String("frames", "", "replay frames from this directory instead of driving a browser")
	runCmd.Flags().String("cdp", "", "attach to a running Chrome DevTools endpoint (ws:// url)")
	runCmd.Flags().String("url", "", "navigate the browser here before the first step")
	runCmd.Flags().String("state-config", "", "screen-state document for the controller's detector")
	runCmd.Flags().String("history-dsn", "", "PostgreSQL DSN for recording run history")
	_ = runCmd.MarkFlagRequired("graph")
	_ = runCmd.MarkFlagRequired("workflow")
	runCmd.MarkFlagsMutuallyExclusive("frames", "cdp")
	return runCmd
}

// runOne executes a single workflow file with its own graph, capture
// session and controller.
func runOne(ctx context.Context, cfg config.Config, graphPath, workflowPath string, statesDoc *workflow.StatesDocument, targetURL string, sink *store.Store, logger *zap.Logger) (workflowOutcome, error) {
	log := logger.With(zap.String("workflow", workflowPath))

	doc, err := workflow.Load(workflowPath)
	if err != nil {
		return workflowOutcome{}, err
	}

	// The graph manager caches runtime elements without locking, so every
	// workflow loads its own copy.
	graph := pagegraph.NewManager(log)
	if err := graph.Load(graphPath); err != nil {
		return workflowOutcome{}, err
	}

	var frames automation.FrameProvider
	var clicker automation.Clicker
	switch cfg.Capture.Mode {
	case config.CaptureModeReplay:
		replay, err := capture.NewReplayProvider(cfg.Capture.FramesDir, log)
		if err != nil {
			return workflowOutcome{}, err
		}
		frames = replay
		clicker = capture.NewLogClicker(log)
	default:
		cdp, err := capture.NewCDPProvider(ctx, cfg.Capture, log)
		if err != nil {
			return workflowOutcome{}, err
		}
		defer cdp.Close()
		if targetURL != "" {
			if err := cdp.Navigate(ctx, targetURL); err != nil {
				return workflowOutcome{}, err
			}
		}
		frames = cdp
		clicker = cdp
	}

	detector := state.NewDetector(log)
	if statesDoc != nil {
		detector, err = workflow.BuildDetector(graph, *statesDoc, cfg.Detection.DefaultThreshold, log)
		if err != nil {
			return workflowOutcome{}, err
		}
	}

	builder := workflow.NewBuilder(graph, frames, clicker, log)
	steps, err := builder.Build(doc)
	if err != nil {
		return workflowOutcome{}, err
	}

	ctrl := automation.NewController(detector, frames, clicker, log)
	for _, s := range steps {
		if err := ctrl.RegisterStep(s); err != nil {
			return workflowOutcome{}, err
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Runtime.WorkflowTimeout)
	defer cancel()

	report, err := ctrl.RunWorkflow(runCtx, doc.StepIDs())
	if err != nil {
		return workflowOutcome{}, err
	}

	if sink != nil {
		if err := sink.SaveReport(ctx, report); err != nil {
			log.Warn("failed to record run history", zap.Error(err))
		}
	}
	return workflowOutcome{Workflow: workflowPath, Report: report}, nil
}

// openHistory connects the optional run-history sink. Any failure disables
// history with a warning; it never blocks the run.
func openHistory(ctx context.Context, dsn string, logger *zap.Logger) *store.Store {
	if dsn == "" {
		return nil
	}
	sink, err := store.Connect(ctx, dsn, logger)
	if err != nil {
		logger.Warn("run history disabled", zap.Error(err))
		return nil
	}
	if err := sink.EnsureSchema(ctx); err != nil {
		logger.Warn("run history disabled", zap.Error(err))
		sink.Close()
		return nil
	}
	return sink
}
