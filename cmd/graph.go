// cmd/graph.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/varkai/screenpilot/internal/observability"
	"github.com/varkai/screenpilot/pkg/pagegraph"
	"github.com/varkai/screenpilot/pkg/types"
)

func newGraphCmd() *cobra.Command {
	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect page graph documents",
	}
	graphCmd.AddCommand(newGraphValidateCmd(), newGraphPathCmd())
	return graphCmd
}

func newGraphValidateCmd() *cobra.Command {
	var graphPath string

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a page graph document for dangling references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			graph := pagegraph.NewManager(observability.GetLogger())
			if err := graph.Load(graphPath); err != nil {
				return err
			}
			pages := graph.Pages()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d pages, %d elements)\n",
				graphPath, len(pages), len(graph.ElementIDs()))
			for _, pageID := range pages {
				page, _ := graph.Page(pageID)
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d identifiers, %d interactive, %d transitions\n",
					pageID, len(page.IdentifierElementIDs), len(page.InteractiveElementIDs), len(page.Transitions))
			}
			return nil
		},
	}

	validateCmd.Flags().StringVar(&graphPath, "graph", "", "page graph document (required)")
	_ = validateCmd.MarkFlagRequired("graph")
	return validateCmd
}

func newGraphPathCmd() *cobra.Command {
	var graphPath string
	var from string
	var to string

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Find the shortest transition path between two pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			graph := pagegraph.NewManager(observability.GetLogger())
			if err := graph.Load(graphPath); err != nil {
				return err
			}
			path := graph.FindPath(from, to)
			if path == nil {
				return types.NewError(types.CodeConfiguration, "no path from %q to %q", from, to)
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(path, " -> "))
			return nil
		},
	}

	pathCmd.Flags().StringVar(&graphPath, "graph", "", "page graph document (required)")
	pathCmd.Flags().StringVar(&from, "from", "", "starting page id (required)")
	pathCmd.Flags().StringVar(&to, "to", "", "destination page id (required)")
	_ = pathCmd.MarkFlagRequired("graph")
	_ = pathCmd.MarkFlagRequired("from")
	_ = pathCmd.MarkFlagRequired("to")
	return pathCmd
}
