package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/artdevesa7/Agentic-AI-designs/agent"
	"github.com/artdevesa7/Agentic-AI-designs/core"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the execution patterns and their defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		graphs := map[core.Pattern]agent.Graph{
			core.PatternReact:       agent.NewReAct(),
			core.PatternPlanExecute: agent.NewPlanExecute(),
			core.PatternReflection:  agent.NewReflection(),
			core.PatternMultiAgent:  agent.NewMultiAgent(),
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PATTERN\tENTRY\tDEFAULT MAX ITERATIONS")
		for _, p := range core.Patterns() {
			g := graphs[p]
			fmt.Fprintf(tw, "%s\t%s\t%d\n", p, g.Entry(), g.DefaultMaxIterations())
		}
		return tw.Flush()
	},
}
