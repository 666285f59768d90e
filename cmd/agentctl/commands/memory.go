package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artdevesa7/Agentic-AI-designs/memory"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage the research index",
}

var memorySeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the built-in research corpus into the configured index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			docs := memory.SeedDocuments()
			if err := a.index.Add(ctx, docs...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents into %s\n", len(docs), a.cfg.Memory.Backend)
			return nil
		})
	},
}

var memorySearchTopK int

var memorySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the research index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			res, err := a.index.Search(ctx, args[0], memorySearchTopK)
			if err != nil {
				return err
			}
			return writeValue(cmd.OutOrStdout(), formatYAML, res)
		})
	},
}

func init() {
	memorySearchCmd.Flags().IntVarP(&memorySearchTopK, "top-k", "k", 3, "Number of hits")

	memoryCmd.AddCommand(memorySeedCmd)
	memoryCmd.AddCommand(memorySearchCmd)
}
