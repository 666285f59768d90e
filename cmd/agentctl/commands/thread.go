package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/session"
)

var threadOutput string

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Inspect stored threads",
	Long: `Inspect threads persisted by the configured checkpoint store. Threads
only outlive the process with the sqlite store driver.`,
}

var threadShowCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Print the latest checkpoint of a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(threadOutput); err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			st, err := a.engine.Thread(ctx, args[0])
			if errors.Is(err, session.ErrNotFound) {
				return fmt.Errorf("thread %q not found", args[0])
			}
			if err != nil {
				return err
			}
			if threadOutput != formatText {
				return writeValue(cmd.OutOrStdout(), threadOutput, st)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "thread:    %s\npattern:   %s\nnode:      %s\niteration: %d/%d\nversion:   %d\n\n",
				st.ThreadID, st.Pattern, st.Node, st.Iteration, st.MaxIterations, st.Version)
			fmt.Fprintln(w, core.Transcript(st.Messages))
			return nil
		})
	},
}

var threadListLimit int

var threadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recently updated threads (sqlite store)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			lister, ok := a.store.(interface {
				List(ctx context.Context, limit int) ([]session.ThreadSummary, error)
			})
			if !ok {
				return errors.New("thread list needs the sqlite store driver")
			}
			threads, err := lister.List(ctx, threadListLimit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "THREAD\tPATTERN\tNODE\tVERSION\tUPDATED")
			for _, t := range threads {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", t.ThreadID, t.Pattern, t.Node, t.Version, t.Updated.Format(time.RFC3339))
			}
			return tw.Flush()
		})
	},
}

var threadDeleteCmd = &cobra.Command{
	Use:   "delete <thread-id>",
	Short: "Delete a thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
			return a.store.Delete(ctx, args[0])
		})
	},
}

func init() {
	threadShowCmd.Flags().StringVarP(&threadOutput, "output", "o", formatText, "Output format: text, json, yaml")
	threadListCmd.Flags().IntVar(&threadListLimit, "limit", 50, "Maximum number of threads")

	threadCmd.AddCommand(threadShowCmd)
	threadCmd.AddCommand(threadListCmd)
	threadCmd.AddCommand(threadDeleteCmd)
}

// withApp wires the configured components for a short lived command.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()
	return fn(ctx, a)
}
