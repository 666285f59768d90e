package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/engine"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke [query]",
	Short: "Run a query through an execution pattern",
	Long: `Run a query through one of the execution patterns and print the result
envelope.

Passing --thread with the id of an interrupted run and no query resumes it
from its last checkpoint. Passing a new query on an existing thread starts a
new turn that keeps the conversation history.

Examples:
  # ReAct with the default iteration bound
  agentctl invoke "What is the current price of AAPL?"

  # Plan-and-execute, streaming every transition
  agentctl invoke --pattern plan-execute --stream "Compare MSFT and GOOGL"

  # Resume an interrupted run
  agentctl invoke --pattern reflection --thread reflection-6a1f...
`,
	Args: cobra.ArbitraryArgs,
	RunE: runInvoke,
}

var (
	invokePattern       string
	invokeQuery         string
	invokeMaxIterations int
	invokeThread        string
	invokeStream        bool
	invokeEphemeral     bool
	invokeOutput        string
)

func init() {
	invokeCmd.Flags().StringVarP(&invokePattern, "pattern", "p", string(core.PatternReact),
		"Execution pattern: react, plan_execute, reflection, multi_agent")
	invokeCmd.Flags().StringVarP(&invokeQuery, "query", "q", "",
		"Query text (alternatively passed as arguments)")
	invokeCmd.Flags().IntVarP(&invokeMaxIterations, "max-iterations", "n", 0,
		"Iteration bound; 0 uses the configured or pattern default")
	invokeCmd.Flags().StringVarP(&invokeThread, "thread", "t", "",
		"Thread id to resume or continue")
	invokeCmd.Flags().BoolVar(&invokeStream, "stream", false,
		"Print every transition as it happens")
	invokeCmd.Flags().BoolVar(&invokeEphemeral, "ephemeral", false,
		"Delete the thread once the run finished")
	invokeCmd.Flags().StringVarP(&invokeOutput, "output", "o", formatText,
		"Output format: text, json, yaml")
}

func invokeRequest(args []string) engine.Request {
	query := invokeQuery
	if query == "" {
		query = strings.Join(args, " ")
	}
	maxIterations := invokeMaxIterations
	if maxIterations == 0 {
		maxIterations = cfg.Engine.MaxIterations
	}
	return engine.Request{
		Query:         query,
		Pattern:       core.Pattern(invokePattern),
		MaxIterations: maxIterations,
		ThreadID:      invokeThread,
		Ephemeral:     invokeEphemeral,
	}
}

func runInvoke(cmd *cobra.Command, args []string) error {
	if err := validateFormat(invokeOutput); err != nil {
		return err
	}
	req := invokeRequest(args)
	if strings.TrimSpace(req.Query) == "" && req.ThreadID == "" {
		return errors.New("a query is required unless --thread resumes a run")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

	return invoke(ctx, a, req, cmd.OutOrStdout())
}

func invoke(ctx context.Context, a *app, req engine.Request, w io.Writer) error {
	if !invokeStream {
		env, err := a.engine.Run(ctx, req)
		if err != nil {
			return reportRunError(err)
		}
		a.logger.LogRun(string(env.Pattern), env.Metadata.Iterations, env.Metadata.Duration, !env.Metadata.Degraded, nil)
		return writeResult(w, invokeOutput, env)
	}

	_, events, errs, err := a.engine.Invoke(ctx, req)
	if err != nil {
		return reportRunError(err)
	}
	for ev := range events {
		if ev.IsFinal() {
			if err := writeResult(w, invokeOutput, *ev.Result); err != nil {
				return err
			}
			continue
		}
		if err := writeEvent(w, invokeOutput, ev); err != nil {
			return err
		}
	}
	if err := <-errs; err != nil {
		return reportRunError(err)
	}
	return nil
}

// reportRunError adds the thread id of interrupted runs so they can be resumed.
func reportRunError(err error) error {
	var re *core.RunError
	if errors.As(err, &re) && re.Kind == core.KindCancelled && re.ThreadID != "" {
		return fmt.Errorf("%w (resume with --thread %s)", err, re.ThreadID)
	}
	return err
}
