package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artdevesa7/Agentic-AI-designs/core"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validateFormat(f string) error {
	switch f {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (text, json, yaml)", f)
	}
}

// writeValue encodes v as JSON or YAML. YAML keys follow the JSON tags.
func writeValue(w io.Writer, format string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	if format != formatYAML {
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}

func writeResult(w io.Writer, format string, env core.ResultEnvelope) error {
	if format != formatText {
		return writeValue(w, format, env)
	}
	md := env.Metadata
	fmt.Fprintf(w, "%s\n\n", env.Answer)
	fmt.Fprintf(w, "pattern:     %s\n", env.Pattern)
	fmt.Fprintf(w, "thread:      %s\n", env.ThreadID)
	fmt.Fprintf(w, "iterations:  %d/%d\n", md.Iterations, md.MaxIterations)
	fmt.Fprintf(w, "tool calls:  %d\n", md.ToolCalls)
	fmt.Fprintf(w, "model calls: %d\n", md.ModelCalls)
	fmt.Fprintf(w, "duration:    %s\n", md.Duration.Round(time.Millisecond))
	if len(md.Plan) > 0 {
		fmt.Fprintf(w, "plan:\n")
		for i, step := range md.Plan {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step)
		}
	}
	if md.QualityScore != nil {
		fmt.Fprintf(w, "quality:     %.1f\n", *md.QualityScore)
	}
	if len(md.CompletedAgents) > 0 {
		fmt.Fprintf(w, "agents:      %s\n", strings.Join(md.CompletedAgents, ", "))
	}
	if md.Confidence != nil {
		fmt.Fprintf(w, "confidence:  %.2f\n", *md.Confidence)
	}
	if md.Degraded {
		fmt.Fprintf(w, "degraded:    %s\n", strings.Join(md.DegradedReasons, ", "))
	}
	return nil
}

func writeEvent(w io.Writer, format string, ev core.Event) error {
	if format != formatText {
		return writeValue(w, format, ev)
	}
	fmt.Fprintf(w, "[%s] %s -> %s (iteration %d)\n", ev.ThreadID, ev.Node, ev.Next, ev.Iteration)
	for _, m := range ev.Messages {
		switch {
		case m.HasToolCalls():
			for _, c := range m.ToolCalls {
				fmt.Fprintf(w, "    %s calls %s\n", m.Author, c.Name)
			}
		case m.Role == core.RoleTool && m.ToolResult != nil:
			fmt.Fprintf(w, "    %s: %s\n", m.ToolResult.Name, truncate(m.ToolResult.Text(), 120))
		default:
			fmt.Fprintf(w, "    %s: %s\n", m.Author, truncate(m.Content, 120))
		}
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
