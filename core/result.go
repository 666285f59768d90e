package core

import "time"

// Metadata carries run statistics; pattern-specific fields are omitted when
// the pattern does not produce them.
type Metadata struct {
	Iterations      int           `json:"iterations"`
	MaxIterations   int           `json:"max_iterations"`
	Duration        time.Duration `json:"duration"`
	QualityScore    *float64      `json:"quality_score,omitempty"`
	Plan            []string      `json:"plan,omitempty"`
	CompletedAgents []string      `json:"completed_agents,omitempty"`
	Confidence      *float64      `json:"confidence,omitempty"`
	ToolCalls       int           `json:"tool_calls"`
	ModelCalls      int           `json:"model_calls"`
	Degraded        bool          `json:"degraded"`
	DegradedReasons []string      `json:"degraded_reasons,omitempty"`
}

// ResultEnvelope is the uniform output of a run.
type ResultEnvelope struct {
	Pattern   Pattern   `json:"pattern"`
	Query     string    `json:"query"`
	Answer    string    `json:"result"`
	Metadata  Metadata  `json:"metadata"`
	Timestamp time.Time `json:"timestamp"`
	ThreadID  string    `json:"thread_id"`
}

// NewResultEnvelope derives the envelope from a finished state.
func NewResultEnvelope(s *AgentState, answer string, dur time.Duration) ResultEnvelope {
	md := Metadata{
		Iterations:      s.Iteration,
		MaxIterations:   s.MaxIterations,
		Duration:        dur,
		DegradedReasons: append([]string(nil), s.DegradedReasons...),
	}
	md.Degraded = len(md.DegradedReasons) > 0
	for _, m := range s.TurnMessages() {
		if m.Role == RoleTool {
			md.ToolCalls++
		}
	}
	switch st := s.Scratch.(type) {
	case *PlanExecuteState:
		md.Plan = append([]string(nil), st.Plan...)
	case *ReflectionState:
		if st.QualityScore != nil {
			v := *st.QualityScore
			md.QualityScore = &v
		}
	case *MultiAgentState:
		md.CompletedAgents = append([]string(nil), st.CompletedAgents...)
		if st.Confidence != nil {
			v := *st.Confidence
			md.Confidence = &v
		}
	}
	return ResultEnvelope{
		Pattern:   s.Pattern,
		Query:     s.Query,
		Answer:    answer,
		Metadata:  md,
		Timestamp: time.Now().UTC(),
		ThreadID:  s.ThreadID,
	}
}
