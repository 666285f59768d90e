package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/internal/testutil"
	"github.com/artdevesa7/Agentic-AI-designs/logging"
	"github.com/artdevesa7/Agentic-AI-designs/metrics"
	"github.com/artdevesa7/Agentic-AI-designs/model"
	"github.com/artdevesa7/Agentic-AI-designs/session"
	"github.com/artdevesa7/Agentic-AI-designs/tool"
)

func priceTools(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	require.NoError(t, r.Register(tool.NewFunctionTool("get_stock_price", "Get the current stock price",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"symbol": map[string]any{"type": "string"}},
			"required":   []string{"symbol"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"symbol": args["symbol"], "price": 150.0}, nil
		})))
	return r
}

func priceCall(symbol string) core.ToolCall {
	return core.ToolCall{ID: "call-" + symbol, Name: "get_stock_price", Arguments: map[string]any{"symbol": symbol}}
}

func newEngine(t *testing.T, m model.Model, optFns ...func(o *Options)) *Engine {
	t.Helper()
	tools := priceTools(t)
	return New(m, append([]func(o *Options){func(o *Options) { o.Tools = tools }}, optFns...)...)
}

func TestEngine_RunReact(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenToolCall(priceCall("AAPL")).
		ThenText("AAPL trades at 150")
	eng := newEngine(t, m)

	env, err := eng.Run(context.Background(), Request{Query: "What is AAPL at?", Pattern: core.PatternReact})
	require.NoError(t, err)

	assert.Equal(t, core.PatternReact, env.Pattern)
	assert.Equal(t, "What is AAPL at?", env.Query)
	assert.Equal(t, "AAPL trades at 150", env.Answer)
	assert.True(t, strings.HasPrefix(env.ThreadID, "react-"), env.ThreadID)
	assert.Equal(t, 1, env.Metadata.ToolCalls)
	assert.Equal(t, 2, env.Metadata.ModelCalls)
	assert.Equal(t, core.DefaultMaxIterations, env.Metadata.MaxIterations)
	assert.False(t, env.Metadata.Degraded)

	st, err := eng.Thread(context.Background(), env.ThreadID)
	require.NoError(t, err)
	assert.True(t, st.Finished())
}

func TestEngine_HyphenatedPattern(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenText("1. Look up AAPL").
		ThenText("AAPL is 150").
		ThenText("Summary: AAPL is 150")
	eng := newEngine(t, m)

	env, err := eng.Run(context.Background(), Request{Query: "AAPL?", Pattern: "plan-execute"})
	require.NoError(t, err)
	assert.Equal(t, core.PatternPlanExecute, env.Pattern)
	assert.True(t, strings.HasPrefix(env.ThreadID, "plan_execute-"), env.ThreadID)
	assert.Equal(t, []string{"Look up AAPL"}, env.Metadata.Plan)
}

func TestEngine_MultiAgentDefaultBound(t *testing.T) {
	picks := []string{"data_collector", "technical_analyst", "research_analyst", "risk_assessor"}
	var mu sync.Mutex
	next := 0
	m := testutil.NewScriptedModel().
		When("supervisor coordinating", func(model.Request) testutil.Reply {
			mu.Lock()
			defer mu.Unlock()
			p := picks[next%len(picks)]
			next++
			return testutil.Reply{Response: model.TextResponse(p)}
		}).
		WhenText("synthesis specialist", "Hold AAPL.").
		WhenText("specialist", "finding").
		WhenText("expert", "finding")
	eng := newEngine(t, m)

	env, err := eng.Run(context.Background(), Request{Query: "Should I buy AAPL?", Pattern: core.PatternMultiAgent})
	require.NoError(t, err)

	assert.Equal(t, core.DefaultMaxIterations, env.Metadata.MaxIterations)
	assert.Equal(t, core.DefaultMaxIterations, env.Metadata.Iterations)
	assert.Equal(t, picks[:3], env.Metadata.CompletedAgents)
	assert.Contains(t, env.Metadata.DegradedReasons, "supervisor_budget_exhausted")
}

func TestEngine_RunLogsModelAndToolCalls(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Output: &buf})
	m := testutil.NewScriptedModel().
		ThenToolCall(priceCall("AAPL")).
		ThenText("AAPL trades at 150")
	eng := newEngine(t, m, func(o *Options) { o.Logger = logger })

	_, err := eng.Run(context.Background(), Request{Query: "AAPL?", Pattern: core.PatternReact, ThreadID: "t-logs"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"llm.call.completed"`)
	assert.Contains(t, out, `"model":"scripted"`)
	assert.Contains(t, out, `"thread_id":"t-logs"`)
	assert.Contains(t, out, `"component":"agent"`)
}

func TestEngine_InvalidRequests(t *testing.T) {
	eng := newEngine(t, testutil.NewScriptedModel())

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown pattern", Request{Query: "q", Pattern: "tree_of_thought"}, core.ErrUnknownPattern},
		{"negative max", Request{Query: "q", Pattern: core.PatternReact, MaxIterations: -1}, core.ErrInvalidMaxIterations},
		{"empty query", Request{Query: "   ", Pattern: core.PatternReflection}, core.ErrEmptyQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, core.KindInvalidRequest, core.ErrorKindOf(err))
		})
	}
}

func TestEngine_ResumesInterruptedRun(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenToolCall(priceCall("MSFT")).
		ThenText("MSFT trades at 150")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	cbs := NewCallbackManager()
	cbs.Register(NewFunctionCallback(CallbackOnTransition, func(context.Context, *CallbackContext) error {
		once.Do(cancel)
		return nil
	}))
	eng := newEngine(t, m, func(o *Options) { o.Callbacks = cbs })

	_, err := eng.Run(ctx, Request{Query: "MSFT?", Pattern: core.PatternReact, ThreadID: "t-resume"})
	require.Error(t, err)
	assert.Equal(t, core.KindCancelled, core.ErrorKindOf(err))

	st, err := eng.Thread(context.Background(), "t-resume")
	require.NoError(t, err)
	assert.Equal(t, "act", st.Node)

	env, err := eng.Run(context.Background(), Request{Pattern: core.PatternReact, ThreadID: "t-resume"})
	require.NoError(t, err)
	assert.Equal(t, "MSFT trades at 150", env.Answer)
	assert.Equal(t, "MSFT?", env.Query)
	assert.Equal(t, 1, env.Metadata.ToolCalls)
	assert.Equal(t, 1, env.Metadata.ModelCalls)
	assert.Equal(t, 2, m.CallCount())
}

func TestEngine_NewTurnKeepsHistory(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenText("first answer").
		ThenText("second answer")
	eng := newEngine(t, m)

	_, err := eng.Run(context.Background(), Request{Query: "first", Pattern: core.PatternReact, ThreadID: "t-turns"})
	require.NoError(t, err)
	env, err := eng.Run(context.Background(), Request{Query: "second", Pattern: core.PatternReact, ThreadID: "t-turns"})
	require.NoError(t, err)
	assert.Equal(t, "second answer", env.Answer)
	assert.Equal(t, "second", env.Query)

	st, err := eng.Thread(context.Background(), "t-turns")
	require.NoError(t, err)
	var users []string
	for _, msg := range st.Messages {
		if msg.Role == core.RoleUser {
			users = append(users, msg.Content)
		}
	}
	assert.Equal(t, []string{"first", "second"}, users)

	// The second request saw the first turn.
	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Greater(t, len(reqs[1].Messages), len(reqs[0].Messages))
}

func TestEngine_ToolCallsCountCurrentTurnOnly(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenToolCall(priceCall("AAPL")).
		ThenToolCall(priceCall("MSFT")).
		ThenText("first answer").
		ThenToolCall(priceCall("NVDA")).
		ThenText("second answer")
	eng := newEngine(t, m)

	first, err := eng.Run(context.Background(), Request{Query: "first", Pattern: core.PatternReact, ThreadID: "t-tools"})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Metadata.ToolCalls)

	second, err := eng.Run(context.Background(), Request{Query: "second", Pattern: core.PatternReact, ThreadID: "t-tools"})
	require.NoError(t, err)
	assert.Equal(t, "second answer", second.Answer)
	assert.Equal(t, 1, second.Metadata.ToolCalls)
}

func TestEngine_EphemeralDeletesThread(t *testing.T) {
	store := session.NewInMemoryStore()
	eng := newEngine(t, testutil.NewScriptedModel().ThenText("done"), func(o *Options) { o.Store = store })

	env, err := eng.Run(context.Background(), Request{Query: "q", Pattern: core.PatternReact, Ephemeral: true})
	require.NoError(t, err)
	assert.Equal(t, "done", env.Answer)

	_, err = eng.Thread(context.Background(), env.ThreadID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Empty(t, store.Threads())
}

func TestEngine_ModelCallLimit(t *testing.T) {
	m := testutil.NewScriptedModel().Otherwise(testutil.Reply{Response: model.ToolCallResponse(priceCall("AAPL"))})
	eng := newEngine(t, m, func(o *Options) { o.Config.ModelCallLimit = 1 })

	env, err := eng.Run(context.Background(), Request{Query: "loop", Pattern: core.PatternReact, MaxIterations: 5})
	require.NoError(t, err)
	assert.True(t, env.Metadata.Degraded)
	assert.Contains(t, env.Metadata.DegradedReasons, "model_call_limit_reached")
	assert.Equal(t, 1, m.CallCount())
	assert.NotEmpty(t, env.Answer)
}

func TestEngine_InvokeStreamsEvents(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenToolCall(priceCall("NVDA")).
		ThenText("NVDA trades at 150")
	eng := newEngine(t, m)

	id, events, errs, err := eng.Invoke(context.Background(), Request{Query: "NVDA?", Pattern: core.PatternReact})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	var got []core.Event
	for ev := range events {
		got = append(got, ev)
	}
	require.NoError(t, <-errs)

	require.Len(t, got, 4)
	assert.Equal(t, "reason", got[0].Node)
	assert.Equal(t, "act", got[1].Node)
	last := got[len(got)-1]
	require.True(t, last.IsFinal())
	assert.Equal(t, "NVDA trades at 150", last.Result.Answer)
	for _, ev := range got {
		assert.Equal(t, id, ev.InvocationID)
	}
}

func TestEngine_InvokeRejectsInvalidRequest(t *testing.T) {
	eng := newEngine(t, testutil.NewScriptedModel())

	_, _, _, err := eng.Invoke(context.Background(), Request{Query: "q", Pattern: "swarm"})
	assert.ErrorIs(t, err, core.ErrUnknownPattern)
	assert.Error(t, eng.StopInvocation("missing"))
}

func TestEngine_ConcurrentThreadsAreIsolated(t *testing.T) {
	m := testutil.NewScriptedModel().When("", func(req model.Request) testutil.Reply {
		last := req.Messages[len(req.Messages)-1]
		return testutil.Reply{Response: model.TextResponse("answer: " + last.Content)}
	})
	eng := newEngine(t, m, func(o *Options) { o.Config.MaxConcurrentInvocations = 3 })

	const n = 8
	envs := make([]core.ResultEnvelope, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			envs[i], errs[i] = eng.Run(context.Background(), Request{
				Query:   fmt.Sprintf("query %d", i),
				Pattern: core.PatternReact,
			})
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("answer: query %d", i), envs[i].Answer)
		assert.False(t, seen[envs[i].ThreadID])
		seen[envs[i].ThreadID] = true

		st, err := eng.Thread(context.Background(), envs[i].ThreadID)
		require.NoError(t, err)
		assert.Len(t, st.Messages, 2)
	}
}

func TestEngine_CallbacksAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	var (
		mu    sync.Mutex
		fired []CallbackType
	)
	record := func(ct CallbackType) Callback {
		return NewFunctionCallback(ct, func(context.Context, *CallbackContext) error {
			mu.Lock()
			defer mu.Unlock()
			fired = append(fired, ct)
			return nil
		})
	}
	cbs := NewCallbackManager()
	for _, ct := range []CallbackType{CallbackBeforeRun, CallbackOnTransition, CallbackAfterRun, CallbackOnError} {
		cbs.Register(record(ct))
	}

	eng := newEngine(t, testutil.NewScriptedModel().ThenText("fine"), func(o *Options) {
		o.Callbacks = cbs
		o.Metrics = metrics.NewRecorder(reg)
	})

	_, err := eng.Run(context.Background(), Request{Query: "q", Pattern: core.PatternReact})
	require.NoError(t, err)
	_, err = eng.Run(context.Background(), Request{Query: "q", Pattern: "nope"})
	require.Error(t, err)

	assert.Equal(t, []CallbackType{CallbackBeforeRun, CallbackOnTransition, CallbackAfterRun, CallbackOnError}, fired)

	n, err := promtestutil.GatherAndCount(reg, "agent_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = promtestutil.GatherAndCount(reg, "agent_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEngine_BeforeRunErrorAborts(t *testing.T) {
	cbs := NewCallbackManager()
	cbs.Register(NewFunctionCallback(CallbackBeforeRun, func(context.Context, *CallbackContext) error {
		return fmt.Errorf("quota exhausted")
	}))
	m := testutil.NewScriptedModel().ThenText("unused")
	eng := newEngine(t, m, func(o *Options) { o.Callbacks = cbs })

	_, err := eng.Run(context.Background(), Request{Query: "q", Pattern: core.PatternReact})
	require.Error(t, err)
	assert.Equal(t, core.KindInfrastructure, core.ErrorKindOf(err))
	assert.Equal(t, 0, m.CallCount())
}

// MockStore for testing store failures
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context, threadID string) (*core.AgentState, error) {
	args := m.Called(ctx, threadID)
	st, _ := args.Get(0).(*core.AgentState)
	return st, args.Error(1)
}

func (m *MockStore) Save(ctx context.Context, state *core.AgentState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, threadID string) error {
	args := m.Called(ctx, threadID)
	return args.Error(0)
}

func (m *MockStore) Lock(ctx context.Context, threadID string) (func(), error) {
	args := m.Called(ctx, threadID)
	return func() {}, args.Error(0)
}

func TestEngine_StoreLoadFailure(t *testing.T) {
	store := new(MockStore)
	store.On("Lock", mock.Anything, "t-broken").Return(nil)
	store.On("Load", mock.Anything, "t-broken").Return(nil, errors.New("disk unavailable"))

	m := testutil.NewScriptedModel().ThenText("unused")
	eng := newEngine(t, m, func(o *Options) { o.Store = store })

	_, err := eng.Run(context.Background(), Request{Query: "q", Pattern: core.PatternReact, ThreadID: "t-broken"})
	require.Error(t, err)
	assert.Equal(t, core.KindInfrastructure, core.ErrorKindOf(err))
	assert.Equal(t, 0, m.CallCount())
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestEngine_StoreSaveFailure(t *testing.T) {
	store := new(MockStore)
	store.On("Lock", mock.Anything, "t-full").Return(nil)
	store.On("Load", mock.Anything, "t-full").Return(nil, session.ErrNotFound)
	store.On("Save", mock.Anything, mock.AnythingOfType("*core.AgentState")).Return(errors.New("no space left"))

	eng := newEngine(t, testutil.NewScriptedModel().ThenText("answer"), func(o *Options) { o.Store = store })

	_, err := eng.Run(context.Background(), Request{Query: "q", Pattern: core.PatternReact, ThreadID: "t-full", Ephemeral: true})
	require.Error(t, err)
	assert.Equal(t, core.KindInfrastructure, core.ErrorKindOf(err))
	assert.Contains(t, err.Error(), "no space left")
	store.AssertNumberOfCalls(t, "Save", 1)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
