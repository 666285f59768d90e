package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artdevesa7/Agentic-AI-designs/config"
	"github.com/artdevesa7/Agentic-AI-designs/core"
	"github.com/artdevesa7/Agentic-AI-designs/engine"
	"github.com/artdevesa7/Agentic-AI-designs/internal/testutil"
	"github.com/artdevesa7/Agentic-AI-designs/session"
	"github.com/artdevesa7/Agentic-AI-designs/tool/market"
)

func mockConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.Default()
	c.Model.Provider = config.ProviderMock
	c.Logging.Level = "error"
	return &c
}

// isolatedMetrics keeps each app off the default registerer.
func isolatedMetrics(o *appOptions) { o.Registerer = prometheus.NewRegistry() }

func TestNewModel(t *testing.T) {
	for _, p := range []string{config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGemini, config.ProviderMock} {
		t.Run(p, func(t *testing.T) {
			m, err := newModel(config.ModelConfig{Provider: p, APIKey: "test-key", MaxTokens: 256})
			require.NoError(t, err)
			assert.NotNil(t, m)
		})
	}

	_, err := newModel(config.ModelConfig{Provider: "llama"})
	assert.Error(t, err)
}

func TestNewApp_RegistersTools(t *testing.T) {
	a, err := newApp(context.Background(), mockConfig(t), isolatedMetrics)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close(context.Background())) }()

	names := a.engine.Tools().Names()
	assert.Contains(t, names, market.PriceToolName)
	assert.Contains(t, names, market.HistoryToolName)
	assert.Len(t, names, 3)

	res, err := a.index.Search(context.Background(), "semiconductor demand", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Results)
}

func TestInvoke_JSONOutput(t *testing.T) {
	m := testutil.NewScriptedModel().
		ThenToolCall(core.ToolCall{ID: "c1", Name: market.PriceToolName, Arguments: map[string]any{"symbol": "AAPL"}}).
		ThenText("AAPL is trading near its simulated price")

	a, err := newApp(context.Background(), mockConfig(t), isolatedMetrics, func(o *appOptions) { o.Model = m })
	require.NoError(t, err)
	defer func() { _ = a.Close(context.Background()) }()

	invokeOutput, invokeStream = formatJSON, false
	t.Cleanup(func() { invokeOutput, invokeStream = formatText, false })

	var buf bytes.Buffer
	require.NoError(t, invoke(context.Background(), a, engine.Request{Query: "AAPL?", Pattern: core.PatternReact}, &buf))

	var env core.ResultEnvelope
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.Equal(t, "AAPL is trading near its simulated price", env.Answer)
	assert.Equal(t, 1, env.Metadata.ToolCalls)
	assert.Equal(t, core.PatternReact, env.Pattern)
}

func TestInvoke_StreamText(t *testing.T) {
	m := testutil.NewScriptedModel().ThenText("Done.")
	a, err := newApp(context.Background(), mockConfig(t), isolatedMetrics, func(o *appOptions) { o.Model = m })
	require.NoError(t, err)
	defer func() { _ = a.Close(context.Background()) }()

	invokeOutput, invokeStream = formatText, true
	t.Cleanup(func() { invokeOutput, invokeStream = formatText, false })

	var buf bytes.Buffer
	require.NoError(t, invoke(context.Background(), a, engine.Request{Query: "hi", Pattern: core.PatternReact}, &buf))
	out := buf.String()
	assert.Contains(t, out, "reason -> done")
	assert.Contains(t, out, "Done.")
	assert.Contains(t, out, "pattern:     react")
}

func TestNewApp_SQLiteStore(t *testing.T) {
	c := mockConfig(t)
	c.Store.Driver = "sqlite"
	c.Store.Path = filepath.Join(t.TempDir(), "threads.db")

	m := testutil.NewScriptedModel().ThenText("persisted")
	a, err := newApp(context.Background(), c, isolatedMetrics, func(o *appOptions) { o.Model = m })
	require.NoError(t, err)
	defer func() { _ = a.Close(context.Background()) }()

	require.IsType(t, &session.SQLiteStore{}, a.store)
	env, err := a.engine.Run(context.Background(), engine.Request{Query: "q", Pattern: core.PatternReact, ThreadID: "t-sqlite"})
	require.NoError(t, err)
	assert.Equal(t, "persisted", env.Answer)

	threads, err := a.store.(*session.SQLiteStore).List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "t-sqlite", threads[0].ThreadID)
	assert.Equal(t, core.NodeDone, threads[0].Node)
}

func TestWriteResult(t *testing.T) {
	score := 6.5
	env := core.ResultEnvelope{
		Pattern: core.PatternReflection,
		Answer:  "Draft answer",
		Metadata: core.Metadata{
			Iterations:      2,
			MaxIterations:   2,
			Duration:        1500 * time.Millisecond,
			QualityScore:    &score,
			Degraded:        true,
			DegradedReasons: []string{"quality_below_threshold"},
		},
	}

	var text bytes.Buffer
	require.NoError(t, writeResult(&text, formatText, env))
	assert.Contains(t, text.String(), "quality:     6.5")
	assert.Contains(t, text.String(), "degraded:    quality_below_threshold")

	var yml bytes.Buffer
	require.NoError(t, writeResult(&yml, formatYAML, env))
	assert.Contains(t, yml.String(), "result: Draft answer")
	assert.Contains(t, yml.String(), "quality_score: 6.5")

	assert.Error(t, validateFormat("xml"))
}

func TestReportRunError(t *testing.T) {
	err := reportRunError(core.NewRunError(core.PatternReact, "react-1", context.Canceled))
	assert.Contains(t, err.Error(), "--thread react-1")
	assert.ErrorIs(t, err, context.Canceled)

	plain := errors.New("boom")
	assert.Equal(t, plain, reportRunError(plain))
}

func TestLoadEnv(t *testing.T) {
	assert.NoError(t, loadEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("AGENTCTL_TEST_ONLY=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("AGENTCTL_TEST_ONLY") })

	require.NoError(t, loadEnv(path))
	assert.Equal(t, "from-file", os.Getenv("AGENTCTL_TEST_ONLY"))
}
