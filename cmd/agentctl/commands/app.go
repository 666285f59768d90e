package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/artdevesa7/Agentic-AI-designs/agent"
	"github.com/artdevesa7/Agentic-AI-designs/config"
	"github.com/artdevesa7/Agentic-AI-designs/engine"
	"github.com/artdevesa7/Agentic-AI-designs/logging"
	"github.com/artdevesa7/Agentic-AI-designs/memory"
	"github.com/artdevesa7/Agentic-AI-designs/metrics"
	"github.com/artdevesa7/Agentic-AI-designs/model"
	"github.com/artdevesa7/Agentic-AI-designs/model/anthropic"
	"github.com/artdevesa7/Agentic-AI-designs/model/gemini"
	"github.com/artdevesa7/Agentic-AI-designs/model/openai"
	"github.com/artdevesa7/Agentic-AI-designs/session"
	"github.com/artdevesa7/Agentic-AI-designs/telemetry"
	"github.com/artdevesa7/Agentic-AI-designs/tool"
	"github.com/artdevesa7/Agentic-AI-designs/tool/market"
)

// app holds the components wired from one Config.
type app struct {
	cfg     *config.Config
	logger  *logging.AgentLogger
	engine  *engine.Engine
	store   session.Store
	index   memory.Index
	metrics *metrics.Recorder

	closers []func(context.Context) error
}

// appOptions lets tests replace the model and the metrics registerer.
type appOptions struct {
	Model      model.Model
	Registerer prometheus.Registerer
}

func newApp(ctx context.Context, cfg *config.Config, optFns ...func(o *appOptions)) (_ *app, err error) {
	opts := appOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		logger: logging.NewLogger(&logging.LoggerConfig{Level: level, Format: cfg.Logging.Format, Component: "agentctl"}),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	shutdown, err := telemetry.Init(ctx, func(o *telemetry.Options) {
		o.Endpoint = cfg.Telemetry.Endpoint
		o.ServiceName = "agentctl"
		o.Version = Version
		o.Insecure = cfg.Telemetry.Insecure
		o.SampleRatio = cfg.Telemetry.SampleRatio
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	a.metrics = metrics.NewRecorder(opts.Registerer)

	tools := tool.NewRegistry(func(o *tool.RegistryOptions) {
		o.Logger = a.logger.WithComponent("tool")
		o.OnInvoke = func(name, code string, _ time.Duration) { a.metrics.ObserveToolCall(name, code) }
	})
	if err := market.Register(tools, newMarketProvider(cfg.Market)); err != nil {
		return nil, fmt.Errorf("register market tools: %w", err)
	}

	if a.index, err = a.newIndex(ctx); err != nil {
		return nil, err
	}
	if err := tools.Register(memory.NewSearchTool(a.index)); err != nil {
		return nil, fmt.Errorf("register search tool: %w", err)
	}

	if a.store, err = a.newStore(ctx); err != nil {
		return nil, err
	}

	m := opts.Model
	if m == nil {
		if m, err = newModel(cfg.Model); err != nil {
			return nil, err
		}
	}

	callbacks := engine.NewCallbackManager()
	for _, ct := range []engine.CallbackType{engine.CallbackBeforeRun, engine.CallbackOnTransition, engine.CallbackAfterRun, engine.CallbackOnError} {
		callbacks.Register(engine.NewLoggingCallback(ct, a.logger))
	}

	a.engine = engine.New(m, func(o *engine.Options) {
		o.Config = engine.Config{
			MaxConcurrentInvocations: cfg.Engine.MaxConcurrentInvocations,
			EventBufferSize:          engine.DefaultConfig.EventBufferSize,
			ModelCallLimit:           cfg.Engine.ModelCallLimit,
			RunTimeout:               cfg.Engine.Timeout,
		}
		o.Store = a.store
		o.Tools = tools
		o.Graphs = []agent.Graph{
			agent.NewMultiAgent(func(o *agent.MultiAgentOptions) { o.Parallel = cfg.Engine.Parallel }),
		}
		o.Logger = a.logger
		o.Tracer = telemetry.Tracer("github.com/artdevesa7/Agentic-AI-designs/cmd/agentctl")
		o.Metrics = a.metrics
		o.Callbacks = callbacks
	})
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) newStore(ctx context.Context) (session.Store, error) {
	if a.cfg.Store.Driver != "sqlite" {
		return session.NewInMemoryStore(), nil
	}
	s, err := session.OpenSQLite(ctx, a.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return s.Close() })
	return s, nil
}

func (a *app) newIndex(ctx context.Context) (memory.Index, error) {
	mc := a.cfg.Memory
	if mc.Backend != "qdrant" {
		return memory.NewInMemoryIndex(memory.SeedDocuments()...), nil
	}

	var emb memory.Embedder = memory.NewHashEmbedder(mc.Dimensions)
	if mc.Embedder == "openai" {
		emb = memory.NewOpenAIEmbedder(func(o *memory.OpenAIEmbedderOptions) {
			if mc.Dimensions > 0 {
				o.Dimensions = mc.Dimensions
			}
		})
	}
	idx, err := memory.NewQdrantIndex(emb, func(o *memory.QdrantOptions) {
		o.URL = mc.QdrantURL
		o.APIKey = mc.QdrantKey
		o.Collection = mc.Collection
		o.Logger = a.logger
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return idx.Close() })
	if err := idx.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func newMarketProvider(mc config.MarketConfig) market.Provider {
	var p market.Provider = market.NewSimulatedProvider(nil)
	if mc.Provider == "http" {
		p = market.NewHTTPProvider(func(o *market.HTTPOptions) {
			o.AlphaVantageKey = mc.AlphaVantageKey
			o.FMPKey = mc.FMPKey
		})
	}
	return market.NewCachedProvider(p, func(o *market.CacheOptions) {
		if mc.CacheSize > 0 {
			o.Size = mc.CacheSize
		}
		if mc.QuoteTTL > 0 {
			o.QuoteTTL = mc.QuoteTTL
		}
		if mc.BarsTTL > 0 {
			o.BarsTTL = mc.BarsTTL
		}
	})
}

func newModel(mc config.ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if mc.Name != "" {
				o.Model = anthropicsdk.Model(mc.Name)
			}
			o.APIKey = mc.APIKey
			o.Temperature = mc.Temperature
			o.MaxTokens = int64(mc.MaxTokens)
		}), nil
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
			o.Temperature = mc.Temperature
			o.MaxCompletionTokens = int64(mc.MaxTokens)
		}), nil
	case config.ProviderGemini:
		return gemini.NewModel(func(o *gemini.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			o.APIKey = mc.APIKey
			o.Temperature = float32(mc.Temperature)
			o.MaxTokens = int32(mc.MaxTokens)
		}), nil
	case config.ProviderMock:
		return model.NewMockModel("mock", config.ProviderMock), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", mc.Provider)
	}
}
