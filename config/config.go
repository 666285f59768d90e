// Package config loads process configuration from a YAML file and the
// environment.
//
// Precedence, lowest first: Default(), the YAML file, environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Model providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// Config is the full process configuration.
type Config struct {
	Model     ModelConfig     `yaml:"model"`
	Engine    EngineConfig    `yaml:"engine"`
	Store     StoreConfig     `yaml:"store"`
	Market    MarketConfig    `yaml:"market"`
	Memory    MemoryConfig    `yaml:"memory"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ModelConfig selects the LLM adapter.
type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// EngineConfig tunes the dispatcher.
type EngineConfig struct {
	MaxConcurrentInvocations int           `yaml:"max_concurrent_invocations"`
	MaxIterations            int           `yaml:"max_iterations"`
	ModelCallLimit           int           `yaml:"model_call_limit"`
	Timeout                  time.Duration `yaml:"timeout"`
	Parallel                 bool          `yaml:"parallel_specialists"`
}

// StoreConfig selects the checkpoint store.
type StoreConfig struct {
	// Driver is "memory" or "sqlite".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// MarketConfig selects the market data provider.
type MarketConfig struct {
	// Provider is "simulated" or "http".
	Provider        string        `yaml:"provider"`
	AlphaVantageKey string        `yaml:"alpha_vantage_key"`
	FMPKey          string        `yaml:"fmp_key"`
	CacheSize       int           `yaml:"cache_size"`
	QuoteTTL        time.Duration `yaml:"quote_ttl"`
	BarsTTL         time.Duration `yaml:"bars_ttl"`
}

// MemoryConfig selects the research index.
type MemoryConfig struct {
	// Backend is "memory" or "qdrant".
	Backend    string `yaml:"backend"`
	QdrantURL  string `yaml:"qdrant_url"`
	QdrantKey  string `yaml:"qdrant_api_key"`
	Collection string `yaml:"collection"`
	// Embedder is "hash" or "openai".
	Embedder   string `yaml:"embedder"`
	Dimensions int    `yaml:"dimensions"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig configures OTLP tracing. An empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Provider:    ProviderAnthropic,
			Temperature: 0,
			MaxTokens:   4096,
		},
		Engine: EngineConfig{
			MaxConcurrentInvocations: 10,
			Timeout:                  5 * time.Minute,
		},
		Store:   StoreConfig{Driver: "memory", Path: "agentic.db"},
		Market:  MarketConfig{Provider: "simulated", CacheSize: 256, QuoteTTL: time.Minute, BarsTTL: time.Hour},
		Memory:  MemoryConfig{Backend: "memory", Collection: "market_research", Embedder: "hash", Dimensions: 256},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// envBindings maps environment variables to configuration keys.
var envBindings = map[string]string{
	"AGENTIC_MODEL_PROVIDER":      "model.provider",
	"AGENTIC_MODEL_NAME":          "model.name",
	"AGENTIC_MODEL_BASE_URL":      "model.base_url",
	"AGENTIC_MAX_CONCURRENT":      "engine.max_concurrent_invocations",
	"AGENTIC_MAX_ITERATIONS":      "engine.max_iterations",
	"AGENTIC_MODEL_CALL_LIMIT":    "engine.model_call_limit",
	"AGENTIC_TIMEOUT":             "engine.timeout",
	"AGENTIC_STORE_DRIVER":        "store.driver",
	"AGENTIC_STORE_PATH":          "store.path",
	"AGENTIC_MARKET_PROVIDER":     "market.provider",
	"ALPHA_VANTAGE_API_KEY":       "market.alpha_vantage_key",
	"FMP_API_KEY":                 "market.fmp_key",
	"AGENTIC_MEMORY_BACKEND":      "memory.backend",
	"QDRANT_URL":                  "memory.qdrant_url",
	"QDRANT_API_KEY":              "memory.qdrant_api_key",
	"AGENTIC_EMBEDDER":            "memory.embedder",
	"AGENTIC_LOG_LEVEL":           "logging.level",
	"AGENTIC_LOG_FORMAT":          "logging.format",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "telemetry.endpoint",
}

// providerKeyEnv names the API key variable consulted when model.api_key is empty.
var providerKeyEnv = map[string]string{
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
}

// Load reads path (optional) and applies environment overrides. The result is
// validated.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %q: %w", path, err)
		}
	}
	for env, key := range envBindings {
		if v, ok := lookup(env); ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, fmt.Errorf("failed to apply %s: %w", env, err)
			}
		}
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Model.APIKey == "" {
		if env, ok := providerKeyEnv[cfg.Model.Provider]; ok {
			cfg.Model.APIKey, _ = lookup(env)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Model.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("model.provider: unsupported %q", c.Model.Provider))
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		errs = append(errs, fmt.Errorf("model.temperature: %v out of range [0,2]", c.Model.Temperature))
	}
	if c.Engine.MaxConcurrentInvocations < 0 {
		errs = append(errs, errors.New("engine.max_concurrent_invocations: must not be negative"))
	}
	if c.Engine.MaxIterations < 0 {
		errs = append(errs, errors.New("engine.max_iterations: must not be negative"))
	}
	if c.Engine.ModelCallLimit < 0 {
		errs = append(errs, errors.New("engine.model_call_limit: must not be negative"))
	}
	if !oneOf(c.Store.Driver, "memory", "sqlite") {
		errs = append(errs, fmt.Errorf("store.driver: unsupported %q", c.Store.Driver))
	}
	if c.Store.Driver == "sqlite" && strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path: required for sqlite"))
	}
	if !oneOf(c.Market.Provider, "simulated", "http") {
		errs = append(errs, fmt.Errorf("market.provider: unsupported %q", c.Market.Provider))
	}
	if c.Market.Provider == "http" && c.Market.AlphaVantageKey == "" && c.Market.FMPKey == "" {
		errs = append(errs, errors.New("market: http provider needs alpha_vantage_key or fmp_key"))
	}
	if !oneOf(c.Memory.Backend, "memory", "qdrant") {
		errs = append(errs, fmt.Errorf("memory.backend: unsupported %q", c.Memory.Backend))
	}
	if c.Memory.Backend == "qdrant" && c.Memory.QdrantURL == "" {
		errs = append(errs, errors.New("memory.qdrant_url: required for qdrant"))
	}
	if !oneOf(c.Memory.Embedder, "hash", "openai") {
		errs = append(errs, fmt.Errorf("memory.embedder: unsupported %q", c.Memory.Embedder))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio: %v out of range [0,1]", c.Telemetry.SampleRatio))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
