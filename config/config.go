// Package config loads runtime settings for both binaries from the
// environment, after an optional .env file.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"cot-calculator/llm"
)

// Config holds application-wide configuration
type Config struct {
	// Model backend
	Provider  string
	Model     string
	BaseURL   string
	Fallbacks []string

	ModelTimeout     time.Duration
	SelfCheckTimeout time.Duration

	// Generation limits; zero leaves the backend default.
	Temperature float64
	MaxTokens   int

	// Tool process launched by the agent
	ToolsCommand string
	ToolsArgs    []string

	// Conversation
	Problem  string
	MaxTurns int // 0 = unlimited

	LogLevel string

	// Tool server
	CacheTTL        time.Duration // 0 disables the result cache
	CacheMaxEntries int
	Transport       string
	Port            string
	MCPBaseURL      string
}

// Validation bounds
const (
	minTimeout = 1 * time.Second
	maxTimeout = 5 * time.Minute

	maxTurnsCap        = 1000
	maxTemperature     = 2.0
	maxTokensCap       = 8192
	maxCacheEntriesCap = 100000
)

const (
	DefaultProblem      = "(23 + 7) * (15 - 8)"
	DefaultToolsCommand = "cot-tools"
	DefaultPort         = "8080"
	defaultModelTimeout = 10 * time.Second
	defaultCacheEntries = 256
)

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	return &Config{
		Model:            llm.DefaultGeminiModel,
		ModelTimeout:     defaultModelTimeout,
		SelfCheckTimeout: defaultModelTimeout,
		ToolsCommand:     DefaultToolsCommand,
		Problem:          DefaultProblem,
		LogLevel:         "info",
		CacheMaxEntries:  defaultCacheEntries,
		Transport:        "stdio",
		Port:             DefaultPort,
	}
}

// Validate checks that the values are within reasonable bounds.
func (c *Config) Validate() error {
	timeouts := []struct {
		name    string
		timeout time.Duration
	}{
		{"ModelTimeout", c.ModelTimeout},
		{"SelfCheckTimeout", c.SelfCheckTimeout},
	}
	for _, t := range timeouts {
		if t.timeout < minTimeout {
			return fmt.Errorf("%s (%v) is below minimum (%v)", t.name, t.timeout, minTimeout)
		}
		if t.timeout > maxTimeout {
			return fmt.Errorf("%s (%v) exceeds maximum (%v)", t.name, t.timeout, maxTimeout)
		}
	}

	if c.Temperature < 0 || c.Temperature > maxTemperature {
		return fmt.Errorf("Temperature (%v) must be between 0 and %v", c.Temperature, maxTemperature)
	}
	if c.MaxTokens < 0 || c.MaxTokens > maxTokensCap {
		return fmt.Errorf("MaxTokens (%d) must be between 0 and %d", c.MaxTokens, maxTokensCap)
	}

	if c.MaxTurns < 0 {
		return fmt.Errorf("MaxTurns (%d) must not be negative", c.MaxTurns)
	}
	if c.MaxTurns > maxTurnsCap {
		return fmt.Errorf("MaxTurns (%d) exceeds maximum (%d)", c.MaxTurns, maxTurnsCap)
	}
	if strings.TrimSpace(c.Problem) == "" {
		return fmt.Errorf("problem must not be empty")
	}
	if strings.TrimSpace(c.ToolsCommand) == "" {
		return fmt.Errorf("tools command must not be empty")
	}
	switch c.Transport {
	case "stdio", "sse":
	default:
		return fmt.Errorf("unknown transport %q (want stdio or sse)", c.Transport)
	}
	return nil
}

// Load reads .env (when present) and the environment on top of the defaults.
// Invalid numbers are ignored; out-of-range values are clamped with a warning.
func Load(logger *zap.Logger) *Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", zap.Error(err))
	}
	return FromEnv(logger)
}

// FromEnv is Load without the .env step.
func FromEnv(logger *zap.Logger) *Config {
	cfg := DefaultConfig()

	clampDuration := func(name string, value time.Duration) time.Duration {
		if value < minTimeout {
			logger.Warn("value below minimum, clamping",
				zap.String("key", name), zap.Duration("value", value), zap.Duration("min", minTimeout))
			return minTimeout
		}
		if value > maxTimeout {
			logger.Warn("value exceeds maximum, clamping",
				zap.String("key", name), zap.Duration("value", value), zap.Duration("max", maxTimeout))
			return maxTimeout
		}
		return value
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	if cfg.Provider == "" {
		cfg.Provider = llm.DetectProvider()
	}
	if m := strings.TrimSpace(os.Getenv("LLM_MODEL")); m != "" {
		cfg.Model = m
	} else if cfg.Provider != "gemini" {
		// Let the provider pick its own default.
		cfg.Model = ""
	}
	cfg.BaseURL = strings.TrimSpace(os.Getenv("LLM_BASE_URL"))
	cfg.Fallbacks = splitList(os.Getenv("LLM_FALLBACKS"), ",")

	if d, ok := envDuration(logger, "MODEL_TIMEOUT"); ok {
		cfg.ModelTimeout = clampDuration("MODEL_TIMEOUT", d)
	}
	if d, ok := envDuration(logger, "SELF_CHECK_TIMEOUT"); ok {
		cfg.SelfCheckTimeout = clampDuration("SELF_CHECK_TIMEOUT", d)
	}

	if f, ok := envFloat(logger, "LLM_TEMPERATURE"); ok {
		switch {
		case f < 0:
			logger.Warn("LLM_TEMPERATURE below minimum, clamping", zap.Float64("value", f), zap.Float64("min", 0))
			cfg.Temperature = 0
		case f > maxTemperature:
			logger.Warn("LLM_TEMPERATURE exceeds maximum, clamping", zap.Float64("value", f), zap.Float64("max", maxTemperature))
			cfg.Temperature = maxTemperature
		default:
			cfg.Temperature = f
		}
	}
	if n, ok := envInt(logger, "LLM_MAX_TOKENS"); ok {
		switch {
		case n <= 0:
			logger.Warn("LLM_MAX_TOKENS must be positive, using backend default", zap.Int("value", n))
		case n > maxTokensCap:
			logger.Warn("LLM_MAX_TOKENS exceeds maximum, clamping", zap.Int("value", n), zap.Int("max", maxTokensCap))
			cfg.MaxTokens = maxTokensCap
		default:
			cfg.MaxTokens = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("COT_TOOLS_COMMAND")); v != "" {
		cfg.ToolsCommand = v
	}
	cfg.ToolsArgs = strings.Fields(os.Getenv("COT_TOOLS_ARGS"))

	if v := strings.TrimSpace(os.Getenv("COT_PROBLEM")); v != "" {
		cfg.Problem = v
	}
	if n, ok := envInt(logger, "COT_MAX_TURNS"); ok {
		switch {
		case n < 0:
			logger.Warn("COT_MAX_TURNS is negative, using unlimited", zap.Int("value", n))
		case n > maxTurnsCap:
			logger.Warn("COT_MAX_TURNS exceeds maximum, clamping", zap.Int("value", n), zap.Int("max", maxTurnsCap))
			cfg.MaxTurns = maxTurnsCap
		default:
			cfg.MaxTurns = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if n, ok := envInt(logger, "TOOL_CACHE_TTL"); ok && n > 0 {
		cfg.CacheTTL = time.Duration(n) * time.Second
	}
	if n, ok := envInt(logger, "TOOL_CACHE_MAX"); ok {
		switch {
		case n <= 0:
			logger.Warn("TOOL_CACHE_MAX must be positive, keeping default", zap.Int("value", n))
		case n > maxCacheEntriesCap:
			logger.Warn("TOOL_CACHE_MAX exceeds maximum, clamping", zap.Int("value", n), zap.Int("max", maxCacheEntriesCap))
			cfg.CacheMaxEntries = maxCacheEntriesCap
		default:
			cfg.CacheMaxEntries = n
		}
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT"))); v != "" {
		cfg.Transport = v
	}
	if v := strings.TrimSpace(os.Getenv("MCP_PORT")); v != "" {
		cfg.Port = v
	}
	cfg.MCPBaseURL = strings.TrimSpace(os.Getenv("MCP_BASE_URL"))

	return cfg
}

// ProviderConfig returns the primary model backend settings.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Type:    c.Provider,
		BaseURL: c.BaseURL,
		Model:   c.Model,
	}
}

// GenerateOptions returns the per-query generation limits.
func (c *Config) GenerateOptions() llm.GenerateOptions {
	return llm.GenerateOptions{Temperature: c.Temperature, MaxTokens: c.MaxTokens}
}

// SSEBaseURL is MCPBaseURL, or http://localhost:<port> when unset.
func (c *Config) SSEBaseURL() string {
	if c.MCPBaseURL != "" {
		return c.MCPBaseURL
	}
	return fmt.Sprintf("http://localhost:%s", c.Port)
}

// envDuration reads a timeout in whole seconds, or as a Go duration ("1500ms").
func envDuration(logger *zap.Logger, key string) (time.Duration, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	if s, err := strconv.Atoi(v); err == nil {
		if s <= 0 {
			logger.Warn("ignoring non-positive timeout", zap.String("key", key), zap.Int("value", s))
			return 0, false
		}
		return time.Duration(s) * time.Second, true
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logger.Warn("ignoring invalid timeout", zap.String("key", key), zap.String("value", v))
		return 0, false
	}
	return d, true
}

func envInt(logger *zap.Logger, key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("ignoring invalid integer", zap.String("key", key), zap.String("value", v))
		return 0, false
	}
	return n, true
}

func envFloat(logger *zap.Logger, key string) (float64, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		logger.Warn("ignoring invalid number", zap.String("key", key), zap.String("value", v))
		return 0, false
	}
	return f, true
}

func splitList(raw, sep string) []string {
	var out []string
	for _, p := range strings.Split(raw, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
