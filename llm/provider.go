// Package llm wraps the model backends the agent can talk to. Every backend
// is reduced to one call: a prompt in, text out.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Provider is a text generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions tunes one call. Zero values leave the backend defaults.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	Model       string
}

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	Type    string // gemini, openai, anthropic, groq, deepseek, openrouter, together, zai, ollama
	APIKey  string
	BaseURL string
	Model   string
}

// DefaultGeminiModel is used when no model is configured for gemini.
const DefaultGeminiModel = "gemini-2.0-flash"

// ErrEmptyResponse is returned by Query when the model answers with blank text.
var ErrEmptyResponse = errors.New("empty model response")

type compatDefaults struct {
	baseURL string
	model   string
	envKeys []string
	headers map[string]string
}

// OpenAI-compatible backends, all served through openai-go.
var compatProviders = map[string]compatDefaults{
	"openai": {
		baseURL: "https://api.openai.com/v1/",
		model:   "gpt-4o-mini",
		envKeys: []string{"OPENAI_API_KEY"},
	},
	"anthropic": {
		baseURL: "https://api.anthropic.com/v1/",
		model:   "claude-3-5-haiku-latest",
		envKeys: []string{"ANTHROPIC_API_KEY"},
	},
	"groq": {
		baseURL: "https://api.groq.com/openai/v1/",
		model:   "llama-3.1-70b-versatile",
		envKeys: []string{"GROQ_API_KEY"},
	},
	"deepseek": {
		baseURL: "https://api.deepseek.com/v1/",
		model:   "deepseek-chat",
		envKeys: []string{"DEEPSEEK_API_KEY"},
	},
	"openrouter": {
		baseURL: "https://openrouter.ai/api/v1/",
		model:   "meta-llama/llama-3.1-70b-instruct",
		envKeys: []string{"OPENROUTER_API_KEY"},
		headers: map[string]string{"X-Title": "cot-calculator"},
	},
	"together": {
		baseURL: "https://api.together.xyz/v1/",
		model:   "meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo",
		envKeys: []string{"TOGETHER_API_KEY"},
	},
	"zai": {
		baseURL: "https://open.bigmodel.cn/api/paas/v4/",
		model:   "glm-4",
		envKeys: []string{"ZAI_API_KEY", "GLM_API_KEY"},
	},
	"ollama": {
		baseURL: "http://localhost:11434/v1/",
		model:   "llama3.1",
	},
}

// NewProvider creates a provider from cfg. A missing API key is looked up in
// the provider's usual environment variable.
func NewProvider(ctx context.Context, cfg ProviderConfig) (Provider, error) {
	typ := normalizeType(cfg.Type)
	if cfg.APIKey == "" {
		cfg.APIKey = APIKeyFor(typ)
	}

	if typ == "gemini" {
		return NewGeminiProvider(ctx, cfg.APIKey, withDefault(cfg.Model, DefaultGeminiModel))
	}

	defaults, ok := compatProviders[typ]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
	apiKey := cfg.APIKey
	if typ == "ollama" && apiKey == "" {
		// Ollama ignores the key but the client insists on sending one.
		apiKey = "ollama"
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s: missing API key (set %s)", typ, strings.Join(defaults.envKeys, " or "))
	}
	return NewOpenAIProvider(typ, apiKey,
		withDefault(cfg.BaseURL, defaults.baseURL),
		withDefault(cfg.Model, defaults.model),
		defaults.headers,
	), nil
}

// NewChain builds the primary provider followed by fallback providers of the
// given types. Fallbacks use their own default model and base URL.
func NewChain(ctx context.Context, primary ProviderConfig, fallbacks []string) (Provider, error) {
	first, err := NewProvider(ctx, primary)
	if err != nil {
		return nil, err
	}
	if len(fallbacks) == 0 {
		return first, nil
	}

	providers := []Provider{first}
	for _, typ := range fallbacks {
		if normalizeType(typ) == normalizeType(primary.Type) {
			continue
		}
		p, err := NewProvider(ctx, ProviderConfig{Type: typ})
		if err != nil {
			return nil, fmt.Errorf("fallback provider %s: %w", typ, err)
		}
		providers = append(providers, p)
	}
	return NewFallbackProvider(providers), nil
}

// DetectProvider picks a provider type from the API keys present in the
// environment, preferring gemini. With no key at all it falls back to ollama.
func DetectProvider() string {
	checks := []struct {
		envKey   string
		provider string
	}{
		{"GEMINI_API_KEY", "gemini"},
		{"GOOGLE_API_KEY", "gemini"},
		{"OPENAI_API_KEY", "openai"},
		{"ANTHROPIC_API_KEY", "anthropic"},
		{"GROQ_API_KEY", "groq"},
		{"DEEPSEEK_API_KEY", "deepseek"},
		{"OPENROUTER_API_KEY", "openrouter"},
		{"TOGETHER_API_KEY", "together"},
		{"ZAI_API_KEY", "zai"},
		{"GLM_API_KEY", "zai"},
	}

	for _, c := range checks {
		if os.Getenv(c.envKey) != "" {
			return c.provider
		}
	}
	return "ollama"
}

// APIKeyFor returns the API key for a provider type from the environment.
func APIKeyFor(provider string) string {
	typ := normalizeType(provider)
	if typ == "gemini" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
	for _, env := range compatProviders[typ].envKeys {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	return ""
}

// Query runs one bounded generation. Errors from the backend are wrapped with
// the provider name; a blank answer yields ErrEmptyResponse.
func Query(ctx context.Context, p Provider, prompt string, timeout time.Duration, opts GenerateOptions) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	opts.Temperature = clampTemperature(opts.Temperature)
	opts.MaxTokens = clampMaxTokens(opts.MaxTokens)

	text, err := p.Generate(ctx, prompt, opts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return "", fmt.Errorf("%s: %w", p.Name(), err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func normalizeType(t string) string {
	switch t = strings.ToLower(strings.TrimSpace(t)); t {
	case "", "google":
		return "gemini"
	case "glm", "zhipu":
		return "zai"
	default:
		return t
	}
}

func withDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
