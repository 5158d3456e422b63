package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var providerEnvKeys = []string{
	"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GROQ_API_KEY",
	"DEEPSEEK_API_KEY", "OPENROUTER_API_KEY", "TOGETHER_API_KEY", "ZAI_API_KEY", "GLM_API_KEY",
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range providerEnvKeys {
		t.Setenv(k, "")
	}
}

// scriptedProvider replays canned answers and records prompts.
type scriptedProvider struct {
	name    string
	answers []string
	err     error
	prompts []string
	block   bool
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	p.prompts = append(p.prompts, prompt)
	if p.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if p.err != nil {
		return "", p.err
	}
	if len(p.answers) == 0 {
		return "", nil
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func TestWithDefault(t *testing.T) {
	tests := []struct {
		name     string
		val      string
		def      string
		expected string
	}{
		{"Value present", "actual", "default", "actual"},
		{"Value empty", "", "default", "default"},
		{"Both empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, withDefault(tt.val, tt.def))
		})
	}
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		want   string
	}{
		{"no keys defaults to ollama", "", "ollama"},
		{"gemini", "GEMINI_API_KEY", "gemini"},
		{"google key is gemini", "GOOGLE_API_KEY", "gemini"},
		{"openai", "OPENAI_API_KEY", "openai"},
		{"groq", "GROQ_API_KEY", "groq"},
		{"glm key is zai", "GLM_API_KEY", "zai"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderEnv(t)
			if tt.envKey != "" {
				t.Setenv(tt.envKey, "key")
			}
			assert.Equal(t, tt.want, DetectProvider())
		})
	}
}

func TestDetectProviderPrefersGemini(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk")
	t.Setenv("GEMINI_API_KEY", "g")
	assert.Equal(t, "gemini", DetectProvider())
}

func TestAPIKeyFor(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("GLM_API_KEY", "glm-key")
	t.Setenv("DEEPSEEK_API_KEY", "ds-key")

	assert.Equal(t, "google-key", APIKeyFor("gemini"))
	assert.Equal(t, "google-key", APIKeyFor(""))
	assert.Equal(t, "glm-key", APIKeyFor("zhipu"))
	assert.Equal(t, "ds-key", APIKeyFor("DeepSeek"))
	assert.Equal(t, "", APIKeyFor("ollama"))
	assert.Equal(t, "", APIKeyFor("unknown"))

	t.Setenv("GEMINI_API_KEY", "gemini-key")
	assert.Equal(t, "gemini-key", APIKeyFor("google"))
}

func TestNewProvider(t *testing.T) {
	clearProviderEnv(t)
	ctx := context.Background()

	_, err := NewProvider(ctx, ProviderConfig{Type: "bogus"})
	assert.ErrorContains(t, err, "unknown provider type")

	_, err = NewProvider(ctx, ProviderConfig{Type: "gemini"})
	assert.ErrorContains(t, err, "missing API key")

	_, err = NewProvider(ctx, ProviderConfig{Type: "groq"})
	assert.ErrorContains(t, err, "GROQ_API_KEY")

	p, err := NewProvider(ctx, ProviderConfig{Type: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	p, err = NewProvider(ctx, ProviderConfig{Type: "glm", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "zai", p.Name())
	assert.Equal(t, "glm-4", p.(*OpenAIProvider).model)

	p, err = NewProvider(ctx, ProviderConfig{Type: "openai", APIKey: "k", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.(*OpenAIProvider).model)
}

func TestNewChain(t *testing.T) {
	clearProviderEnv(t)
	ctx := context.Background()

	p, err := NewChain(ctx, ProviderConfig{Type: "ollama"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)

	// A fallback naming the primary type is skipped.
	p, err = NewChain(ctx, ProviderConfig{Type: "ollama"}, []string{"ollama"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)

	t.Setenv("GROQ_API_KEY", "k")
	p, err = NewChain(ctx, ProviderConfig{Type: "ollama"}, []string{"groq"})
	require.NoError(t, err)
	require.IsType(t, &FallbackProvider{}, p)
	assert.Equal(t, "ollama", p.Name())

	_, err = NewChain(ctx, ProviderConfig{Type: "ollama"}, []string{"together"})
	assert.ErrorContains(t, err, "fallback provider together")
}

func TestQuery(t *testing.T) {
	ctx := context.Background()

	p := &scriptedProvider{name: "fake", answers: []string{"  FINAL_ANSWER: [210]\n"}}
	got, err := Query(ctx, p, "prompt", time.Second, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "FINAL_ANSWER: [210]", got)
	assert.Equal(t, []string{"prompt"}, p.prompts)

	_, err = Query(ctx, &scriptedProvider{name: "fake", answers: []string{"   "}}, "p", time.Second, GenerateOptions{})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	boom := errors.New("boom")
	_, err = Query(ctx, &scriptedProvider{name: "fake", err: boom}, "p", time.Second, GenerateOptions{})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "fake: ")
}

func TestQueryTimeout(t *testing.T) {
	p := &scriptedProvider{name: "slow", block: true}

	start := time.Now()
	_, err := Query(context.Background(), p, "p", 20*time.Millisecond, GenerateOptions{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
