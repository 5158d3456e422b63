package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIProvider serves every OpenAI-compatible endpoint (OpenAI, Groq,
// DeepSeek, OpenRouter, Together, Z.ai, Anthropic's compatibility layer and
// Ollama).
type OpenAIProvider struct {
	client openai.Client
	name   string
	model  string
}

func NewOpenAIProvider(name, apiKey, baseURL, model string, headers map[string]string, opts ...openaiopt.RequestOption) *OpenAIProvider {
	clientOpts := []openaiopt.RequestOption{openaiopt.WithAPIKey(apiKey)}
	if baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(baseURL))
	}
	for k, v := range headers {
		clientOpts = append(clientOpts, openaiopt.WithHeader(k, v))
	}
	clientOpts = append(clientOpts, opts...)

	return &OpenAIProvider{
		client: openai.NewClient(clientOpts...),
		name:   name,
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string {
	if p.name != "" {
		return p.name
	}
	return "openai"
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(withDefault(opts.Model, p.model)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
