package llm

import (
	"context"
	"fmt"
	"strings"
)

// FallbackProvider tries multiple providers in order until one succeeds.
type FallbackProvider struct {
	providers []Provider
}

// NewFallbackProvider returns nil for no providers and the provider itself
// for exactly one.
func NewFallbackProvider(providers []Provider) Provider {
	if len(providers) == 0 {
		return nil
	}
	if len(providers) == 1 {
		return providers[0]
	}
	return &FallbackProvider{providers: providers}
}

func (f *FallbackProvider) Name() string {
	return f.providers[0].Name()
}

func (f *FallbackProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	var errs []string
	for _, p := range f.providers {
		resp, err := p.Generate(ctx, prompt, opts)
		if err == nil && strings.TrimSpace(resp) != "" {
			return resp, nil
		}
		if err == nil {
			err = ErrEmptyResponse
		}
		errs = append(errs, fmt.Sprintf("%s: %v", p.Name(), err))

		// No point trying the next backend once the caller gave up.
		if ctx.Err() != nil {
			return "", fmt.Errorf("all providers failed: %s: %w", strings.Join(errs, "; "), ctx.Err())
		}
	}
	return "", fmt.Errorf("all providers failed: %s", strings.Join(errs, "; "))
}
