package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFallbackProvider(t *testing.T) {
	assert.Nil(t, NewFallbackProvider(nil))

	only := &scriptedProvider{name: "only"}
	assert.Same(t, only, NewFallbackProvider([]Provider{only}))
}

func TestFallbackProviderUsesFirstSuccess(t *testing.T) {
	failing := &scriptedProvider{name: "primary", err: errors.New("rate limited")}
	empty := &scriptedProvider{name: "empty", answers: []string{""}}
	working := &scriptedProvider{name: "backup", answers: []string{"FINAL_ANSWER: [5]"}}

	p := NewFallbackProvider([]Provider{failing, empty, working})
	assert.Equal(t, "primary", p.Name())

	got, err := p.Generate(context.Background(), "prompt", GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "FINAL_ANSWER: [5]", got)
	assert.Len(t, failing.prompts, 1)
	assert.Len(t, empty.prompts, 1)
	assert.Len(t, working.prompts, 1)
}

func TestFallbackProviderAllFail(t *testing.T) {
	p := NewFallbackProvider([]Provider{
		&scriptedProvider{name: "a", err: errors.New("down")},
		&scriptedProvider{name: "b", err: errors.New("also down")},
	})

	_, err := p.Generate(context.Background(), "prompt", GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: down")
	assert.Contains(t, err.Error(), "b: also down")
}

func TestFallbackProviderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second := &scriptedProvider{name: "b", answers: []string{"x"}}
	p := NewFallbackProvider([]Provider{&scriptedProvider{name: "a", block: true}, second})

	_, err := p.Generate(ctx, "prompt", GenerateOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, second.prompts)
}
