package llm_test

import (
	"context"
	"testing"

	"loom"
	"loom/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterDispatchesByProvider(t *testing.T) {
	r := llm.NewRouter("stub")
	r.Register("stub", &llm.StubService{Responses: []string{"OK"}})

	text, _, err := r.Generate(context.Background(), llm.GenerateConfig{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "OK", text)
}

func TestRouterUnknownProvider(t *testing.T) {
	r := llm.NewRouter("")
	_, _, err := r.Generate(context.Background(), llm.GenerateConfig{Provider: "ghost"}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, loom.KindServiceUnavailable, loom.Classify(err))
}

func TestStubServiceAdvancesPerCall(t *testing.T) {
	s := &llm.StubService{Responses: []string{"first", "second"}}
	text1, _, _ := s.Generate(context.Background(), llm.GenerateConfig{}, nil, nil)
	text2, _, _ := s.Generate(context.Background(), llm.GenerateConfig{}, nil, nil)
	text3, _, _ := s.Generate(context.Background(), llm.GenerateConfig{}, nil, nil)
	assert.Equal(t, "first", text1)
	assert.Equal(t, "second", text2)
	assert.Equal(t, "second", text3)
}
