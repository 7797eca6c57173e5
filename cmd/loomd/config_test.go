package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LOOMD_OPENAI_API_KEY", "")
	t.Setenv("LOOMD_DEFAULT_PROVIDER", "")
	t.Setenv("LOOMD_MAX_PARALLEL", "")

	cfg := loadConfig()
	assert.Equal(t, "openai", cfg.DefaultProvider)
	assert.Equal(t, "gpt-4o-mini", cfg.SummaryModel)
	assert.Equal(t, -1, cfg.Scheduler.DepthCeiling)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LOOMD_DEFAULT_PROVIDER", "openai-functions")
	t.Setenv("LOOMD_MAX_PARALLEL", "4")
	t.Setenv("LOOMD_STRICT", "true")

	cfg := loadConfig()
	assert.Equal(t, "openai-functions", cfg.DefaultProvider)
	assert.Equal(t, 4, cfg.Scheduler.MaxParallel)
	assert.True(t, cfg.Scheduler.Strict)
}
