package main

import (
	"os"
	"strconv"

	"loom/schedule"
)

// Config carries loomd's process-wide knobs, sourced from environment
// variables rather than a flags/YAML layer — this binary is a thin
// wiring example (SPEC_FULL.md §2's "domain stack" entry for cmd/loomd),
// not a production server with its own config format.
type Config struct {
	OpenAIAPIKey    string
	DefaultProvider string
	SummaryModel    string
	Scheduler       schedule.Options
}

func loadConfig() Config {
	cfg := Config{
		OpenAIAPIKey:    os.Getenv("LOOMD_OPENAI_API_KEY"),
		DefaultProvider: envOr("LOOMD_DEFAULT_PROVIDER", "openai"),
		SummaryModel:    envOr("LOOMD_SUMMARY_MODEL", "gpt-4o-mini"),
		Scheduler:       schedule.DefaultOptions(),
	}
	if v := os.Getenv("LOOMD_MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.MaxParallel = n
		}
	}
	if v := os.Getenv("LOOMD_DEPTH_CEILING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.DepthCeiling = n
		}
	}
	if v := os.Getenv("LOOMD_TOKEN_CEILING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scheduler.TokenCeiling = n
		}
	}
	if v := os.Getenv("LOOMD_STRICT"); v == "true" {
		cfg.Scheduler.Strict = true
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
