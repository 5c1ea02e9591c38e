// Package config defines the daemon configuration, populated from
// environment variables (TEAMD_ prefix) with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the root configuration.
type Config struct {
	DBPath string `json:"dbPath" envconfig:"DB_PATH"`

	Provider ProviderConfig `json:"provider"`

	Model   ModelConfig   `json:"model"`
	Session SessionConfig `json:"session"`
	Backoff BackoffConfig `json:"backoff"`

	Scheduler SchedulerConfig `json:"scheduler"`
	Slack     SlackConfig     `json:"slack"`
}

// ProviderConfig points at an OpenAI-compatible API.
type ProviderConfig struct {
	APIKey  string `json:"apiKey" envconfig:"API_KEY"`
	APIBase string `json:"apiBase,omitempty" envconfig:"API_BASE"`
}

// ModelConfig selects the model and bounds the tool loop.
type ModelConfig struct {
	Name        string  `json:"name" envconfig:"MODEL"`
	MaxSteps    int     `json:"maxSteps" envconfig:"MAX_TOOL_STEPS"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// SessionConfig bounds work-session conversations.
type SessionConfig struct {
	MaxMessages      int           `json:"maxMessages" envconfig:"SESSION_MAX_MESSAGES"`
	MaxContextTokens int           `json:"maxContextTokens" envconfig:"SESSION_MAX_CONTEXT_TOKENS"`
	LeadRunInterval  time.Duration `json:"leadRunInterval" envconfig:"LEAD_RUN_INTERVAL"`
}

// BackoffConfig shapes the retry delay for failing agents.
type BackoffConfig struct {
	Base time.Duration `json:"base" envconfig:"BACKOFF_BASE"`
	Max  time.Duration `json:"max" envconfig:"BACKOFF_MAX"`
}

// SchedulerConfig controls the dispatch loop.
type SchedulerConfig struct {
	TickInterval          time.Duration `json:"tickInterval" envconfig:"SCHEDULER_TICK"`
	MaxConcurrentSessions int           `json:"maxConcurrentSessions" envconfig:"SCHEDULER_MAX_SESSIONS"`
	MaxConcLLM            int           `json:"maxConcLLM" envconfig:"SCHEDULER_MAX_LLM"`
	LockPath              string        `json:"lockPath" envconfig:"SCHEDULER_LOCK_PATH"`
}

// SlackConfig enables briefing delivery to Slack. Empty token means
// briefings only go to the log.
type SlackConfig struct {
	Token   string `json:"token" envconfig:"SLACK_TOKEN"`
	Channel string `json:"channel" envconfig:"SLACK_CHANNEL"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".teamd")
	return &Config{
		DBPath: filepath.Join(base, "teamd.db"),
		Model: ModelConfig{
			Name:        "gpt-4o",
			MaxSteps:    10,
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Session: SessionConfig{
			MaxMessages:      40,
			MaxContextTokens: 8000,
			LeadRunInterval:  time.Hour,
		},
		Backoff: BackoffConfig{
			Base: 30 * time.Second,
			Max:  30 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			TickInterval:          30 * time.Second,
			MaxConcurrentSessions: 5,
			MaxConcLLM:            3,
			LockPath:              filepath.Join(base, "scheduler.lock"),
		},
	}
}

// Load builds the configuration from defaults overridden by TEAMD_*
// environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process("TEAMD", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}
