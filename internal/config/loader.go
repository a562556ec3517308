package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses the configuration file and environment variables
func Load(configPath string) (*Config, *Secrets, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}

	// Load secrets from environment
	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return cfg, secrets, nil
}

// Parse decodes TOML, applies defaults and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Additional input security validation
	if err := cfg.ValidateInputs(); err != nil {
		return nil, fmt.Errorf("input validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied and no file read.
// Callers still need to supply the models section.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// BaseDelay returns the retry base delay as a duration
func (c *Config) BaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMs) * time.Millisecond
}

// HTTPTimeout returns the configured request timeout, or 0 for none
func (mc ModelConfig) HTTPTimeout() time.Duration {
	return time.Duration(mc.HTTPTimeoutSeconds) * time.Second
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Catalog defaults match the KJV source repository
	if cfg.Catalog.Repository == "" {
		cfg.Catalog.Repository = "aruljohn/Bible-kjv"
	}
	if len(cfg.Catalog.Extensions) == 0 {
		cfg.Catalog.Extensions = []string{".json"}
	}
	if cfg.Catalog.Exclude == nil {
		cfg.Catalog.Exclude = []string{"Books.json"}
	}
	if cfg.Catalog.ExpectedCount == 0 {
		cfg.Catalog.ExpectedCount = 66
	}
	if cfg.Catalog.Order == "" {
		cfg.Catalog.Order = "canonical"
	}

	if cfg.Progress.Dir == "" {
		cfg.Progress.Dir = "."
	}
	if cfg.Progress.CompletedFile == "" {
		cfg.Progress.CompletedFile = "processed_books.json"
	}
	if cfg.Progress.CursorFile == "" {
		cfg.Progress.CursorFile = "chapter_progress.json"
	}
	if cfg.Progress.HistoryFile == "" {
		cfg.Progress.HistoryFile = "run_history.jsonl"
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelayMs == 0 {
		cfg.Retry.BaseDelayMs = 1000
	}

	// Apply defaults for each model
	for name, model := range cfg.Models {
		if model.BaseURL == "" {
			model.BaseURL = "https://api.openai.com/v1"
		}
		if model.Temperature == 0 {
			model.Temperature = 0.7
		}
		if model.TopP == 0 {
			model.TopP = 1.0
		}
		if model.HTTPTimeoutSeconds == 0 {
			model.HTTPTimeoutSeconds = 120
		}
		if name == ModelImage {
			if model.ImageSize == "" {
				model.ImageSize = "1536x1024"
			}
			// Image generation is much slower than chat
			if model.HTTPTimeoutSeconds < 300 {
				model.HTTPTimeoutSeconds = 300
			}
		}
		cfg.Models[name] = model
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "fs"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "summary"
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "output"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "output/artifacts.db"
	}
	if cfg.Storage.HFBranch == "" {
		cfg.Storage.HFBranch = "main"
	}
	if cfg.Storage.HFEndpoint == "" {
		cfg.Storage.HFEndpoint = "https://huggingface.co"
	}

	// Apply default templates if not provided
	if cfg.PromptTemplates.TextSystemPrompt == "" {
		cfg.PromptTemplates.TextSystemPrompt = GetDefaultTextSystemPrompt()
	}
	if cfg.PromptTemplates.TextSummary == "" {
		cfg.PromptTemplates.TextSummary = GetDefaultTextSummaryTemplate()
	}
	if cfg.PromptTemplates.ImageSummary == "" {
		cfg.PromptTemplates.ImageSummary = GetDefaultImageSummaryTemplate()
	}

	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = "scripturai.log"
	}
}
