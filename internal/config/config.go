package config

import (
	"fmt"
	"os"
	"strings"
)

// Config represents the complete application configuration
type Config struct {
	Catalog         CatalogConfig          `toml:"catalog"`
	Progress        ProgressConfig         `toml:"progress"`
	Retry           RetryConfig            `toml:"retry"`
	Models          map[string]ModelConfig `toml:"models"` // "text" and "image"
	Storage         StorageConfig          `toml:"storage"`
	PromptTemplates PromptTemplates        `toml:"prompt_templates"`
	Logging         LoggingConfig          `toml:"logging"`
	Metrics         MetricsConfig          `toml:"metrics"`
}

// CatalogConfig describes where source books are listed and downloaded from
type CatalogConfig struct {
	Repository    string   `toml:"repository"`     // GitHub "owner/name"
	Ref           string   `toml:"ref"`            // Branch, tag or commit (empty = default branch)
	Path          string   `toml:"path"`           // Directory inside the repository (empty = root)
	Extensions    []string `toml:"extensions"`     // e.g. [".json"]
	Exclude       []string `toml:"exclude"`        // File names to skip, e.g. ["Books.json"]
	ExpectedCount int      `toml:"expected_count"` // Required catalog size (-1 disables the check)
	Order         string   `toml:"order"`          // "canonical" or "name"
	APIBaseURL    string   `toml:"api_base_url"`   // Optional GitHub API override (enterprise, tests)
}

// ProgressConfig locates the two progress files
type ProgressConfig struct {
	Dir           string `toml:"dir"`
	CompletedFile string `toml:"completed_file"`
	CursorFile    string `toml:"cursor_file"`
	HistoryFile   string `toml:"history_file"` // JSON lines, one report per run
}

// RetryConfig controls the bounded retry applied to every external call
type RetryConfig struct {
	MaxAttempts int `toml:"max_attempts"`
	BaseDelayMs int `toml:"base_delay_ms"` // Wait after failed attempt k (from 1) is k * base_delay_ms
}

// ModelConfig represents configuration for a single model endpoint
type ModelConfig struct {
	BaseURL            string  `toml:"base_url"`
	ModelName          string  `toml:"model_name"`
	Temperature        float64 `toml:"temperature"`
	TopP               float64 `toml:"top_p"`
	MaxOutputTokens    int     `toml:"max_output_tokens"`
	HTTPTimeoutSeconds int     `toml:"http_timeout_seconds"`
	ImageSize          string  `toml:"image_size"`    // Image model only, e.g. "1536x1024"
	ImageQuality       string  `toml:"image_quality"` // Image model only, optional
}

// StorageConfig selects and configures the artifact store
type StorageConfig struct {
	Backend    string `toml:"backend"` // "fs", "sqlite" or "hfhub"
	Prefix     string `toml:"prefix"`  // Key prefix, e.g. "summary"
	Dir        string `toml:"dir"`     // fs backend root
	SQLitePath string `toml:"sqlite_path"`
	HFRepoID   string `toml:"hf_repo_id"` // hfhub backend dataset repository "owner/name"
	HFBranch   string `toml:"hf_branch"`
	HFEndpoint string `toml:"hf_endpoint"`
	HFPrivate  bool   `toml:"hf_private"`
}

// PromptTemplates holds all customizable prompt templates
type PromptTemplates struct {
	TextSystemPrompt string `toml:"text_system_prompt"`
	TextSummary      string `toml:"text_summary"`
	ImageSummary     string `toml:"image_summary"`
}

// LoggingConfig controls where the run log is written
type LoggingConfig struct {
	Dir  string `toml:"dir"`
	File string `toml:"file"`
}

// MetricsConfig controls metric export
type MetricsConfig struct {
	Textfile string `toml:"textfile"` // Written on exit when set
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	APIKeys          map[string]string
	GitHubToken      string
	HuggingFaceToken string
}

const (
	// ModelText is the models key for the chapter text summarizer
	ModelText = "text"
	// ModelImage is the models key for the chapter image summarizer
	ModelImage = "image"

	// MaxRetryAttempts bounds retry.max_attempts
	MaxRetryAttempts = 20
)

var (
	validBackends = []string{"fs", "sqlite", "hfhub"}
	validOrders   = []string{"canonical", "name"}
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Catalog.Repository == "" {
		return fmt.Errorf("catalog.repository is required")
	}
	if parts := strings.Split(c.Catalog.Repository, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("catalog.repository must be 'owner/name' (got %q)", c.Catalog.Repository)
	}
	if len(c.Catalog.Extensions) == 0 {
		return fmt.Errorf("catalog.extensions must list at least one extension")
	}
	if c.Catalog.ExpectedCount < -1 {
		return fmt.Errorf("catalog.expected_count must be positive, or -1 to disable the check (got %d)", c.Catalog.ExpectedCount)
	}
	if !oneOf(c.Catalog.Order, validOrders) {
		return fmt.Errorf("catalog.order must be one of: %s (got %s)", strings.Join(validOrders, ", "), c.Catalog.Order)
	}

	if c.Progress.CompletedFile == "" || c.Progress.CursorFile == "" {
		return fmt.Errorf("progress.completed_file and progress.cursor_file are required")
	}
	if c.Progress.CompletedFile == c.Progress.CursorFile {
		return fmt.Errorf("progress.completed_file and progress.cursor_file must differ")
	}

	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > MaxRetryAttempts {
		return fmt.Errorf("retry.max_attempts must be between 1 and %d (got %d)", MaxRetryAttempts, c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelayMs < 0 {
		return fmt.Errorf("retry.base_delay_ms must not be negative (got %d)", c.Retry.BaseDelayMs)
	}

	textModel, ok := c.Models[ModelText]
	if !ok {
		return fmt.Errorf("models.text is required")
	}
	if err := validateModelConfig(ModelText, textModel); err != nil {
		return err
	}
	imageModel, ok := c.Models[ModelImage]
	if !ok {
		return fmt.Errorf("models.image is required")
	}
	if err := validateModelConfig(ModelImage, imageModel); err != nil {
		return err
	}
	if imageModel.ImageSize == "" {
		return fmt.Errorf("models.image.image_size is required")
	}

	if !oneOf(c.Storage.Backend, validBackends) {
		return fmt.Errorf("storage.backend must be one of: %s (got %s)", strings.Join(validBackends, ", "), c.Storage.Backend)
	}
	switch c.Storage.Backend {
	case "fs":
		if c.Storage.Dir == "" {
			return fmt.Errorf("storage.dir is required for the fs backend")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	case "hfhub":
		if parts := strings.Split(c.Storage.HFRepoID, "/"); len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("storage.hf_repo_id must be 'owner/name' for the hfhub backend (got %q)", c.Storage.HFRepoID)
		}
	}

	if c.PromptTemplates.TextSummary == "" {
		return fmt.Errorf("prompt_templates.text_summary is required")
	}
	if c.PromptTemplates.ImageSummary == "" {
		return fmt.Errorf("prompt_templates.image_summary is required")
	}

	return nil
}

func validateModelConfig(name string, mc ModelConfig) error {
	if mc.BaseURL == "" {
		return fmt.Errorf("models.%s.base_url is required", name)
	}
	if mc.ModelName == "" {
		return fmt.Errorf("models.%s.model_name is required", name)
	}
	if mc.Temperature < 0 || mc.Temperature > 2 {
		return fmt.Errorf("models.%s.temperature must be between 0 and 2", name)
	}
	if mc.TopP < 0 || mc.TopP > 1 {
		return fmt.Errorf("models.%s.top_p must be between 0 and 1", name)
	}
	if mc.MaxOutputTokens < 0 {
		return fmt.Errorf("models.%s.max_output_tokens must not be negative", name)
	}
	if mc.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("models.%s.http_timeout_seconds must not be negative", name)
	}
	return nil
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{
		APIKeys: make(map[string]string),
	}

	// Load generic API key (provider-agnostic)
	if key := os.Getenv("API_KEY"); key != "" {
		secrets.APIKeys["generic"] = key
	}

	// OPEN_AI_KEY is the name older deployments used
	if key := os.Getenv("OPEN_AI_KEY"); key != "" {
		secrets.APIKeys["openai"] = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		secrets.APIKeys["openai"] = key
	}

	secrets.GitHubToken = os.Getenv("GITHUB_TOKEN")
	secrets.HuggingFaceToken = os.Getenv("HUGGING_FACE_TOKEN")

	return secrets, nil
}

// GetAPIKey returns the API key for a given base URL
func (s *Secrets) GetAPIKey(baseURL string) string {
	if strings.Contains(baseURL, "openai.com") {
		if key := s.APIKeys["openai"]; key != "" {
			return key
		}
	}

	// Fall back to generic API_KEY for any OpenAI-compatible provider
	if key := s.APIKeys["generic"]; key != "" {
		return key
	}
	// Then to the OpenAI key, which most single-provider setups set alone
	if key := s.APIKeys["openai"]; key != "" {
		return key
	}

	// Local servers may not need auth
	return ""
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}
