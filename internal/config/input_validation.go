package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"unicode"

	"github.com/lamim/scripturai/internal/util"
)

const (
	// MaxModelNameLength is the maximum allowed length for model names
	MaxModelNameLength = 100

	// MaxTemplateSize is the maximum allowed size for template content
	MaxTemplateSize = 50 * 1024 // 50KB
)

// ValidateInputs performs additional security validation on user-controllable fields.
func (c *Config) ValidateInputs() error {
	for name, mc := range c.Models {
		if err := validateModelName(mc.ModelName, name); err != nil {
			return err
		}

		if err := validateBaseURL(mc.BaseURL, fmt.Sprintf("models.%s.base_url", name)); err != nil {
			return err
		}
	}

	if c.Catalog.APIBaseURL != "" {
		if err := validateBaseURL(c.Catalog.APIBaseURL, "catalog.api_base_url"); err != nil {
			return err
		}
	}
	if c.Storage.Backend == "hfhub" {
		if err := validateBaseURL(c.Storage.HFEndpoint, "storage.hf_endpoint"); err != nil {
			return err
		}
	}

	// Progress files are plain names inside progress.dir
	for _, name := range []string{c.Progress.CompletedFile, c.Progress.CursorFile, c.Progress.HistoryFile} {
		if filepath.Base(name) != name {
			return fmt.Errorf("progress file %q must be a file name, not a path", name)
		}
	}

	if containsControlChars(c.Storage.Prefix) {
		return fmt.Errorf("storage.prefix contains invalid control characters")
	}

	return c.validateTemplates()
}

// validateModelName checks model name for security issues
func validateModelName(modelName, configKey string) error {
	if len(modelName) > MaxModelNameLength {
		return fmt.Errorf("model '%s' name exceeds maximum length of %d (got %d)",
			configKey, MaxModelNameLength, len(modelName))
	}

	if containsControlChars(modelName) {
		return fmt.Errorf("model '%s' name contains invalid control characters", configKey)
	}

	return nil
}

// validateBaseURL checks that a URL is properly formatted and uses http(s)
func validateBaseURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", field, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme (got %s)", field, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%s must have a host", field)
	}

	return nil
}

// validateTemplates checks that templates are within size limits and parse
func (c *Config) validateTemplates() error {
	templates := []struct {
		name  string
		value string
	}{
		{"text_system_prompt", c.PromptTemplates.TextSystemPrompt},
		{"text_summary", c.PromptTemplates.TextSummary},
		{"image_summary", c.PromptTemplates.ImageSummary},
	}

	for _, tmpl := range templates {
		if len(tmpl.value) > MaxTemplateSize {
			return fmt.Errorf("template '%s' exceeds maximum size of %d bytes (got %d)",
				tmpl.name, MaxTemplateSize, len(tmpl.value))
		}
		if err := util.ValidateTemplate(tmpl.value); err != nil {
			return fmt.Errorf("template '%s' is invalid: %w", tmpl.name, err)
		}
	}

	return nil
}

// containsControlChars checks if a string contains control characters
// (excluding newlines, tabs, and carriage returns which are acceptable)
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
