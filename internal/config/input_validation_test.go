package config

import (
	"strings"
	"testing"
)

func TestValidateModelName(t *testing.T) {
	tests := []struct {
		name  string
		model string
		want  string // empty when the name is acceptable
	}{
		{"chat model", "gpt-4o-mini", ""},
		{"image model", "gpt-image-1", ""},
		{"namespaced model", "meta-llama/Llama-3.3-70B-Instruct", ""},
		{"at the limit", strings.Repeat("m", MaxModelNameLength), ""},
		{"over the limit", strings.Repeat("m", MaxModelNameLength+1), "exceeds maximum length"},
		{"null byte", "gpt-4o\x00mini", "invalid control characters"},
		{"escape sequence", "\x1b[31mgpt", "invalid control characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateModelName(tt.model, ModelText)
			if tt.want == "" {
				if err != nil {
					t.Errorf("Expected %q to be accepted, got %v", tt.model, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"openai", "https://api.openai.com/v1", ""},
		{"github enterprise", "https://github.example.com/api/v3/", ""},
		{"hugging face", "https://huggingface.co", ""},
		{"local server", "http://127.0.0.1:11434/v1", ""},
		{"file scheme", "file:///etc/passwd", "must use http or https scheme"},
		{"bare host", "api.openai.com", "must use http or https scheme"},
		{"missing host", "https://", "must have a host"},
		{"unparseable", "ht!tp://invalid", "is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBaseURL(tt.url, "models.text.base_url")
			if tt.want == "" {
				if err != nil {
					t.Errorf("Expected %q to be accepted, got %v", tt.url, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
			if err != nil && !strings.Contains(err.Error(), "models.text.base_url") {
				t.Errorf("Expected error to name the field, got %v", err)
			}
		})
	}
}

func TestValidateTemplates(t *testing.T) {
	cfg := &Config{
		PromptTemplates: PromptTemplates{
			TextSystemPrompt: "Small template",
			TextSummary:      "Summarize {{.Book}} {{.Chapter}}",
			ImageSummary:     "Small",
		},
	}

	if err := cfg.validateTemplates(); err != nil {
		t.Errorf("validateTemplates() with small templates returned error: %v", err)
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"oversized", strings.Repeat("x", MaxTemplateSize+1), "exceeds maximum size"},
		{"unclosed action", "Summarize {{.Book", "is invalid"},
		{"forbidden directive", `{{define "x"}}hi{{end}}`, "is invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			c.PromptTemplates.TextSummary = tt.template
			err := c.validateTemplates()
			if err == nil {
				t.Fatal("validateTemplates() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("validateTemplates() error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestContainsControlChars(t *testing.T) {
	allowed := []string{"summary", "summary/kjv", "line one\nline two", "col\tcol", "crlf\r\n"}
	for _, s := range allowed {
		if containsControlChars(s) {
			t.Errorf("Expected %q to be accepted", s)
		}
	}

	rejected := []string{"summary\x00", "\x07bell", "esc\x1b[0m", "del\x7f"}
	for _, s := range rejected {
		if !containsControlChars(s) {
			t.Errorf("Expected %q to be rejected", s)
		}
	}
}

func TestValidateInputs_Integration(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.ValidateInputs(); err != nil {
		t.Errorf("ValidateInputs() with valid config returned error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad model url", func(c *Config) {
			m := c.Models[ModelText]
			m.BaseURL = "ftp://invalid.com"
			c.Models[ModelText] = m
		}},
		{"bad catalog url", func(c *Config) { c.Catalog.APIBaseURL = "github.local" }},
		{"bad hub endpoint", func(c *Config) {
			c.Storage.Backend = "hfhub"
			c.Storage.HFEndpoint = "file:///tmp"
		}},
		{"progress file is a path", func(c *Config) { c.Progress.CursorFile = "../chapter_progress.json" }},
		{"prefix with control chars", func(c *Config) { c.Storage.Prefix = "summary\x00" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			if err := cfg.ValidateInputs(); err == nil {
				t.Error("ValidateInputs() expected error, got nil")
			}
		})
	}
}
