package util

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// forbiddenDirectives could be used to call functions or pull in other templates
var forbiddenDirectives = []string{"{{call", "{{define", "{{template", "{{block"}

// Parsed templates keyed by source text. Prompt templates come from config and
// are rendered once per chapter, so parsing once per run is enough.
var templateCache sync.Map

// RenderTemplate renders a template string with the given data.
// data is usually a struct or a map[string]any; missing keys are an error.
func RenderTemplate(tmpl string, data any) (string, error) {
	t, err := parseTemplate(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// ValidateTemplate parses tmpl without executing it
func ValidateTemplate(tmpl string) error {
	_, err := parseTemplate(tmpl)
	return err
}

// ClearTemplateCache drops every cached template
func ClearTemplateCache() {
	templateCache.Range(func(key, _ any) bool {
		templateCache.Delete(key)
		return true
	})
}

func parseTemplate(tmpl string) (*template.Template, error) {
	if cached, ok := templateCache.Load(tmpl); ok {
		return cached.(*template.Template), nil
	}

	for _, directive := range forbiddenDirectives {
		if strings.Contains(tmpl, directive) {
			return nil, fmt.Errorf("template contains forbidden directive: %s", directive)
		}
	}

	t, err := template.New("prompt").
		Option("missingkey=error").
		Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	templateCache.Store(tmpl, t)
	return t, nil
}

// TruncateString truncates a string to maxLen runes (Unicode-safe)
func TruncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
