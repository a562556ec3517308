package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/lamim/scripturai/internal/config"
	"github.com/lamim/scripturai/pkg/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testModelConfig(baseURL string) config.ModelConfig {
	return config.ModelConfig{
		BaseURL:            baseURL,
		ModelName:          "test-model",
		Temperature:        0.7,
		TopP:               1.0,
		MaxOutputTokens:    100,
		HTTPTimeoutSeconds: 5,
	}
}

func TestChatCompletion_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header 'Bearer test-key', got '%s'", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type 'application/json', got '%s'", r.Header.Get("Content-Type"))
		}

		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("Expected model test-model, got %s", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Errorf("Expected 2 messages, got %d", len(req.Messages))
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{
			"id": "test-123",
			"model": "test-model",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "In the beginning God created the heaven and the earth."},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer server.Close()

	client := NewClient(testModelConfig(server.URL+"/"), "test-key", quietLogger())

	resp, err := client.ChatCompletion(context.Background(), []Message{
		{Role: "system", Content: "You summarize."},
		{Role: "user", Content: "Genesis 1"},
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if resp.Content() != "In the beginning God created the heaven and the earth." {
		t.Errorf("Unexpected content: %s", resp.Content())
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("Expected 15 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestChatCompletion_MakesSingleRequest(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer server.Close()

	client := NewClient(testModelConfig(server.URL), "test-key", quietLogger())

	_, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if requests != 1 {
		t.Errorf("Expected exactly 1 request, got %d", requests)
	}
	if !errors.Is(err, models.ErrTransient) {
		t.Errorf("Expected transient error, got %v", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if apiErr.Message != "overloaded" || apiErr.Type != "server_error" {
		t.Errorf("Unexpected error fields: %+v", apiErr)
	}
}

func TestChatCompletion_ErrorKinds(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{"rate limit", http.StatusTooManyRequests, true},
		{"internal error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"gateway timeout", http.StatusGatewayTimeout, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
		{"not found", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("plain text failure"))
			}))
			defer server.Close()

			client := NewClient(testModelConfig(server.URL), "", quietLogger())
			_, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}})
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if got := errors.Is(err, models.ErrTransient); got != tt.wantTransient {
				t.Errorf("errors.Is(ErrTransient) = %v, want %v (err: %v)", got, tt.wantTransient, err)
			}
			if got := errors.Is(err, models.ErrPermanent); got == tt.wantTransient {
				t.Errorf("errors.Is(ErrPermanent) = %v, want %v", got, !tt.wantTransient)
			}
			if got := models.Retryable(err); got != tt.wantTransient {
				t.Errorf("Retryable = %v, want %v", got, tt.wantTransient)
			}
		})
	}
}

func TestChatCompletion_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": "x", "choices": []}`))
	}))
	defer server.Close()

	client := NewClient(testModelConfig(server.URL), "", quietLogger())
	_, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if !errors.Is(err, models.ErrTransient) {
		t.Errorf("Expected transient error for empty choices, got %v", err)
	}
}

func TestChatCompletion_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(testModelConfig(url), "", quietLogger())
	_, err := client.ChatCompletion(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if !errors.Is(err, models.ErrTransient) {
		t.Errorf("Expected transient error for unreachable server, got %v", err)
	}
}

func TestChatCompletion_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(testModelConfig(server.URL), "", quietLogger())
	_, err := client.ChatCompletion(ctx, []Message{{Role: "user", Content: "hi"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Message: "boom", StatusCode: 500}
	if err.Error() != "API error (status 500): boom" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	err = &APIError{Message: "dial failed"}
	if err.Error() != "API error: dial failed" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}
