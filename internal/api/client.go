package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lamim/scripturai/internal/config"
	"github.com/lamim/scripturai/pkg/models"
)

// Client sends chat completion requests to one OpenAI-compatible model endpoint.
// It makes exactly one request per call; retries belong to the caller.
type Client struct {
	httpClient *http.Client
	modelCfg   config.ModelConfig
	apiKey     string
	logger     *slog.Logger
}

// NewClient creates a chat client for a single configured model
func NewClient(modelCfg config.ModelConfig, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: modelCfg.HTTPTimeout(),
		},
		modelCfg: modelCfg,
		apiKey:   apiKey,
		logger:   logger,
	}
}

// ModelName returns the configured model name
func (c *Client) ModelName() string {
	return c.modelCfg.ModelName
}

// ChatCompletion sends a chat completion request
func (c *Client) ChatCompletion(ctx context.Context, messages []Message) (*ChatCompletionResponse, error) {
	req := ChatCompletionRequest{
		Model:       c.modelCfg.ModelName,
		Messages:    messages,
		Temperature: c.modelCfg.Temperature,
		TopP:        c.modelCfg.TopP,
		MaxTokens:   c.modelCfg.MaxOutputTokens,
		N:           1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.modelCfg.BaseURL, "/") + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		c.logger.Debug("API request", "endpoint", endpoint, "has_key", true, "model", c.modelCfg.ModelName)
	} else {
		c.logger.Warn("API request without key", "endpoint", endpoint)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &APIError{
			Message:    fmt.Sprintf("request failed: %v", err),
			StatusCode: 0,
			Retryable:  true,
		}
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w: %v", models.ErrTransient, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, newAPIError(httpResp.StatusCode, respBody)
	}

	var resp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w: %v", models.ErrTransient, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned in response: %w", models.ErrTransient)
	}

	c.logger.Debug("API response",
		"model", resp.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"completion_tokens", resp.Usage.CompletionTokens)

	return &resp, nil
}

func newAPIError(statusCode int, body []byte) *APIError {
	retryable := isStatusCodeRetryable(statusCode)

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		code := ""
		if errResp.Error.Code != nil {
			code = fmt.Sprint(errResp.Error.Code)
		}
		return &APIError{
			Message:    errResp.Error.Message,
			StatusCode: statusCode,
			Type:       errResp.Error.Type,
			Code:       code,
			Retryable:  retryable,
		}
	}

	return &APIError{
		Message:    fmt.Sprintf("API request failed with status %d: %s", statusCode, truncateBody(body)),
		StatusCode: statusCode,
		Retryable:  retryable,
	}
}

func truncateBody(body []byte) string {
	const maxLen = 512
	if len(body) <= maxLen {
		return string(body)
	}
	return string(body[:maxLen]) + "..."
}
