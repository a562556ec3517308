package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lamim/scripturai/internal/config"
	"github.com/lamim/scripturai/pkg/models"
)

// ImageClient generates images through the OpenAI images endpoint
type ImageClient struct {
	client     openai.Client
	httpClient *http.Client
	modelCfg   config.ModelConfig
	logger     *slog.Logger
}

// NewImageClient creates an image client for a single configured model.
// The SDK's own retries are disabled; retries belong to the caller.
func NewImageClient(modelCfg config.ModelConfig, apiKey string, logger *slog.Logger) *ImageClient {
	httpClient := &http.Client{Timeout: modelCfg.HTTPTimeout()}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if modelCfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(modelCfg.BaseURL))
	}

	return &ImageClient{
		client:     openai.NewClient(opts...),
		httpClient: httpClient,
		modelCfg:   modelCfg,
		logger:     logger,
	}
}

// Generate renders one image for prompt and returns its encoded bytes
func (c *ImageClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	params := openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(c.modelCfg.ModelName),
		Size:   openai.ImageGenerateParamsSize(c.modelCfg.ImageSize),
		N:      openai.Int(1),
	}
	if c.modelCfg.ImageQuality != "" {
		params.Quality = openai.ImageGenerateParamsQuality(c.modelCfg.ImageQuality)
	}

	c.logger.Debug("Image request", "model", c.modelCfg.ModelName, "size", c.modelCfg.ImageSize)

	resp, err := c.client.Images.Generate(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, mapOpenAIError(err)
	}

	if resp == nil || len(resp.Data) == 0 {
		return nil, fmt.Errorf("no image returned in response: %w", models.ErrTransient)
	}

	image := resp.Data[0]
	if image.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(image.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w: %v", models.ErrTransient, err)
		}
		return data, nil
	}
	if image.URL != "" {
		return c.download(ctx, image.URL)
	}

	return nil, fmt.Errorf("image response has neither data nor url: %w", models.ErrTransient)
}

// download fetches an image that the endpoint returned by URL instead of inline
func (c *ImageClient) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create image download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("image download failed: %v", err), Retryable: true}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close image response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			Message:    "image download failed",
			StatusCode: resp.StatusCode,
			Retryable:  isStatusCodeRetryable(resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w: %v", models.ErrTransient, err)
	}
	return data, nil
}

// mapOpenAIError converts SDK errors into APIError so retry decisions match the chat client
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = "image generation failed"
		}
		return &APIError{
			Message:    msg,
			StatusCode: apiErr.StatusCode,
			Type:       apiErr.Type,
			Code:       apiErr.Code,
			Retryable:  isStatusCodeRetryable(apiErr.StatusCode),
		}
	}
	// Transport-level failures never reached the API
	return &APIError{Message: err.Error(), Retryable: true}
}
