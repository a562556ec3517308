package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lamim/scripturai/internal/api"
	"github.com/lamim/scripturai/internal/config"
	"github.com/lamim/scripturai/internal/storage"
	"github.com/lamim/scripturai/internal/util"
	"github.com/lamim/scripturai/pkg/models"
)

// ChatClient is the subset of api.Client used for text summaries
type ChatClient interface {
	ChatCompletion(ctx context.Context, messages []api.Message) (*api.ChatCompletionResponse, error)
}

// ImageGenerator is the subset of api.ImageClient used for image summaries
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// TextSummarizer produces a prose summary for one chapter and stores it
type TextSummarizer struct {
	chat      ChatClient
	store     storage.BlobStore
	templates config.PromptTemplates
	prefix    string
	logger    *slog.Logger
}

// NewTextSummarizer creates a text summarizer
func NewTextSummarizer(chat ChatClient, store storage.BlobStore, templates config.PromptTemplates, prefix string, logger *slog.Logger) *TextSummarizer {
	return &TextSummarizer{
		chat:      chat,
		store:     store,
		templates: templates,
		prefix:    prefix,
		logger:    logger.With("component", "text_summarizer"),
	}
}

// Summarize generates the chapter summary, sets chapter.Summary and stores it.
// chapter.Summary is only updated once the model returned usable text.
func (s *TextSummarizer) Summarize(ctx context.Context, book string, chapter *models.Chapter) error {
	if strings.TrimSpace(book) == "" || chapter == nil || strings.TrimSpace(chapter.Chapter) == "" {
		return fmt.Errorf("text summary needs a book name and chapter label: %w", models.ErrPrecondition)
	}

	key := storage.ArtifactKey(s.prefix, book, chapter.Chapter, "txt")
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	data := map[string]any{
		"Book":    book,
		"Chapter": chapter.Chapter,
		"Verses":  FormatVerses(chapter.Verses),
	}

	systemPrompt, err := util.RenderTemplate(s.templates.TextSystemPrompt, data)
	if err != nil {
		return fmt.Errorf("failed to render system prompt: %w: %v", models.ErrPrecondition, err)
	}
	userPrompt, err := util.RenderTemplate(s.templates.TextSummary, data)
	if err != nil {
		return fmt.Errorf("failed to render summary template: %w: %v", models.ErrPrecondition, err)
	}

	resp, err := s.chat.ChatCompletion(ctx, []api.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return err
	}

	raw := resp.Content()
	if len(resp.Choices) > 0 {
		if ok, reason := checkFinishReason(resp.Choices[0].FinishReason); !ok {
			return fmt.Errorf("summary for %s %s unusable: %s: %w", book, chapter.Chapter, reason, models.ErrTransient)
		}
		if resp.Choices[0].FinishReason == "length" {
			s.logger.Warn("Summary hit the token limit", "book", book, "chapter", chapter.Chapter)
		}
	}
	summary := util.CleanSummary(raw)

	s.logger.Debug("Received summary",
		"book", book,
		"chapter", chapter.Chapter,
		"length", len(summary),
		"had_think_tags", util.ContainsThinkTags(raw),
		"first_200_chars", util.TruncateString(summary, 200))

	if summary == "" {
		s.logger.Warn("Model returned no usable summary",
			"book", book,
			"chapter", chapter.Chapter,
			"raw_length", len(raw))
		return fmt.Errorf("empty summary for %s %s: %w", book, chapter.Chapter, models.ErrTransient)
	}

	if reason := refusalReason(summary); reason != "" {
		s.logger.Warn("Model refused to summarize",
			"book", book,
			"chapter", chapter.Chapter,
			"reason", reason)
		return fmt.Errorf("refusal for %s %s: %w", book, chapter.Chapter, models.ErrTransient)
	}

	if err := s.store.Put(ctx, key, []byte(summary), storage.ContentTypeText); err != nil {
		return fmt.Errorf("failed to store summary %s: %w", key, err)
	}

	chapter.Summary = summary
	s.logger.Info("Summary stored", "book", book, "chapter", chapter.Chapter, "key", key)
	return nil
}

// FormatVerses renders verses one per line as "<verse> <text>"
func FormatVerses(verses []models.Verse) string {
	var b strings.Builder
	for i, v := range verses {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(v.Verse)
		b.WriteByte(' ')
		b.WriteString(v.Text)
	}
	return b.String()
}

// ImageSummarizer illustrates a summarized chapter and stores the image
type ImageSummarizer struct {
	images    ImageGenerator
	store     storage.BlobStore
	templates config.PromptTemplates
	prefix    string
	logger    *slog.Logger
}

// NewImageSummarizer creates an image summarizer
func NewImageSummarizer(images ImageGenerator, store storage.BlobStore, templates config.PromptTemplates, prefix string, logger *slog.Logger) *ImageSummarizer {
	return &ImageSummarizer{
		images:    images,
		store:     store,
		templates: templates,
		prefix:    prefix,
		logger:    logger.With("component", "image_summarizer"),
	}
}

// Summarize generates and stores the chapter image. It requires the text summary.
func (s *ImageSummarizer) Summarize(ctx context.Context, book string, chapter *models.Chapter) error {
	if chapter == nil || strings.TrimSpace(chapter.Summary) == "" {
		return fmt.Errorf("image summary needs a text summary: %w", models.ErrPrecondition)
	}

	key := storage.ArtifactKey(s.prefix, book, chapter.Chapter, "png")
	if err := storage.ValidateKey(key); err != nil {
		return err
	}

	prompt, err := util.RenderTemplate(s.templates.ImageSummary, map[string]any{
		"Book":    book,
		"Chapter": chapter.Chapter,
		"Summary": chapter.Summary,
	})
	if err != nil {
		return fmt.Errorf("failed to render image template: %w: %v", models.ErrPrecondition, err)
	}

	image, err := s.images.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	if len(image) == 0 {
		return fmt.Errorf("empty image for %s %s: %w", book, chapter.Chapter, models.ErrTransient)
	}

	if err := s.store.Put(ctx, key, image, storage.ContentTypePNG); err != nil {
		return fmt.Errorf("failed to store image %s: %w", key, err)
	}

	s.logger.Info("Image stored", "book", book, "chapter", chapter.Chapter, "key", key, "bytes", len(image))
	return nil
}
