package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/lamim/scripturai/internal/metrics"
	"github.com/lamim/scripturai/pkg/models"
)

// ChapterStep is one generation step applied to a chapter
type ChapterStep interface {
	Summarize(ctx context.Context, book string, chapter *models.Chapter) error
}

// Runner processes one chapter: the text summary, then the image summary
type Runner struct {
	text        ChapterStep
	image       ChapterStep
	retry       *RetryExecutor
	maxAttempts int
	metrics     *metrics.Collector
	logger      *slog.Logger
}

// NewRunner creates a chapter runner. collector may be nil.
func NewRunner(text, image ChapterStep, retryExec *RetryExecutor, maxAttempts int, collector *metrics.Collector, logger *slog.Logger) *Runner {
	return &Runner{
		text:        text,
		image:       image,
		retry:       retryExec,
		maxAttempts: maxAttempts,
		metrics:     collector,
		logger:      logger.With("component", "runner"),
	}
}

// Process runs both steps for book.Chapters[index]. It returns OutcomeCompleted
// only when both succeeded; the image step is skipped when the text step failed.
func (r *Runner) Process(ctx context.Context, book *models.Book, index int) models.Outcome {
	chapter := &book.Chapters[index]
	start := time.Now()

	textStart := time.Now()
	ok := r.runStep(ctx, metrics.StepText, r.text, book.Book, chapter, index)
	textDuration := time.Since(textStart)
	if !ok {
		return models.OutcomeAborted
	}

	imageStart := time.Now()
	ok = r.runStep(ctx, metrics.StepImage, r.image, book.Book, chapter, index)
	imageDuration := time.Since(imageStart)
	if !ok {
		return models.OutcomeAborted
	}

	r.logger.Info("Chapter processing breakdown",
		"book", book.Book,
		"chapter", chapter.Chapter,
		"text_ms", textDuration.Milliseconds(),
		"image_ms", imageDuration.Milliseconds(),
		"total_ms", time.Since(start).Milliseconds())

	return models.OutcomeCompleted
}

func (r *Runner) runStep(ctx context.Context, step string, s ChapterStep, book string, chapter *models.Chapter, index int) bool {
	start := time.Now()
	ok := r.retry.Run(ctx, step, func(ctx context.Context) error {
		return s.Summarize(ctx, book, chapter)
	}, r.maxAttempts, "book", book, "chapter", chapter.Chapter, "chapter_index", index)

	if r.metrics != nil {
		r.metrics.RecordStep(step, time.Since(start), ok)
	}
	return ok
}
