package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/lamim/scripturai/internal/checkpoint"
	"github.com/lamim/scripturai/internal/metrics"
	"github.com/lamim/scripturai/pkg/models"
)

// Catalog lists the book files available for processing
type Catalog interface {
	ListFiles(ctx context.Context) ([]models.FileRef, error)
}

// BookLoader downloads and parses one book
type BookLoader interface {
	LoadBook(ctx context.Context, ref models.FileRef) (*models.Book, error)
}

// ChapterProcessor processes one chapter of a book
type ChapterProcessor interface {
	Process(ctx context.Context, book *models.Book, index int) models.Outcome
}

// ProgressStore persists the completed list and the chapter cursor
type ProgressStore interface {
	Load() (models.CompletedSet, models.CursorMap)
	SaveCompleted(models.CompletedSet) error
	SaveCursor(models.CursorMap) error
}

// Options tunes a run
type Options struct {
	ExpectedCount int  // Required catalog size; zero or negative disables the check
	MaxAttempts   int  // Attempts for catalog listing and book loading
	ShowProgress  bool // Render a progress bar on stderr
}

// Orchestrator selects the next unfinished book and processes its chapters
// from the persisted cursor. One book per Run.
type Orchestrator struct {
	opts      Options
	catalog   Catalog
	loader    BookLoader
	processor ChapterProcessor
	store     ProgressStore
	retry     *RetryExecutor
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// New creates an orchestrator. collector may be nil.
func New(
	opts Options,
	catalog Catalog,
	loader BookLoader,
	processor ChapterProcessor,
	store ProgressStore,
	retryExec *RetryExecutor,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		opts:      opts,
		catalog:   catalog,
		loader:    loader,
		processor: processor,
		store:     store,
		retry:     retryExec,
		metrics:   collector,
		logger:    logger,
	}
}

// Run performs one invocation. The error is non-nil only when the catalog
// could not be listed or has the wrong size; every other failure is reported
// through the returned report's Outcome.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunReport, error) {
	report := &models.RunReport{
		RunID:     uuid.NewString(),
		Outcome:   models.OutcomeNothingToDo,
		StartTime: time.Now(),
	}
	logger := o.logger.With("run_id", report.RunID)
	defer func() { report.Duration = time.Since(report.StartTime) }()

	completed, cursor := o.store.Load()

	// SelectingDocument
	var files []models.FileRef
	var listErr error
	ok := o.retry.Run(ctx, metrics.StepList, func(ctx context.Context) error {
		files, listErr = o.catalog.ListFiles(ctx)
		return listErr
	}, o.opts.MaxAttempts)
	if !ok {
		if listErr == nil {
			listErr = ctx.Err()
		}
		return report, fmt.Errorf("failed to list catalog: %w", listErr)
	}

	if len(files) == 0 {
		logger.Warn("Catalog is empty, nothing to do")
		return report, nil
	}
	if o.opts.ExpectedCount > 0 && len(files) != o.opts.ExpectedCount {
		return report, fmt.Errorf("catalog has %d books, expected %d: %w",
			len(files), o.opts.ExpectedCount, models.ErrCardinality)
	}

	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, f.ID())
	}
	logger.Info("Catalog listed",
		"books", len(files),
		"remaining", len(checkpoint.GetPendingBooks(ids, completed)))

	ref, found := selectNext(files, completed, logger)
	if !found {
		logger.Info("All books processed", "completed_books", len(completed))
		return report, nil
	}

	id := ref.ID()
	report.Book = id
	logger = logger.With("book", id)

	var book *models.Book
	ok = o.retry.Run(ctx, metrics.StepLoad, func(ctx context.Context) error {
		var err error
		book, err = o.loader.LoadBook(ctx, ref)
		return err
	}, o.opts.MaxAttempts, "book", id)
	if !ok {
		logger.Error("Failed to load book, exiting without changes", "file", ref.Name)
		report.Outcome = models.OutcomeAborted
		return report, nil
	}

	total := len(book.Chapters)
	report.TotalChapters = total
	if total == 0 {
		logger.Error("Book has no chapters, exiting without changes", "file", ref.Name)
		report.Outcome = models.OutcomeAborted
		return report, nil
	}

	// ResumingCursor
	start, reset := checkpoint.ResumeIndex(cursor, id, total)
	if reset {
		key, p, _ := cursor.Lookup(id)
		logger.Warn("Stored chapter progress is out of range, restarting book",
			"last_chapter_index_finished", p.LastChapterIndexFinished,
			"total_chapters", total)
		delete(cursor, key)
		if err := o.store.SaveCursor(cursor); err != nil {
			logger.Error("Failed to persist chapter progress reset", "error", err)
			report.Outcome = models.OutcomeAborted
			return report, nil
		}
	}
	report.StartIndex = start

	logger.Info("Processing book",
		"title", book.Book,
		"total_chapters", total,
		"start_index", start)

	// ProcessingSubUnits
	bar := o.newProgressBar(total, id)
	_ = bar.Set(start)
	defer func() { _ = bar.Finish() }()

	for i := start; i < total; i++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run cancelled, progress kept", "next_chapter_index", i, "error", err)
			report.Outcome = models.OutcomeAborted
			return report, nil
		}

		if o.processor.Process(ctx, book, i) != models.OutcomeCompleted {
			// DocumentAborted
			logger.Error("Chapter failed, book partially processed",
				"chapter", book.Chapters[i].Chapter,
				"chapter_index", i,
				"chapters_completed", report.ChaptersCompleted)
			report.Outcome = models.OutcomeAborted
			return report, nil
		}

		setCursor(cursor, id, i)
		if err := o.store.SaveCursor(cursor); err != nil {
			logger.Error("Failed to persist chapter progress, stopping",
				"chapter_index", i,
				"error", err)
			report.Outcome = models.OutcomeAborted
			return report, nil
		}

		report.ChaptersCompleted++
		if o.metrics != nil {
			o.metrics.IncrementChapters()
			o.metrics.SetBookProgress(id, i+1, total)
		}
		_ = bar.Add(1)
	}

	// DocumentComplete
	completed = completed.Add(id)
	if err := o.store.SaveCompleted(completed); err != nil {
		logger.Error("Failed to persist completed books", "error", err)
		report.Outcome = models.OutcomeAborted
		return report, nil
	}
	if key, _, ok := cursor.Lookup(id); ok {
		delete(cursor, key)
	}
	if err := o.store.SaveCursor(cursor); err != nil {
		// The next Load drops the stale entry
		logger.Warn("Failed to clear chapter progress for completed book", "error", err)
	}

	if o.metrics != nil {
		o.metrics.IncrementBooks()
	}
	report.Outcome = models.OutcomeCompleted
	logger.Info("Book completed",
		"chapters_this_run", report.ChaptersCompleted,
		"total_chapters", total)
	return report, nil
}

// selectNext returns the first named catalog entry that is not completed
func selectNext(files []models.FileRef, completed models.CompletedSet, logger *slog.Logger) (models.FileRef, bool) {
	for _, f := range files {
		if f.Name == "" {
			logger.Warn("Skipping catalog entry with no name", "download_url", f.DownloadURL)
			continue
		}
		if completed.Contains(f.ID()) {
			continue
		}
		return f, true
	}
	return models.FileRef{}, false
}

// setCursor records index under id, replacing any entry that differs only in case
func setCursor(cursor models.CursorMap, id string, index int) {
	if key, _, ok := cursor.Lookup(id); ok && key != id {
		delete(cursor, key)
	}
	cursor[id] = models.BookProgress{LastChapterIndexFinished: index}
}

func (o *Orchestrator) newProgressBar(total int, book string) *progressbar.ProgressBar {
	if !o.opts.ShowProgress {
		return progressbar.DefaultSilent(int64(total), book)
	}
	return progressbar.Default(int64(total), book)
}

// IsFatal reports whether a Run error should end the process with a failure status
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}
