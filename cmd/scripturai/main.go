package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lamim/scripturai/internal/api"
	"github.com/lamim/scripturai/internal/catalog"
	"github.com/lamim/scripturai/internal/checkpoint"
	"github.com/lamim/scripturai/internal/config"
	"github.com/lamim/scripturai/internal/logging"
	"github.com/lamim/scripturai/internal/metrics"
	"github.com/lamim/scripturai/internal/orchestrator"
	"github.com/lamim/scripturai/internal/storage"
	"github.com/lamim/scripturai/internal/summarizer"
	"github.com/lamim/scripturai/pkg/models"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	envFile    string
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scripturai",
		Short: "ScripturAI - Bible chapter summarizer",
		Long: `ScripturAI summarizes the books of the Bible one chapter at a time,
producing a text summary and an illustration for every chapter. Each run works
on a single book and resumes where the previous run stopped.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		// Unknown arguments print usage instead of failing
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: rejectArgs(func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		}),
	}
	// Applies to every subcommand: a bad flag prints usage and runs nothing
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprintf(cmd.OutOrStdout(), "%v\n\n", err)
		return cmd.Usage()
	})

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to environment file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	summarizeCmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize the next unfinished book",
		Long: `Summarize the chapters of the first book in the catalog that is not yet
complete, starting after the last chapter recorded in the progress files.
Every chapter gets a text summary and an image, stored under the configured
storage backend.`,
		Args: cobra.ArbitraryArgs,
		RunE: rejectArgs(runSummarize),
	}

	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Show completed and in-progress books",
		Long:  "Display the progress files without modifying them",
		Args:  cobra.ArbitraryArgs,
		RunE:  rejectArgs(showProgress),
	}

	showCmd := &cobra.Command{
		Use:   "show <book> <chapter>",
		Short: "Print the stored summary of one chapter",
		Long: `Read the text summary of a chapter back from the configured storage
backend and report whether its image is stored too.`,
		Args: cobra.ArbitraryArgs,
		RunE: showSummary,
	}

	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(showCmd)
	return rootCmd
}

// rejectArgs prints usage instead of running fn when positional arguments are given
func rejectArgs(fn func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Unknown argument: %s\n\n", strings.Join(args, " "))
			return cmd.Usage()
		}
		return fn(cmd, args)
	}
}

func loadEnv() {
	if envFile == "" {
		return
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load env file: %v\n", err)
		}
	} else if verbose {
		fmt.Fprintf(os.Stderr, "Loaded env file: %s\n", envFile)
	}
}

func runSummarize(cmd *cobra.Command, args []string) error {
	loadEnv()

	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if verbose {
		for provider, key := range secrets.APIKeys {
			if key != "" {
				fmt.Fprintf(os.Stderr, "Loaded API key for: %s (length: %d)\n", provider, len(key))
			}
		}
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger, logFile, err := logging.SetupLogger(cfg.Logging.Dir, cfg.Logging.File, logLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		_ = logFile.Sync()
		_ = logFile.Close()
	}()

	logger.Info("ScripturAI starting",
		"version", Version,
		"config", configPath,
		"storage_backend", cfg.Storage.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(logger)
	if cfg.Metrics.Textfile != "" {
		defer func() {
			if err := collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				logger.Warn("Failed to export metrics", "error", err)
			}
		}()
	}

	store, err := newBlobStore(cfg.Storage, secrets, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	textModel := cfg.Models[config.ModelText]
	imageModel := cfg.Models[config.ModelImage]
	chatClient := api.NewClient(textModel, secrets.GetAPIKey(textModel.BaseURL), logger)
	imageClient := api.NewImageClient(imageModel, secrets.GetAPIKey(imageModel.BaseURL), logger)

	textStep := summarizer.NewTextSummarizer(chatClient, store, cfg.PromptTemplates, cfg.Storage.Prefix, logger)
	imageStep := summarizer.NewImageSummarizer(imageClient, store, cfg.PromptTemplates, cfg.Storage.Prefix, logger)

	retryExec := orchestrator.NewRetryExecutor(cfg.BaseDelay(), collector, logger)
	runner := orchestrator.NewRunner(textStep, imageStep, retryExec, cfg.Retry.MaxAttempts, collector, logger)

	books, err := catalog.NewGitHubCatalog(ctx, cfg.Catalog, secrets.GitHubToken, logger)
	if err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}
	loader, err := catalog.NewLoader(logger)
	if err != nil {
		return fmt.Errorf("failed to create book loader: %w", err)
	}

	progress := checkpoint.NewStoreFromConfig(cfg.Progress, logger)

	orch := orchestrator.New(
		orchestrator.Options{
			ExpectedCount: cfg.Catalog.ExpectedCount,
			MaxAttempts:   cfg.Retry.MaxAttempts,
			ShowProgress:  true,
		},
		books, loader, runner, progress, retryExec, collector, logger)

	report, err := orch.Run(ctx)
	history := checkpoint.NewHistoryFromConfig(cfg.Progress, logger)
	if herr := history.Append(report); herr != nil {
		logger.Warn("Failed to record run", "error", herr)
	}
	if err != nil {
		if orchestrator.IsFatal(err) {
			return fmt.Errorf("summarize failed: %w", err)
		}
		logger.Warn("Run interrupted before any work", "error", err)
		return nil
	}

	logger.Info("Run finished",
		"run_id", report.RunID,
		"book", report.Book,
		"outcome", report.Outcome,
		"start_index", report.StartIndex,
		"chapters_completed", report.ChaptersCompleted,
		"total_chapters", report.TotalChapters,
		"duration", report.Duration)

	if report.Outcome == models.OutcomeAborted && ctx.Err() != nil {
		logger.Warn("Interrupted, run again to resume", "book", report.Book)
	}
	logger.Debug("Metrics", "summary", collector.GetMetricsSummary())
	return nil
}

func showProgress(cmd *cobra.Command, args []string) error {
	loadEnv()

	progressCfg := config.Default().Progress
	cfg, _, err := config.Load(configPath)
	switch {
	case err == nil:
		progressCfg = cfg.Progress
	case errors.Is(err, fs.ErrNotExist):
		// No config file: look for progress files in the working directory
	default:
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store := checkpoint.NewStoreFromConfig(progressCfg, logger)
	completed, cursor := store.Snapshot()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Completed books: %d / %d\n", len(completed), catalog.CanonSize)
	for _, book := range completed {
		fmt.Fprintf(out, "  %s\n", book)
	}
	fmt.Fprintln(out)

	totals := make(map[string]int, len(cursor))
	for book := range cursor {
		if canon, ok := catalog.LookupCanon(book); ok {
			totals[book] = canon.Chapters
		}
	}

	statuses := checkpoint.InProgress(cursor, totals)
	if len(statuses) == 0 {
		fmt.Fprintln(out, "No book in progress.")
	} else {
		printInProgress(out, statuses)
	}

	if pending := notStarted(completed, cursor); len(pending) > 0 {
		fmt.Fprintf(out, "\nNot started: %d books, first in canonical order: %s\n", len(pending), pending[0])
	}

	history := checkpoint.NewHistoryFromConfig(progressCfg, logger)
	runs, err := history.Recent(recentRuns)
	if err != nil {
		logger.Warn("Failed to read run history", "error", err)
	}
	if len(runs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Recent runs:")
		for _, r := range runs {
			fmt.Fprintf(out, "  %s  %-16s %-14s %d/%d chapters from index %d (%s)\n",
				r.StartTime.Format("2006-01-02 15:04:05"), displayBook(r.Book), r.Outcome,
				r.ChaptersCompleted, r.TotalChapters, r.StartIndex, r.Duration.Round(time.Second))
		}
	}

	return nil
}

// notStarted lists canonical books that are neither completed nor in progress
func notStarted(completed models.CompletedSet, cursor models.CursorMap) []string {
	seen := make(map[int]bool)
	for _, id := range completed {
		if b, ok := catalog.LookupCanon(id); ok {
			seen[b.Order] = true
		}
	}
	for id := range cursor {
		if b, ok := catalog.LookupCanon(id); ok {
			seen[b.Order] = true
		}
	}

	var names []string
	for _, b := range catalog.Canon() {
		if !seen[b.Order] {
			names = append(names, b.Name)
		}
	}
	return names
}

func showSummary(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) != 2 {
		fmt.Fprintf(out, "Expected <book> <chapter>, got %d arguments\n\n", len(args))
		return cmd.Usage()
	}
	book, chapter := args[0], args[1]

	loadEnv()
	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store, err := newBlobStore(cfg.Storage, secrets, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close storage", "error", err)
		}
	}()

	ctx := cmd.Context()
	textKey := storage.ArtifactKey(cfg.Storage.Prefix, book, chapter, "txt")
	summary, err := store.Get(ctx, textKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Fprintf(out, "No summary stored for %s %s (%s)\n", book, chapter, textKey)
		return nil
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", textKey, err)
	}
	fmt.Fprintf(out, "%s %s\n\n%s\n\n", book, chapter, summary)

	imageKey := storage.ArtifactKey(cfg.Storage.Prefix, book, chapter, "png")
	image, err := store.Get(ctx, imageKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Fprintf(out, "Image: missing (%s)\n", imageKey)
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", imageKey, err)
	default:
		fmt.Fprintf(out, "Image: %s (%d bytes)\n", imageKey, len(image))
	}
	return nil
}

// recentRuns is how many history entries the progress command prints
const recentRuns = 5

func displayBook(book string) string {
	if book == "" {
		return "-"
	}
	return book
}

func printInProgress(out io.Writer, statuses []checkpoint.BookStatus) {
	fmt.Fprintln(out, "In progress:")
	fmt.Fprintf(out, "  %-20s %-12s %s\n", "BOOK", "CHAPTERS", "PROGRESS")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 44))
	for _, s := range statuses {
		total := "?"
		if s.TotalChapters > 0 {
			total = fmt.Sprint(s.TotalChapters)
		}
		fmt.Fprintf(out, "  %-20s %-12s %.1f%%\n", s.Book, fmt.Sprintf("%d/%s", s.ChaptersFinished, total), s.GetProgressPercentage())
	}
}
