package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lamim/scripturai/pkg/models"
)

// UserAgent identifies book downloads
const UserAgent = "ScripturAI"

// MaxBookSize bounds a single book download (Psalms is under 1MB)
const MaxBookSize = 16 * 1024 * 1024

//go:embed book.schema.json
var bookSchemaJSON []byte

// Loader downloads and validates book files
type Loader struct {
	httpClient *http.Client
	schema     *jsonschema.Schema
	logger     *slog.Logger
}

// NewLoader compiles the book schema and returns a loader
func NewLoader(logger *slog.Logger) (*Loader, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("book.schema.json", bytes.NewReader(bookSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to load book schema: %w", err)
	}
	schema, err := compiler.Compile("book.schema.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile book schema: %w", err)
	}

	return &Loader{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		schema:     schema,
		logger:     logger.With("component", "loader"),
	}, nil
}

// LoadBook downloads ref and parses it into a Book.
// Malformed payloads fail with models.ErrData; network and server failures are transient.
func (l *Loader) LoadBook(ctx context.Context, ref models.FileRef) (*models.Book, error) {
	if ref.Name == "" || ref.DownloadURL == "" {
		return nil, fmt.Errorf("file reference missing name or download url: %w", models.ErrData)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.DownloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w: %v", ref.Name, models.ErrData, err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("download %s: %v: %w", ref.Name, err, models.ErrTransient)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			l.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBookSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", ref.Name, err, models.ErrTransient)
	}

	if resp.StatusCode != http.StatusOK {
		kind := models.ErrPermanent
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = models.ErrTransient
		}
		return nil, fmt.Errorf("download %s: status %d: %w", ref.Name, resp.StatusCode, kind)
	}
	if len(body) > MaxBookSize {
		return nil, fmt.Errorf("%s exceeds %d bytes: %w", ref.Name, MaxBookSize, models.ErrData)
	}

	book, err := l.ParseBook(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref.Name, err)
	}

	l.logger.Debug("Book loaded", "file", ref.Name, "book", book.Book, "chapters", len(book.Chapters))
	return book, nil
}

// ParseBook validates data against the book schema and decodes it
func (l *Loader) ParseBook(data []byte) (*models.Book, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w: %v", models.ErrData, err)
	}
	if err := l.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("does not match book schema: %w: %v", models.ErrData, err)
	}

	var book models.Book
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("invalid book: %w: %v", models.ErrData, err)
	}
	if strings.TrimSpace(book.Book) == "" {
		return nil, fmt.Errorf("book name is empty: %w", models.ErrData)
	}
	if err := checkChapterOrder(book.Chapters); err != nil {
		return nil, err
	}

	return &book, nil
}

// checkChapterOrder requires numeric chapter labels to count up by one.
// Books with any non-numeric label are accepted in file order.
func checkChapterOrder(chapters []models.Chapter) error {
	numbers := make([]int, 0, len(chapters))
	for _, ch := range chapters {
		n, err := strconv.Atoi(strings.TrimSpace(ch.Chapter))
		if err != nil {
			return nil
		}
		numbers = append(numbers, n)
	}

	for i := 1; i < len(numbers); i++ {
		if numbers[i] != numbers[i-1]+1 {
			return fmt.Errorf("chapter %d follows chapter %d: %w", numbers[i], numbers[i-1], models.ErrData)
		}
	}
	return nil
}
