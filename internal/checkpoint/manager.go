package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/lamim/scripturai/internal/config"
	"github.com/lamim/scripturai/pkg/models"
)

// Store persists the completed-books list and the per-book chapter cursor as
// two JSON files. Every save rewrites its whole file through a temp file and a rename.
type Store struct {
	completedPath string
	cursorPath    string
	logger        *slog.Logger
	writeMu       sync.Mutex // Protects concurrent disk writes
}

// NewStore creates a store for the two progress files inside dir
func NewStore(dir, completedFile, cursorFile string, logger *slog.Logger) *Store {
	return &Store{
		completedPath: filepath.Join(dir, completedFile),
		cursorPath:    filepath.Join(dir, cursorFile),
		logger:        logger,
	}
}

// NewStoreFromConfig creates a store from the [progress] section
func NewStoreFromConfig(cfg config.ProgressConfig, logger *slog.Logger) *Store {
	return NewStore(cfg.Dir, cfg.CompletedFile, cfg.CursorFile, logger)
}

// NewHistoryFromConfig creates the run history from the [progress] section
func NewHistoryFromConfig(cfg config.ProgressConfig, logger *slog.Logger) *History {
	return NewHistory(cfg.Dir, cfg.HistoryFile, logger)
}

// CompletedPath returns the completed-books file location
func (s *Store) CompletedPath() string { return s.completedPath }

// CursorPath returns the chapter cursor file location
func (s *Store) CursorPath() string { return s.cursorPath }

// Load reads both progress files. A missing file yields an empty structure; a
// corrupt one yields an empty structure and a warning. Load never fails.
func (s *Store) Load() (models.CompletedSet, models.CursorMap) {
	completed, cursor := s.Snapshot()

	// A crash between the two promotion writes leaves a book in both files.
	// The completed list is the truth; drop the stale cursor.
	var repaired []string
	for book := range cursor {
		if completed.Contains(book) {
			delete(cursor, book)
			repaired = append(repaired, book)
		}
	}
	if len(repaired) > 0 {
		s.logger.Warn("Removed chapter progress for completed books", "books", repaired)
		if err := s.SaveCursor(cursor); err != nil {
			s.logger.Warn("Failed to persist repaired chapter progress", "error", err)
		}
	}

	s.logger.Info("Progress loaded",
		"completed_books", len(completed),
		"in_progress_books", len(cursor))

	return completed, cursor
}

// Snapshot reads both progress files like Load but never writes
func (s *Store) Snapshot() (models.CompletedSet, models.CursorMap) {
	completed := models.CompletedSet{}
	if err := s.readJSON(s.completedPath, &completed); err != nil {
		s.logger.Warn("Completed books file unusable, starting with no completed books",
			"path", s.completedPath, "error", err)
		completed = models.CompletedSet{}
	}
	if completed == nil {
		completed = models.CompletedSet{}
	}

	cursor := models.CursorMap{}
	if err := s.readJSON(s.cursorPath, &cursor); err != nil {
		s.logger.Warn("Chapter progress file unusable, starting with no chapter progress",
			"path", s.cursorPath, "error", err)
		cursor = models.CursorMap{}
	}
	if cursor == nil {
		cursor = models.CursorMap{}
	}

	return completed, cursor
}

// SaveCompleted rewrites the completed-books file
func (s *Store) SaveCompleted(completed models.CompletedSet) error {
	if completed == nil {
		completed = models.CompletedSet{}
	}
	data, err := json.Marshal(completed)
	if err != nil {
		return fmt.Errorf("failed to marshal completed books: %w", err)
	}
	return s.writeAtomic(s.completedPath, data)
}

// SaveCursor rewrites the chapter progress file
func (s *Store) SaveCursor(cursor models.CursorMap) error {
	if cursor == nil {
		cursor = models.CursorMap{}
	}
	data, err := json.MarshalIndent(cursor, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chapter progress: %w", err)
	}
	return s.writeAtomic(s.cursorPath, data)
}

// readJSON decodes path into v. A missing file leaves v untouched and is not an error.
func (s *Store) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("Progress file not found", "path", path)
			return nil
		}
		return fmt.Errorf("%w: %v", models.ErrCorruption, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrCorruption, err)
	}
	return nil
}

// writeAtomic writes data to a temp file, syncs it, then renames it over path
func (s *Store) writeAtomic(path string, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create progress directory: %w", err)
	}

	tempPath := path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp progress file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write temp progress file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to sync temp progress file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to close temp progress file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename progress file: %w", err)
	}

	s.logger.Debug("Progress saved", "path", path, "bytes", len(data))
	return nil
}
