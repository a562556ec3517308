package checkpoint

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/lamim/scripturai/pkg/models"
)

// History appends one JSON line per run report
type History struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewHistory creates a run history at dir/file
func NewHistory(dir, file string, logger *slog.Logger) *History {
	return &History{
		path:   filepath.Join(dir, file),
		logger: logger,
	}
}

// Path returns the history file location
func (h *History) Path() string { return h.path }

// Append writes report as a single line
func (h *History) Append(report *models.RunReport) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	file, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write run report: %w", err)
	}
	if err := file.Sync(); err != nil {
		h.logger.Warn("Failed to sync history file", "error", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close history file: %w", err)
	}

	h.logger.Debug("Run recorded", "path", h.path, "run_id", report.RunID)
	return nil
}

// Recent returns up to n of the latest reports, oldest first. Unparseable
// lines are skipped; a missing file yields no reports.
func (h *History) Recent(n int) ([]models.RunReport, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	file, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var reports []models.RunReport
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r models.RunReport
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			h.logger.Warn("Skipping unreadable history line", "error", err)
			continue
		}
		reports = append(reports, r)
		if n > 0 && len(reports) > n {
			reports = reports[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return reports, fmt.Errorf("failed to read history file: %w", err)
	}
	return reports, nil
}
