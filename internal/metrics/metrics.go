package metrics

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Step names used as label values
const (
	StepText  = "text_summary"
	StepImage = "image_summary"
	StepLoad  = "load_book"
	StepList  = "list_catalog"
)

// Collector records pipeline metrics on its own registry
type Collector struct {
	logger   *slog.Logger
	registry *prometheus.Registry

	stepDuration      *prometheus.HistogramVec
	stepTotal         *prometheus.CounterVec
	retryAttempts     *prometheus.CounterVec
	chaptersCompleted prometheus.Counter
	booksCompleted    prometheus.Counter
	bookProgress      *prometheus.GaugeVec
}

// NewCollector creates a collector with a fresh registry
func NewCollector(logger *slog.Logger) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		logger:   logger,
		registry: reg,
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scripturai_step_duration_seconds",
				Help:    "Step duration in seconds, including retries",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~500s
			},
			[]string{"step", "status"},
		),
		stepTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scripturai_steps_total",
				Help: "Total number of steps run",
			},
			[]string{"step", "status"}, // status: "success"/"error"
		),
		retryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scripturai_retry_attempts_total",
				Help: "Failed attempts by operation",
			},
			[]string{"operation"},
		),
		chaptersCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "scripturai_chapters_completed_total",
			Help: "Chapters whose text and image summaries were stored",
		}),
		booksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "scripturai_books_completed_total",
			Help: "Books promoted to the completed list",
		}),
		bookProgress: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "scripturai_book_progress_ratio",
				Help: "Fraction of chapters finished for the current book",
			},
			[]string{"book"},
		),
	}
}

// RecordStep records one step's duration and outcome
func (c *Collector) RecordStep(step string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.stepDuration.WithLabelValues(step, status).Observe(duration.Seconds())
	c.stepTotal.WithLabelValues(step, status).Inc()
}

// RecordFailedAttempt counts one failed attempt of an operation
func (c *Collector) RecordFailedAttempt(operation string) {
	c.retryAttempts.WithLabelValues(operation).Inc()
}

// IncrementChapters counts a completed chapter
func (c *Collector) IncrementChapters() {
	c.chaptersCompleted.Inc()
}

// IncrementBooks counts a completed book
func (c *Collector) IncrementBooks() {
	c.booksCompleted.Inc()
}

// SetBookProgress sets the finished fraction for a book
func (c *Collector) SetBookProgress(book string, finished, total int) {
	if total <= 0 {
		return
	}
	c.bookProgress.WithLabelValues(book).Set(float64(finished) / float64(total))
}

// WriteTextfile writes the registry in the node-exporter textfile format
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	c.logger.Debug("Metrics written", "path", path)
	return nil
}

// GetMetricsSummary returns a human-readable summary of the counters
func (c *Collector) GetMetricsSummary() string {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Sprintf("metrics unavailable: %v", err)
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
