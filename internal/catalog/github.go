package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/lamim/scripturai/internal/config"
	"github.com/lamim/scripturai/pkg/models"
)

// DefaultTimeout is the default HTTP request timeout
const DefaultTimeout = 30 * time.Second

// GitHubCatalog lists book files in a GitHub repository directory
type GitHubCatalog struct {
	gh     *gh.Client
	owner  string
	repo   string
	cfg    config.CatalogConfig
	logger *slog.Logger
}

// NewGitHubCatalog creates a catalog client. token may be empty for public repositories.
func NewGitHubCatalog(ctx context.Context, cfg config.CatalogConfig, token string, logger *slog.Logger) (*GitHubCatalog, error) {
	owner, repo, ok := strings.Cut(cfg.Repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid repository %q, expected 'owner/name'", cfg.Repository)
	}

	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
		httpClient.Timeout = DefaultTimeout
	} else {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	client := gh.NewClient(httpClient)
	if cfg.APIBaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.APIBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid api_base_url: %w", err)
		}
		client.BaseURL = base
	}

	return &GitHubCatalog{
		gh:     client,
		owner:  owner,
		repo:   repo,
		cfg:    cfg,
		logger: logger.With("component", "catalog"),
	}, nil
}

// ListFiles returns the book files in deterministic order
func (c *GitHubCatalog) ListFiles(ctx context.Context) ([]models.FileRef, error) {
	opts := &gh.RepositoryContentGetOptions{Ref: c.cfg.Ref}
	file, dir, _, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, c.cfg.Path, opts)
	if err != nil {
		return nil, wrapError(err, "list contents")
	}
	if file != nil {
		return nil, fmt.Errorf("catalog path %q is a file, not a directory: %w", c.cfg.Path, models.ErrPermanent)
	}

	entries := make([]models.FileRef, 0, len(dir))
	for _, item := range dir {
		if item.GetType() != "file" {
			continue
		}
		entries = append(entries, models.FileRef{
			Name:        item.GetName(),
			DownloadURL: item.GetDownloadURL(),
		})
	}

	files := FilterAndSort(entries, c.cfg)
	c.logger.Debug("Catalog listed",
		"repository", c.cfg.Repository,
		"entries", len(dir),
		"files", len(files))
	return files, nil
}

// FilterAndSort keeps entries with a configured extension, drops excluded
// names (case-insensitive) and orders the rest by cfg.Order
func FilterAndSort(entries []models.FileRef, cfg config.CatalogConfig) []models.FileRef {
	var files []models.FileRef
	for _, e := range entries {
		if !hasExtension(e.Name, cfg.Extensions) || isExcluded(e.Name, cfg.Exclude) {
			continue
		}
		files = append(files, e)
	}

	if cfg.Order == "name" {
		sort.SliceStable(files, func(i, j int) bool { return files[i].Name < files[j].Name })
		return files
	}

	sort.SliceStable(files, func(i, j int) bool {
		bi, okI := LookupCanon(files[i].ID())
		bj, okJ := LookupCanon(files[j].ID())
		switch {
		case okI && okJ:
			return bi.Order < bj.Order
		case okI != okJ:
			// Known books first
			return okI
		default:
			return files[i].Name < files[j].Name
		}
	})
	return files
}

func hasExtension(name string, extensions []string) bool {
	ext := path.Ext(name)
	for _, e := range extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func isExcluded(name string, exclude []string) bool {
	for _, x := range exclude {
		if strings.EqualFold(name, x) {
			return true
		}
	}
	return false
}

// wrapError converts go-github errors to the pipeline's error kinds
func wrapError(err error, operation string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Errorf("%s: rate limited until %s: %w", operation, rateLimitErr.Rate.Reset.Time, models.ErrTransient)
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%s: secondary rate limit: %w", operation, models.ErrTransient)
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		kind := models.ErrPermanent
		if status := ghErr.Response.StatusCode; status == http.StatusTooManyRequests || status >= 500 {
			kind = models.ErrTransient
		}
		return fmt.Errorf("%s: status %d: %s: %w", operation, ghErr.Response.StatusCode, ghErr.Message, kind)
	}

	return fmt.Errorf("%s: %v: %w", operation, err, models.ErrTransient)
}
