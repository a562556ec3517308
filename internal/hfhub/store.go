package hfhub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lamim/scripturai/internal/storage"
	"github.com/lamim/scripturai/pkg/models"
)

const (
	// DefaultEndpoint is the public Hugging Face Hub
	DefaultEndpoint = "https://huggingface.co"
	// DefaultTimeout is the default timeout for general API operations
	DefaultTimeout = 120 * time.Second
	// LFSUploadTimeout is the timeout for LFS object uploads
	LFSUploadTimeout = 600 * time.Second
	// CommitTimeout is the timeout for commit operations
	CommitTimeout = 300 * time.Second
)

// Options configures a Store
type Options struct {
	Endpoint string // Defaults to DefaultEndpoint
	RepoID   string // "owner/name" of a dataset repository
	Branch   string // Defaults to "main"
	Token    string
	Private  bool // Visibility used when the repository has to be created
}

// Store keeps chapter artifacts as files in a Hugging Face dataset repository.
// Each Put is its own commit.
type Store struct {
	endpoint     string
	repoID       string
	branch       string
	token        string
	private      bool
	httpClient   *http.Client // For general operations
	lfsClient    *http.Client // For LFS batch and uploads
	commitClient *http.Client // For commit operations
	logger       *slog.Logger

	repoMu    sync.Mutex
	repoReady bool
}

// NewStore creates a Hugging Face Hub store
func NewStore(opts Options, logger *slog.Logger) (*Store, error) {
	parts := strings.Split(opts.RepoID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid repo_id format, expected 'owner/name', got '%s'", opts.RepoID)
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}

	return &Store{
		endpoint:     strings.TrimRight(opts.Endpoint, "/"),
		repoID:       opts.RepoID,
		branch:       opts.Branch,
		token:        opts.Token,
		private:      opts.Private,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
		lfsClient:    &http.Client{Timeout: LFSUploadTimeout},
		commitClient: &http.Client{Timeout: CommitTimeout},
		logger:       logger.With("component", "hf_store"),
	}, nil
}

// RepoURL returns the browsable URL of the dataset repository
func (s *Store) RepoURL() string {
	return fmt.Sprintf("%s/datasets/%s", s.endpoint, s.repoID)
}

// Put commits data at key, replacing any previous version
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := storage.ValidateKey(key); err != nil {
		return err
	}
	if err := s.ensureRepo(ctx); err != nil {
		return fmt.Errorf("failed to ensure repository: %w", err)
	}

	op := PrepareOperation(key, data, contentType)

	if op.LFSFile != nil {
		uploads, err := s.PreuploadLFS(ctx, []LFSPointer{{OID: op.LFSFile.SHA256, Size: op.LFSFile.Size, Path: key}})
		if err != nil {
			return fmt.Errorf("failed to preupload LFS: %w", err)
		}
		if info, ok := uploads[op.LFSFile.SHA256]; ok {
			if err := s.UploadLFSObject(ctx, info, data); err != nil {
				return fmt.Errorf("failed to upload LFS object %s: %w", key, err)
			}
		}
	}

	if err := s.createCommit(ctx, []CommitOperation{*op}, "Add "+key); err != nil {
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}

	s.logger.Debug("Object stored", "key", key, "bytes", len(data), "lfs", op.LFSFile != nil)
	return nil
}

// Get downloads the file at key from the configured branch
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := storage.ValidateKey(key); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/datasets/%s/resolve/%s/%s", s.endpoint, s.repoID, s.branch, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, transportError("download", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("download", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("download", resp.StatusCode, body)
	}
	return body, nil
}

// Close is a no-op; the store holds no open connections of its own
func (s *Store) Close() error {
	return nil
}

// ensureRepo creates the dataset repository on first use
func (s *Store) ensureRepo(ctx context.Context) error {
	s.repoMu.Lock()
	defer s.repoMu.Unlock()
	if s.repoReady {
		return nil
	}

	checkURL := fmt.Sprintf("%s/api/datasets/%s", s.endpoint, s.repoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return transportError("check repository", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		s.logger.Info("Repository already exists", "repo_id", s.repoID)
		s.repoReady = true
		return nil
	}

	parts := strings.Split(s.repoID, "/")
	payload := map[string]any{
		"name":         parts[1],
		"organization": parts[0],
		"type":         "dataset",
		"private":      s.private,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	createURL := s.endpoint + "/api/repos/create"
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, createURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	s.logger.Debug("Creating repository", "url", createURL, "repo_id", s.repoID)

	resp, err = s.httpClient.Do(req)
	if err != nil {
		return transportError("create repository", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	// 409 means another process created it first
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return statusError("create repository", resp.StatusCode, bodyBytes)
	}

	s.logger.Info("Repository created", "repo_id", s.repoID, "private", s.private)
	s.repoReady = true
	return nil
}

// statusError classifies an HTTP failure as transient (429, 5xx) or permanent
func statusError(op string, status int, body []byte) error {
	kind := models.ErrPermanent
	if status == http.StatusTooManyRequests || status >= 500 {
		kind = models.ErrTransient
	}
	msg := string(body)
	if len(msg) > 500 {
		msg = msg[:500] + "..."
	}
	return fmt.Errorf("%s failed with status %d: %s: %w", op, status, msg, kind)
}

func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s request failed: %v: %w", op, err, models.ErrTransient)
}
