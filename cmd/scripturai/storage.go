package main

import (
	"fmt"
	"log/slog"

	"github.com/lamim/scripturai/internal/config"
	"github.com/lamim/scripturai/internal/hfhub"
	"github.com/lamim/scripturai/internal/storage"
)

// newBlobStore opens the configured artifact backend
func newBlobStore(cfg config.StorageConfig, secrets *config.Secrets, logger *slog.Logger) (storage.BlobStore, error) {
	switch cfg.Backend {
	case "sqlite":
		s, err := storage.NewSQLiteStore(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Artifacts go to sqlite", "path", s.Path())
		return s, nil
	case "hfhub":
		if secrets.HuggingFaceToken == "" {
			return nil, fmt.Errorf("HUGGING_FACE_TOKEN environment variable must be set for the hfhub backend")
		}
		s, err := hfhub.NewStore(hfhub.Options{
			Endpoint: cfg.HFEndpoint,
			RepoID:   cfg.HFRepoID,
			Branch:   cfg.HFBranch,
			Token:    secrets.HuggingFaceToken,
			Private:  cfg.HFPrivate,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Artifacts go to Hugging Face Hub", "repo", s.RepoURL())
		return s, nil
	case "fs", "":
		s, err := storage.NewFSStore(cfg.Dir, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Artifacts go to local directory", "dir", s.Root())
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
