package hfhub

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// CommitOperation represents a single file addition in a commit
type CommitOperation struct {
	Path    string       `json:"path"`
	Content string       `json:"content,omitempty"` // base64 encoded for inline files
	LFSFile *LFSFileInfo `json:"lfsFile,omitempty"` // for binary files
}

// LFSFileInfo contains information about an LFS file
type LFSFileInfo struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// LFSThreshold is the size above which any object goes through LFS (10MB)
const LFSThreshold = 10 * 1024 * 1024

// PrepareOperation builds the commit operation for one object.
// Text under LFSThreshold is embedded; everything else is an LFS pointer.
func PrepareOperation(pathInRepo string, data []byte, contentType string) *CommitOperation {
	op := &CommitOperation{Path: pathInRepo}

	if isInlineContent(contentType) && len(data) < LFSThreshold {
		op.Content = base64.StdEncoding.EncodeToString(data)
		return op
	}

	sum := sha256.Sum256(data)
	op.LFSFile = &LFSFileInfo{
		SHA256: hex.EncodeToString(sum[:]),
		Size:   int64(len(data)),
	}
	return op
}

func isInlineContent(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") || strings.HasPrefix(contentType, "application/json")
}

// createCommit posts an NDJSON commit:
//
//	{"key": "header", "value": {"summary": "...", "description": ""}}
//	{"key": "file", "value": {"content": "...", "path": "...", "encoding": "base64"}}
//	{"key": "lfsFile", "value": {"path": "...", "algo": "sha256", "oid": "...", "size": 1}}
func (s *Store) createCommit(ctx context.Context, operations []CommitOperation, message string) error {
	url := fmt.Sprintf("%s/api/datasets/%s/commit/%s", s.endpoint, s.repoID, s.branch)

	lines := make([]string, 0, len(operations)+1)

	header := map[string]any{
		"key": "header",
		"value": map[string]string{
			"summary":     message,
			"description": "",
		},
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	lines = append(lines, string(headerJSON))

	for _, op := range operations {
		var line map[string]any
		if op.LFSFile != nil {
			line = map[string]any{
				"key": "lfsFile",
				"value": map[string]any{
					"path": op.Path,
					"algo": "sha256",
					"oid":  op.LFSFile.SHA256,
					"size": op.LFSFile.Size,
				},
			}
		} else {
			line = map[string]any{
				"key": "file",
				"value": map[string]any{
					"content":  op.Content,
					"path":     op.Path,
					"encoding": "base64",
				},
			}
		}
		lineJSON, err := json.Marshal(line)
		if err != nil {
			return fmt.Errorf("failed to marshal operation %s: %w", op.Path, err)
		}
		lines = append(lines, string(lineJSON))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(strings.Join(lines, "\n")))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/x-ndjson")

	s.logger.Debug("Creating commit", "url", url, "operations", len(operations))

	resp, err := s.commitClient.Do(req)
	if err != nil {
		return transportError("commit", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError("commit", resp.StatusCode, bodyBytes)
	}

	s.logger.Debug("Commit created", "branch", s.branch, "operations", len(operations))
	return nil
}
