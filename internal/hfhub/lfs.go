package hfhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
)

// LFSPointer identifies an object to upload through LFS
type LFSPointer struct {
	OID  string `json:"oid"`  // SHA256 hash
	Size int64  `json:"size"` // Object size in bytes
	Path string `json:"-"`    // Path in repository (not sent to LFS API)
}

// LFSUploadInfo contains upload information for an LFS object
type LFSUploadInfo struct {
	OID       string
	Size      int64
	UploadURL string            // Populated from actions.upload.href; empty if the server already has it
	Header    map[string]string // Populated from actions.upload.header
}

// LFSBatchObject represents an object in the LFS batch request/response
type LFSBatchObject struct {
	OID     string      `json:"oid"`
	Size    int64       `json:"size"`
	Actions *LFSActions `json:"actions,omitempty"` // nil if the object exists
}

// LFSActions contains upload and verify actions
type LFSActions struct {
	Upload *LFSAction `json:"upload,omitempty"`
	Verify *LFSAction `json:"verify,omitempty"`
}

// LFSAction represents an upload or verify action
type LFSAction struct {
	Href   string            `json:"href"`
	Header map[string]string `json:"header"`
}

// LFSBatchRequest is the request to the LFS batch endpoint
type LFSBatchRequest struct {
	Operation string           `json:"operation"` // Always "upload"
	Transfers []string         `json:"transfers"` // ["basic", "multipart"]
	Objects   []LFSBatchObject `json:"objects"`
	HashAlgo  string           `json:"hash_algo"` // Always "sha256"
}

// LFSBatchResponse is the response from the LFS batch endpoint
type LFSBatchResponse struct {
	Objects  []LFSBatchObject `json:"objects"`
	Transfer string           `json:"transfer,omitempty"`
}

// PreuploadLFS requests upload URLs for objects using the Git LFS batch API
func (s *Store) PreuploadLFS(ctx context.Context, files []LFSPointer) (map[string]*LFSUploadInfo, error) {
	if len(files) == 0 {
		return map[string]*LFSUploadInfo{}, nil
	}

	url := fmt.Sprintf("%s/datasets/%s.git/info/lfs/objects/batch", s.endpoint, s.repoID)

	objects := make([]LFSBatchObject, len(files))
	for i, file := range files {
		objects[i] = LFSBatchObject{OID: file.OID, Size: file.Size}
	}

	jsonData, err := json.Marshal(LFSBatchRequest{
		Operation: "upload",
		Transfers: []string{"basic", "multipart"},
		Objects:   objects,
		HashAlgo:  "sha256",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/vnd.git-lfs+json")
	req.Header.Set("Accept", "application/vnd.git-lfs+json")

	s.logger.Debug("LFS batch request", "url", url, "file_count", len(files))

	resp, err := s.lfsClient.Do(req)
	if err != nil {
		return nil, transportError("LFS batch", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, statusError("LFS batch", resp.StatusCode, bodyBytes)
	}

	var batchResp LFSBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batchResp); err != nil {
		return nil, fmt.Errorf("failed to decode LFS batch response: %w", err)
	}

	uploadMap := make(map[string]*LFSUploadInfo, len(batchResp.Objects))
	for _, obj := range batchResp.Objects {
		info := &LFSUploadInfo{OID: obj.OID, Size: obj.Size}
		if obj.Actions != nil && obj.Actions.Upload != nil {
			info.UploadURL = obj.Actions.Upload.Href
			info.Header = obj.Actions.Upload.Header
		}
		uploadMap[obj.OID] = info
	}

	s.logger.Debug("LFS batch completed", "objects", len(uploadMap), "transfer", batchResp.Transfer)
	return uploadMap, nil
}

// UploadLFSObject uploads data using either the basic or the multipart LFS protocol
func (s *Store) UploadLFSObject(ctx context.Context, info *LFSUploadInfo, data []byte) error {
	if info.UploadURL == "" {
		s.logger.Debug("LFS object already exists on server", "oid", info.OID)
		return nil
	}

	if chunkSize, ok := info.Header["chunk_size"]; ok {
		return s.uploadMultipart(ctx, info, data, chunkSize)
	}
	return s.uploadBasic(ctx, info, data)
}

// uploadBasic uploads data with a single PUT
func (s *Store) uploadBasic(ctx context.Context, info *LFSUploadInfo, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, info.UploadURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(data))

	for key, value := range info.Header {
		if key != "chunk_size" && !isNumericKey(key) {
			req.Header.Set(key, value)
		}
	}

	resp, err := s.lfsClient.Do(req)
	if err != nil {
		return transportError("LFS upload", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return statusError("LFS upload", resp.StatusCode, bodyBytes)
	}

	s.logger.Debug("LFS object uploaded (basic)", "oid", info.OID, "size", len(data))
	return nil
}

// uploadMultipart uploads data in chunk_size parts and posts the completion request
func (s *Store) uploadMultipart(ctx context.Context, info *LFSUploadInfo, data []byte, chunkSizeStr string) error {
	chunkSize := int64(0)
	if _, err := fmt.Sscanf(chunkSizeStr, "%d", &chunkSize); err != nil || chunkSize <= 0 {
		return fmt.Errorf("invalid chunk_size: %s", chunkSizeStr)
	}

	partURLs := extractPartURLs(info.Header)
	if len(partURLs) == 0 {
		return fmt.Errorf("no part URLs found in multipart upload response")
	}

	partNumbers := make([]int, 0, len(partURLs))
	for n := range partURLs {
		partNumbers = append(partNumbers, n)
	}
	sort.Ints(partNumbers)

	size := int64(len(data))
	parts := make([]map[string]any, 0, len(partNumbers))

	for _, partNum := range partNumbers {
		offset := int64(partNum-1) * chunkSize
		if offset >= size {
			return fmt.Errorf("part %d starts beyond object size %d", partNum, size)
		}
		end := offset + chunkSize
		if end > size {
			end = size
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, partURLs[partNum], bytes.NewReader(data[offset:end]))
		if err != nil {
			return fmt.Errorf("failed to create request for part %d: %w", partNum, err)
		}
		req.Header.Set("Content-Type", "application/octet-stream")
		req.ContentLength = end - offset

		resp, err := s.lfsClient.Do(req)
		if err != nil {
			return transportError(fmt.Sprintf("LFS part %d upload", partNum), err)
		}
		etag := resp.Header.Get("ETag")
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			bodyBytes, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return statusError(fmt.Sprintf("LFS part %d upload", partNum), resp.StatusCode, bodyBytes)
		}
		_ = resp.Body.Close()

		if etag == "" {
			return fmt.Errorf("no ETag returned for part %d", partNum)
		}
		parts = append(parts, map[string]any{"partNumber": partNum, "etag": etag})
	}

	completionJSON, err := json.Marshal(map[string]any{"oid": info.OID, "parts": parts})
	if err != nil {
		return fmt.Errorf("failed to marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, info.UploadURL, bytes.NewReader(completionJSON))
	if err != nil {
		return fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/vnd.git-lfs+json")
	req.Header.Set("Accept", "application/vnd.git-lfs+json")

	resp, err := s.lfsClient.Do(req)
	if err != nil {
		return transportError("LFS completion", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return statusError("LFS completion", resp.StatusCode, bodyBytes)
	}

	s.logger.Debug("LFS object uploaded (multipart)", "oid", info.OID, "size", size, "parts", len(parts))
	return nil
}

// extractPartURLs extracts part URLs from header map (keys like "1", "2", "3"...)
func extractPartURLs(header map[string]string) map[int]string {
	partURLs := make(map[int]string)
	for key, value := range header {
		if isNumericKey(key) {
			partNum := 0
			if _, err := fmt.Sscanf(key, "%d", &partNum); err == nil && partNum > 0 {
				partURLs[partNum] = value
			}
		}
	}
	return partURLs
}

// isNumericKey checks if a string is a numeric key (used for multipart part numbers)
func isNumericKey(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
