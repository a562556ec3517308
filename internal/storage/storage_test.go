package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/lamim/scripturai/pkg/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestArtifactKey(t *testing.T) {
	tests := []struct {
		prefix, book, chapter, ext string
		expected                   string
	}{
		{"summary", "Genesis", "1", "txt", "summary/Genesis/1.txt"},
		{"summary", "Song of Solomon", "2", ".png", "summary/SongofSolomon/2.png"},
		{"summary/", "1 Kings", "10", "txt", "summary/1Kings/10.txt"},
		{"", "Ruth", "4", "png", "Ruth/4.png"},
	}

	for _, tt := range tests {
		if got := ArtifactKey(tt.prefix, tt.book, tt.chapter, tt.ext); got != tt.expected {
			t.Errorf("ArtifactKey(%q, %q, %q, %q) = %q, want %q", tt.prefix, tt.book, tt.chapter, tt.ext, got, tt.expected)
		}
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"summary/Genesis/1.txt", false},
		{"Ruth/4.png", false},
		{"", true},
		{"/etc/passwd", true},
		{"summary/../../etc/passwd", true},
		{"summary\\Genesis\\1.txt", true},
		{"summary//1.txt", true},
		{"summary/./1.txt", true},
		{"summary/\x00.txt", true},
	}

	for _, tt := range tests {
		err := ValidateKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
		}
		if err != nil && (!errors.Is(err, models.ErrPrecondition) || models.Retryable(err)) {
			t.Errorf("ValidateKey(%q) error = %v, want a non-retryable precondition error", tt.key, err)
		}
	}
}

// storesUnderTest returns one instance of every local backend
func storesUnderTest(t *testing.T) map[string]BlobStore {
	t.Helper()

	fsStore, err := NewFSStore(filepath.Join(t.TempDir(), "out"), quietLogger())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "artifacts.db"), quietLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	stores := map[string]BlobStore{"fs": fsStore, "sqlite": sqliteStore}
	t.Cleanup(func() {
		for name, s := range stores {
			if err := s.Close(); err != nil {
				t.Errorf("%s Close failed: %v", name, err)
			}
		}
	})
	return stores
}

func TestBlobStorePutGet(t *testing.T) {
	ctx := context.Background()

	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			key := "summary/Genesis/1.txt"
			if err := store.Put(ctx, key, []byte("first"), ContentTypeText); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			got, err := store.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(got) != "first" {
				t.Errorf("Expected 'first', got '%s'", got)
			}
		})
	}
}

func TestBlobStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	image := []byte{0x89, 'P', 'N', 'G', 0, 1, 2}

	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			key := "summary/Exodus/3.png"
			if err := store.Put(ctx, key, []byte("old"), ContentTypePNG); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := store.Put(ctx, key, image, ContentTypePNG); err != nil {
				t.Fatalf("Second Put failed: %v", err)
			}

			got, err := store.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if !bytes.Equal(got, image) {
				t.Errorf("Expected overwritten bytes, got %v", got)
			}
		})
	}
}

func TestBlobStoreNotFound(t *testing.T) {
	ctx := context.Background()

	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "summary/Nowhere/1.txt")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestBlobStoreRejectsBadKeys(t *testing.T) {
	ctx := context.Background()

	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Put(ctx, "../escape.txt", []byte("x"), ContentTypeText); err == nil {
				t.Error("Expected error for traversal key")
			}
		})
	}
}

func TestFSStoreLayout(t *testing.T) {
	root := t.TempDir()
	store, err := NewFSStore(root, quietLogger())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	if err := store.Put(context.Background(), "summary/Genesis/1.txt", []byte("text"), ContentTypeText); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "summary", "Genesis", "1.txt"))
	if err != nil {
		t.Fatalf("Expected file on disk: %v", err)
	}
	if string(data) != "text" {
		t.Errorf("Expected 'text', got '%s'", data)
	}

	entries, err := os.ReadDir(filepath.Join(root, "summary", "Genesis"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected only the object file, found %d entries", len(entries))
	}
}
