package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/lamim/scripturai/internal/config"
	"github.com/lamim/scripturai/pkg/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func defaultCatalogConfig() config.CatalogConfig {
	return config.Default().Catalog
}

func TestCanon(t *testing.T) {
	books := Canon()
	if len(books) != CanonSize {
		t.Fatalf("Expected %d books, got %d", CanonSize, len(books))
	}
	for i, b := range books {
		if b.Order != i+1 {
			t.Errorf("Book %s has order %d, expected %d", b.Name, b.Order, i+1)
		}
	}

	tests := []struct {
		id       string
		expected string
		found    bool
	}{
		{"Genesis", "Genesis", true},
		{"genesis", "Genesis", true},
		{"1Chronicles", "1 Chronicles", true},
		{"SongofSolomon", "Song of Solomon", true},
		{"song-of-solomon", "Song of Solomon", true},
		{"Tobit", "", false},
	}
	for _, tt := range tests {
		b, ok := LookupCanon(tt.id)
		if ok != tt.found {
			t.Errorf("LookupCanon(%q) found = %v, expected %v", tt.id, ok, tt.found)
			continue
		}
		if ok && b.Name != tt.expected {
			t.Errorf("LookupCanon(%q) = %q, expected %q", tt.id, b.Name, tt.expected)
		}
	}

	if b, _ := LookupCanon("Psalms"); b.Chapters != 150 {
		t.Errorf("Expected Psalms to have 150 chapters, got %d", b.Chapters)
	}
}

func TestFilterAndSort(t *testing.T) {
	entries := []models.FileRef{
		{Name: "README.md"},
		{Name: "Exodus.json"},
		{Name: "Books.json"},
		{Name: "Revelation.json"},
		{Name: "Zzz.json"},
		{Name: "Genesis.json"},
		{Name: "Appendix.json"},
		{Name: "SongofSolomon.json"},
	}

	got := FilterAndSort(entries, defaultCatalogConfig())
	expected := []string{"Genesis.json", "Exodus.json", "SongofSolomon.json", "Revelation.json", "Appendix.json", "Zzz.json"}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d files, got %d: %v", len(expected), len(got), got)
	}
	for i, name := range expected {
		if got[i].Name != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, got[i].Name)
		}
	}

	cfg := defaultCatalogConfig()
	cfg.Order = "name"
	cfg.Exclude = []string{"books.JSON", "zzz.json"}
	got = FilterAndSort(entries, cfg)
	expected = []string{"Appendix.json", "Exodus.json", "Genesis.json", "Revelation.json", "SongofSolomon.json"}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d files, got %d: %v", len(expected), len(got), got)
	}
	for i, name := range expected {
		if got[i].Name != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, got[i].Name)
		}
	}
}

func newGitHubServer(t *testing.T, handler http.HandlerFunc) *GitHubCatalog {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := defaultCatalogConfig()
	cfg.APIBaseURL = server.URL
	c, err := NewGitHubCatalog(context.Background(), cfg, "", quietLogger())
	if err != nil {
		t.Fatalf("NewGitHubCatalog failed: %v", err)
	}
	return c
}

func TestGitHubCatalogListFiles(t *testing.T) {
	c := newGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/repos/aruljohn/Bible-kjv/contents") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"type":"file","name":"Exodus.json","download_url":"https://raw.example/Exodus.json"},
			{"type":"file","name":"Books.json","download_url":"https://raw.example/Books.json"},
			{"type":"dir","name":"extra","download_url":null},
			{"type":"file","name":"Genesis.json","download_url":"https://raw.example/Genesis.json"},
			{"type":"file","name":"LICENSE","download_url":"https://raw.example/LICENSE"}
		]`)
	})

	files, err := c.ListFiles(context.Background())
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %d: %v", len(files), files)
	}
	if files[0].Name != "Genesis.json" || files[0].ID() != "Genesis" {
		t.Errorf("Expected Genesis first, got %+v", files[0])
	}
	if files[1].DownloadURL != "https://raw.example/Exodus.json" {
		t.Errorf("Expected Exodus download URL, got %s", files[1].DownloadURL)
	}
}

func TestGitHubCatalogErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"server error", http.StatusBadGateway, true},
		{"not found", http.StatusNotFound, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newGitHubServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, `{"message":"boom"}`)
			})

			_, err := c.ListFiles(context.Background())
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if models.Retryable(err) != tt.retryable {
				t.Errorf("Expected retryable=%v for %v", tt.retryable, err)
			}
		})
	}
}

func TestNewGitHubCatalogInvalidRepository(t *testing.T) {
	cfg := defaultCatalogConfig()
	cfg.Repository = "no-slash"
	if _, err := NewGitHubCatalog(context.Background(), cfg, "", quietLogger()); err == nil {
		t.Error("Expected error for repository without owner")
	}
}

const genesisJSON = `{
  "book": "Genesis",
  "chapters": [
    {"chapter": "1", "verses": [{"verse": "1", "text": "In the beginning God created the heaven and the earth."}]},
    {"chapter": "2", "verses": [{"verse": "1", "text": "Thus the heavens and the earth were finished."}]}
  ]
}`

func TestLoaderLoadBook(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, genesisJSON)
	}))
	defer server.Close()

	l, err := NewLoader(quietLogger())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	book, err := l.LoadBook(context.Background(), models.FileRef{Name: "Genesis.json", DownloadURL: server.URL})
	if err != nil {
		t.Fatalf("LoadBook failed: %v", err)
	}
	if userAgent != UserAgent {
		t.Errorf("Expected User-Agent %s, got %s", UserAgent, userAgent)
	}
	if book.Book != "Genesis" || len(book.Chapters) != 2 {
		t.Errorf("Unexpected book: %+v", book)
	}
	if book.Chapters[1].Verses[0].Verse != "1" {
		t.Errorf("Expected verse label 1, got %s", book.Chapters[1].Verses[0].Verse)
	}
}

func TestLoaderLoadBookStatus(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusNotFound, false},
	}

	l, err := NewLoader(quietLogger())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		_, err := l.LoadBook(context.Background(), models.FileRef{Name: "Genesis.json", DownloadURL: server.URL})
		server.Close()
		if err == nil {
			t.Errorf("Status %d: expected error", tt.status)
			continue
		}
		if models.Retryable(err) != tt.retryable {
			t.Errorf("Status %d: expected retryable=%v, got %v", tt.status, tt.retryable, err)
		}
	}
}

func TestLoaderMissingURL(t *testing.T) {
	l, err := NewLoader(quietLogger())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	_, err = l.LoadBook(context.Background(), models.FileRef{Name: "Genesis.json"})
	if !errors.Is(err, models.ErrData) {
		t.Errorf("Expected ErrData, got %v", err)
	}
}

func TestParseBookInvalid(t *testing.T) {
	l, err := NewLoader(quietLogger())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"book": "Genesis", `},
		{"missing chapters", `{"book": "Genesis"}`},
		{"empty chapters", `{"book": "Genesis", "chapters": []}`},
		{"empty book name", `{"book": "", "chapters": [{"chapter": "1", "verses": [{"verse": "1", "text": "x"}]}]}`},
		{"blank book name", `{"book": "  ", "chapters": [{"chapter": "1", "verses": [{"verse": "1", "text": "x"}]}]}`},
		{"verse missing text", `{"book": "Ruth", "chapters": [{"chapter": "1", "verses": [{"verse": "1"}]}]}`},
		{"numeric chapter type", `{"book": "Ruth", "chapters": [{"chapter": 1, "verses": [{"verse": "1", "text": "x"}]}]}`},
		{"chapter gap", `{"book": "Ruth", "chapters": [
			{"chapter": "1", "verses": [{"verse": "1", "text": "x"}]},
			{"chapter": "3", "verses": [{"verse": "1", "text": "x"}]}]}`},
		{"chapter repeat", `{"book": "Ruth", "chapters": [
			{"chapter": "1", "verses": [{"verse": "1", "text": "x"}]},
			{"chapter": "1", "verses": [{"verse": "1", "text": "x"}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.ParseBook([]byte(tt.data))
			if !errors.Is(err, models.ErrData) {
				t.Errorf("Expected ErrData, got %v", err)
			}
		})
	}
}

func TestParseBookNonNumericChapters(t *testing.T) {
	l, err := NewLoader(quietLogger())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	data := `{"book": "Esther", "chapters": [
		{"chapter": "Prologue", "verses": [{"verse": "1", "text": "x"}]},
		{"chapter": "1", "verses": [{"verse": "1", "text": "y"}]}]}`
	book, err := l.ParseBook([]byte(data))
	if err != nil {
		t.Fatalf("Expected non-numeric labels to be accepted, got %v", err)
	}
	if book.Chapters[0].Chapter != "Prologue" {
		t.Errorf("Expected file order to be kept, got %s", book.Chapters[0].Chapter)
	}
}
