package models

import (
	"path"
	"strings"
	"time"
)

// Book is a single source document: one book of the Bible as published in the
// catalog repository
type Book struct {
	Book     string    `json:"book"`
	Chapters []Chapter `json:"chapters"`
}

// Chapter is one unit of work within a book. Its ordinal is its index in
// Book.Chapters.
type Chapter struct {
	Chapter string  `json:"chapter"`
	Summary string  `json:"summary,omitempty"` // Populated by the text summary step
	Verses  []Verse `json:"verses"`
}

// Verse is a single numbered line of source text
type Verse struct {
	Verse string `json:"verse"`
	Text  string `json:"text"`
}

// FileRef identifies one catalog entry
type FileRef struct {
	Name        string `json:"name"`
	DownloadURL string `json:"download_url"`
}

// ID returns the book identifier used for progress tracking: the file name
// without its extension
func (f FileRef) ID() string {
	return strings.TrimSuffix(f.Name, path.Ext(f.Name))
}

// Outcome is the result of processing one chapter or one run
type Outcome string

const (
	// OutcomeCompleted means every step succeeded and was persisted
	OutcomeCompleted Outcome = "completed"
	// OutcomeAborted means a step exhausted its retries; no progress was recorded for it
	OutcomeAborted Outcome = "aborted"
	// OutcomeNothingToDo means the run found no book to work on
	OutcomeNothingToDo Outcome = "nothing_to_do"
)

// RunReport summarizes a single pipeline invocation
type RunReport struct {
	RunID             string        `json:"run_id"`
	Book              string        `json:"book,omitempty"`
	Outcome           Outcome       `json:"outcome"`
	StartIndex        int           `json:"start_index"`
	ChaptersCompleted int           `json:"chapters_completed"`
	TotalChapters     int           `json:"total_chapters"`
	StartTime         time.Time     `json:"start_time"`
	Duration          time.Duration `json:"duration"`
}
