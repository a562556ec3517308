package models

import "strings"

// BookProgress records the last fully summarized chapter of an in-progress book
type BookProgress struct {
	LastChapterIndexFinished int `json:"LastChapterIndexFinished"` // Zero-based chapter index
}

// CursorMap maps in-progress book identifiers to their progress
type CursorMap map[string]BookProgress

// CompletedSet is the ordered list of fully summarized book identifiers.
// Membership is case-insensitive.
type CompletedSet []string

// Contains reports whether name is in the set, ignoring case
func (s CompletedSet) Contains(name string) bool {
	for _, existing := range s {
		if strings.EqualFold(existing, name) {
			return true
		}
	}
	return false
}

// Add appends name unless it is already present
func (s CompletedSet) Add(name string) CompletedSet {
	if s.Contains(name) {
		return s
	}
	return append(s, name)
}

// Lookup returns the progress entry for name, ignoring case
func (m CursorMap) Lookup(name string) (string, BookProgress, bool) {
	if p, ok := m[name]; ok {
		return name, p, true
	}
	for key, p := range m {
		if strings.EqualFold(key, name) {
			return key, p, true
		}
	}
	return "", BookProgress{}, false
}
