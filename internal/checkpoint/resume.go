package checkpoint

import (
	"sort"

	"github.com/lamim/scripturai/pkg/models"
)

// ResumeIndex returns the zero-based chapter to start from for book.
// reset is true when the stored cursor cannot belong to a book of total
// chapters; the caller should drop that entry and start over at 0.
func ResumeIndex(cursor models.CursorMap, book string, total int) (index int, reset bool) {
	_, p, ok := cursor.Lookup(book)
	if !ok {
		return 0, false
	}
	last := p.LastChapterIndexFinished
	if last < -1 || last > total-1 {
		return 0, true
	}
	return last + 1, false
}

// BookStatus describes one in-progress book for reporting
type BookStatus struct {
	Book             string
	ChaptersFinished int
	TotalChapters    int // 0 when unknown
}

// InProgress lists in-progress books sorted by name. totals may be nil.
func InProgress(cursor models.CursorMap, totals map[string]int) []BookStatus {
	statuses := make([]BookStatus, 0, len(cursor))
	for book, p := range cursor {
		statuses = append(statuses, BookStatus{
			Book:             book,
			ChaptersFinished: p.LastChapterIndexFinished + 1,
			TotalChapters:    totals[book],
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Book < statuses[j].Book })
	return statuses
}

// GetProgressPercentage returns completion percentage, or 0 when the total is unknown
func (b BookStatus) GetProgressPercentage() float64 {
	if b.TotalChapters == 0 {
		return 0.0
	}
	return float64(b.ChaptersFinished) / float64(b.TotalChapters) * 100.0
}

// GetPendingBooks returns catalog identifiers not yet in completed, in catalog order
func GetPendingBooks(catalog []string, completed models.CompletedSet) []string {
	var pending []string
	for _, name := range catalog {
		if name == "" || completed.Contains(name) {
			continue
		}
		pending = append(pending, name)
	}
	return pending
}
