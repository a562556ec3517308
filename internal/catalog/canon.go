package catalog

import "strings"

// CanonBook holds metadata for a single book of the Protestant canon
type CanonBook struct {
	Name     string
	Order    int
	Chapters int
}

// canon lists the 66 books in canonical order
var canon = []CanonBook{
	// Old Testament
	{"Genesis", 1, 50},
	{"Exodus", 2, 40},
	{"Leviticus", 3, 27},
	{"Numbers", 4, 36},
	{"Deuteronomy", 5, 34},
	{"Joshua", 6, 24},
	{"Judges", 7, 21},
	{"Ruth", 8, 4},
	{"1 Samuel", 9, 31},
	{"2 Samuel", 10, 24},
	{"1 Kings", 11, 22},
	{"2 Kings", 12, 25},
	{"1 Chronicles", 13, 29},
	{"2 Chronicles", 14, 36},
	{"Ezra", 15, 10},
	{"Nehemiah", 16, 13},
	{"Esther", 17, 10},
	{"Job", 18, 42},
	{"Psalms", 19, 150},
	{"Proverbs", 20, 31},
	{"Ecclesiastes", 21, 12},
	{"Song of Solomon", 22, 8},
	{"Isaiah", 23, 66},
	{"Jeremiah", 24, 52},
	{"Lamentations", 25, 5},
	{"Ezekiel", 26, 48},
	{"Daniel", 27, 12},
	{"Hosea", 28, 14},
	{"Joel", 29, 3},
	{"Amos", 30, 9},
	{"Obadiah", 31, 1},
	{"Jonah", 32, 4},
	{"Micah", 33, 7},
	{"Nahum", 34, 3},
	{"Habakkuk", 35, 3},
	{"Zephaniah", 36, 3},
	{"Haggai", 37, 2},
	{"Zechariah", 38, 14},
	{"Malachi", 39, 4},
	// New Testament
	{"Matthew", 40, 28},
	{"Mark", 41, 16},
	{"Luke", 42, 24},
	{"John", 43, 21},
	{"Acts", 44, 28},
	{"Romans", 45, 16},
	{"1 Corinthians", 46, 16},
	{"2 Corinthians", 47, 13},
	{"Galatians", 48, 6},
	{"Ephesians", 49, 6},
	{"Philippians", 50, 4},
	{"Colossians", 51, 4},
	{"1 Thessalonians", 52, 5},
	{"2 Thessalonians", 53, 3},
	{"1 Timothy", 54, 6},
	{"2 Timothy", 55, 4},
	{"Titus", 56, 3},
	{"Philemon", 57, 1},
	{"Hebrews", 58, 13},
	{"James", 59, 5},
	{"1 Peter", 60, 5},
	{"2 Peter", 61, 3},
	{"1 John", 62, 5},
	{"2 John", 63, 1},
	{"3 John", 64, 1},
	{"Jude", 65, 1},
	{"Revelation", 66, 22},
}

// CanonSize is the number of books in the canon
const CanonSize = 66

var canonIndex = func() map[string]CanonBook {
	m := make(map[string]CanonBook, len(canon))
	for _, b := range canon {
		m[normalizeName(b.Name)] = b
	}
	return m
}()

// normalizeName folds case and drops spaces, hyphens and underscores so that
// "Song of Solomon", "SongofSolomon" and "song-of-solomon" compare equal
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if r == ' ' || r == '-' || r == '_' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LookupCanon returns canon metadata for a book identifier
func LookupCanon(id string) (CanonBook, bool) {
	b, ok := canonIndex[normalizeName(id)]
	return b, ok
}

// Canon returns a copy of the canon in order
func Canon() []CanonBook {
	return append([]CanonBook(nil), canon...)
}
