package table

import (
	"strings"

	"golang.org/x/text/cases"
)

// Filter keeps the records where any field value contains term,
// ignoring case. Every exported field is searched, not only the ones
// shown as columns. Surrounding whitespace in term is ignored, and an
// empty or whitespace-only term returns records as-is.
func Filter[R Record](records []R, term string) []R {
	term = strings.TrimSpace(term)
	if term == "" {
		return records
	}

	fold := cases.Fold()
	needle := fold.String(term)

	out := make([]R, 0, len(records))
	for _, rec := range records {
		if matches(rec, needle, fold) {
			out = append(out, rec)
		}
	}
	return out
}

func matches(rec any, needle string, fold cases.Caser) bool {
	for _, v := range values(rec) {
		if strings.Contains(fold.String(Stringify(v)), needle) {
			return true
		}
	}
	return false
}
