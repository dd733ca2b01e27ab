package util

import (
	"fmt"
	"time"
)

// RelativeTimeShort formats a time as a short relative string, e.g. "2h ago"
// or "in 5m".
func RelativeTimeShort(t time.Time) string {
	return relativeTimeShortAt(t, time.Now())
}

func relativeTimeShortAt(t, now time.Time) string {
	diff := now.Sub(t)
	future := diff < 0
	if future {
		diff = -diff
	}

	var s string
	switch {
	case diff < time.Minute:
		return "now"
	case diff < time.Hour:
		s = fmt.Sprintf("%dm", int(diff.Minutes()))
	case diff < 24*time.Hour:
		s = fmt.Sprintf("%dh", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		s = fmt.Sprintf("%dd", int(diff.Hours()/24))
	case diff < 30*24*time.Hour:
		s = fmt.Sprintf("%dw", int(diff.Hours()/24/7))
	default:
		if t.Year() != now.Year() {
			return t.Format("Jan 2 2006")
		}
		return t.Format("Jan 2")
	}
	if future {
		return "in " + s
	}
	return s + " ago"
}
