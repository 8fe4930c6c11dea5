package domain

import "time"

// RecencyCutoff returns the start of the calendar day windowDays before now,
// in loc. A window of 1 yields 00:00 of the previous day. A nil loc means
// UTC and a window below 1 is treated as 1.
func RecencyCutoff(now time.Time, loc *time.Location, windowDays int) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if windowDays < 1 {
		windowDays = 1
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d-windowDays, 0, 0, 0, 0, loc)
}

// FilterRecent keeps candidates with a title and URL published at or after
// cutoff, preserving their order.
func FilterRecent(candidates []ArticleCandidate, cutoff time.Time) []ArticleCandidate {
	kept := make([]ArticleCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Title == "" || c.URL == "" {
			continue
		}
		if c.PublishedAt.Before(cutoff) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}
