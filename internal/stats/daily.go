package stats

import "time"

// This file contains helpers around daily stats. It complements stats.go.

// ResetDaily clears the in-memory daily tallies.
// Intended for tests and dev convenience.
func ResetDaily() {
	statsMu.Lock()
	defer statsMu.Unlock()
	for k := range dailyClicks {
		delete(dailyClicks, k)
	}
}

// PruneBefore drops tallies older than the given number of days so the map
// does not grow for the life of the process.
func PruneBefore(days int) int {
	statsMu.Lock()
	defer statsMu.Unlock()
	cutoff := dateKey(now().AddDate(0, 0, -days))
	removed := 0
	for k := range dailyClicks {
		if k < cutoff {
			delete(dailyClicks, k)
			removed++
		}
	}
	return removed
}

// SetClock overrides the time source; it returns a func restoring the old one.
func SetClock(fn func() time.Time) func() {
	statsMu.Lock()
	prev := now
	now = fn
	statsMu.Unlock()
	return func() {
		statsMu.Lock()
		now = prev
		statsMu.Unlock()
	}
}
