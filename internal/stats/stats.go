package stats

import (
	"sync"
	"time"
)

// Per-day click tallies (in-memory), keyed by date string YYYY-MM-DD UTC
var (
	statsMu     sync.Mutex
	dailyClicks = make(map[string]int)
	// now is swapped in tests
	now = time.Now
)

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// RecordClick counts one accepted punch against today's date.
func RecordClick() {
	statsMu.Lock()
	defer statsMu.Unlock()
	dailyClicks[dateKey(now())]++
}

// ClicksToday returns today's date key and how many punches it has seen.
func ClicksToday() (string, int) {
	statsMu.Lock()
	defer statsMu.Unlock()
	key := dateKey(now())
	return key, dailyClicks[key]
}

// ClicksOn returns the tally for a given date key.
func ClicksOn(date string) int {
	statsMu.Lock()
	defer statsMu.Unlock()
	return dailyClicks[date]
}
