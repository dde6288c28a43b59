// Package gate stores the lastClickDate marker behind the daily punch limit.
package gate

import (
	"sync"
	"time"

	"github.com/pefman/break-the-wall/internal/wall"
)

// Key is the single key the marker lives under, in files and cookies alike.
const Key = "lastClickDate"

// valid drops markers that are not a calendar date so garbage reads as
// "never clicked".
func valid(date string) string {
	if _, err := time.Parse(wall.DateLayout, date); err != nil {
		return ""
	}
	return date
}

// Memory keeps the marker in process memory.
type Memory struct {
	mu   sync.Mutex
	date string
}

var _ wall.Gate = (*Memory)(nil)

func NewMemory(date string) *Memory {
	return &Memory{date: date}
}

func (m *Memory) LastClickDate() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return valid(m.date), nil
}

func (m *Memory) SetLastClickDate(date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.date = date
	return nil
}
