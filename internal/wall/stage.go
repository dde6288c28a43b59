package wall

import (
	"errors"
	"fmt"
	"time"
)

// MaxClicks is the number of punches it takes to bring the wall down.
const MaxClicks = 500

// DefaultStages are the wall images from undamaged to fully broken.
var DefaultStages = []string{
	"muur.png",
	"MUUR 1.png",
	"MUUR 2.png",
	"MUUR 3.png",
	"MUUR 4.png",
	"MUUR 5.png",
	"MUUR 6.png",
}

// DateLayout is how the daily gate marker is serialized.
const DateLayout = "2006-01-02"

// Config fixes the shape of the wall. It is not editable at runtime.
type Config struct {
	Max    int
	Stages []string
}

func DefaultConfig() Config {
	stages := make([]string, len(DefaultStages))
	copy(stages, DefaultStages)
	return Config{Max: MaxClicks, Stages: stages}
}

func (c Config) Validate() error {
	if c.Max <= 0 {
		return fmt.Errorf("wall: max clicks must be positive, got %d", c.Max)
	}
	if len(c.Stages) == 0 {
		return errors.New("wall: at least one stage asset is required")
	}
	return nil
}

// StageForCount maps a click count onto an index into a sequence of n stages.
// Zero (or less) always selects the undamaged wall; anything at or past max
// selects the last stage. Integer arithmetic keeps the boundaries exact:
// count*(n-1)/max == floor(count/max*(n-1)) for non-negative inputs, and
// count < max keeps the quotient below n-1, so only max itself reaches the
// last stage.
func StageForCount(count, max, n int) int {
	if n <= 1 || count <= 0 || max <= 0 {
		return 0
	}
	if count >= max {
		return n - 1
	}
	return count * (n - 1) / max
}

// StageForCount applies the package function with this wall's shape.
func (c Config) StageForCount(count int) int {
	return StageForCount(count, c.Max, len(c.Stages))
}

// AssetForCount returns the stage image for count.
func (c Config) AssetForCount(count int) string {
	if len(c.Stages) == 0 {
		return ""
	}
	return c.Stages[c.StageForCount(count)]
}

// DateKey formats t as a calendar day in its own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}
