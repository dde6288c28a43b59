package widget

import (
	"fmt"
	"sync"

	"github.com/pefman/break-the-wall/internal/gate"
	"github.com/pefman/break-the-wall/internal/wall"
)

// claims remembers the last day each visitor spent their punch on this
// server. The cookie alone cannot stop two requests that race past it with
// the same stale cookie.
type claims struct {
	mu   sync.Mutex
	last map[string]string // visitor id -> YYYY-MM-DD
}

func newClaims() *claims {
	return &claims{last: make(map[string]string)}
}

// claim takes date for visitor. It fails when the visitor already claimed
// that day or a later one.
func (c *claims) claim(visitor, date string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.last[visitor]; ok && prev >= date {
		return false
	}
	c.last[visitor] = date
	return true
}

func (c *claims) lastDate(visitor string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[visitor]
}

// prune drops claims for days before cutoff and reports how many went.
func (c *claims) prune(cutoff string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for v, d := range c.last {
		if d < cutoff {
			delete(c.last, v)
			n++
		}
	}
	return n
}

func (c *claims) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}

// visitorGate is the cookie gate backed by the server-side claim for the
// visitor. The claim is taken before the cookie is written, so only one of
// several concurrent punches gets through.
type visitorGate struct {
	*gate.Cookie
	claims  *claims
	visitor string
}

var _ wall.Gate = (*visitorGate)(nil)

func (g *visitorGate) LastClickDate() (string, error) {
	date, err := g.Cookie.LastClickDate()
	if err != nil {
		return "", err
	}
	if claimed := g.claims.lastDate(g.visitor); claimed > date {
		date = claimed
	}
	return date, nil
}

func (g *visitorGate) SetLastClickDate(date string) error {
	if !g.claims.claim(g.visitor, date) {
		return fmt.Errorf("visitor %s on %s: %w", g.visitor, date, wall.ErrGateTaken)
	}
	return g.Cookie.SetLastClickDate(date)
}
