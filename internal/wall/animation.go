package wall

import (
	"sync"
	"time"
)

const (
	ShakeDuration = 250 * time.Millisecond
	DustDuration  = 600 * time.Millisecond
)

// Animation holds the two presentational flags started by an accepted punch.
// Each flag has its own timer and clears itself when the timer fires.
type Animation struct {
	shakeFor time.Duration
	dustFor  time.Duration

	mu         sync.Mutex
	shaking    bool
	dusting    bool
	shakeTimer *time.Timer
	dustTimer  *time.Timer
	gen        uint64
}

func NewAnimation() *Animation {
	return NewAnimationWithDurations(ShakeDuration, DustDuration)
}

func NewAnimationWithDurations(shake, dust time.Duration) *Animation {
	return &Animation{shakeFor: shake, dustFor: dust}
}

// Trigger starts both flags. A flag that is already running gets a fresh timer.
func (a *Animation) Trigger() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shaking = true
	a.dusting = true
	if a.shakeTimer != nil {
		a.shakeTimer.Stop()
	}
	if a.dustTimer != nil {
		a.dustTimer.Stop()
	}
	a.gen++
	gen := a.gen
	a.shakeTimer = time.AfterFunc(a.shakeFor, func() { a.clear(gen, &a.shaking) })
	a.dustTimer = time.AfterFunc(a.dustFor, func() { a.clear(gen, &a.dusting) })
}

// clear drops a flag unless a newer Trigger has taken over.
func (a *Animation) clear(gen uint64, flag *bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen == a.gen {
		*flag = false
	}
}

func (a *Animation) Shaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shaking
}

func (a *Animation) Dusting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dusting
}

// Stop cancels pending timers and clears both flags.
func (a *Animation) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.shakeTimer != nil {
		a.shakeTimer.Stop()
	}
	if a.dustTimer != nil {
		a.dustTimer.Stop()
	}
	a.gen++
	a.shaking, a.dusting = false, false
}
