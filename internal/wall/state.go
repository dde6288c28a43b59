// Package wall holds the state behind the breakable wall: the shared click
// count, the stage it maps to, and the one-punch-per-day gate.
package wall

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pefman/break-the-wall/internal/logging"
)

// Counter is the remote store of the shared click count.
type Counter interface {
	GetCount(ctx context.Context) (int, error)
	Increment(ctx context.Context) (int, error)
}

// ErrGateTaken is returned by a Gate whose client already spent the given
// day elsewhere, for instance through a concurrent request.
var ErrGateTaken = errors.New("wall: daily punch already claimed")

// Gate persists the last calendar day a punch was accepted for one client.
// An empty date with a nil error means the client never punched.
// SetLastClickDate may return ErrGateTaken to refuse the day.
type Gate interface {
	LastClickDate() (string, error)
	SetLastClickDate(date string) error
}

// ========================= Outcomes =========================

type Outcome int

const (
	// OutcomeAccepted means the gate was consumed and an increment was issued.
	OutcomeAccepted Outcome = iota + 1
	OutcomeGateUsed
	OutcomeComplete
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeGateUsed:
		return "gate_used"
	case OutcomeComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ClickResult reports what AttemptClick did. Remote is true when Count came
// from the counter service; Err holds the remote failure that forced the
// local fallback.
type ClickResult struct {
	Outcome Outcome
	Count   int
	Remote  bool
	Err     error
}

type Status string

const (
	StatusReady     Status = "ready"
	StatusUsedToday Status = "used_today"
	StatusComplete  Status = "complete"
)

// Snapshot is everything a renderer needs to draw the wall.
type Snapshot struct {
	Clicks   int    `json:"clicks"`
	Max      int    `json:"max"`
	Stage    int    `json:"stage"`
	Asset    string `json:"asset"`
	GateUsed bool   `json:"gate_used"`
	Status   Status `json:"status"`
	Shaking  bool   `json:"shaking"`
	Dusting  bool   `json:"dusting"`
}

// ========================= State =========================

type State struct {
	cfg     Config
	counter Counter
	gate    Gate
	anim    *Animation
	now     func() time.Time
	loc     *time.Location
	log     logrus.FieldLogger

	mu       sync.Mutex
	count    int
	gateUsed bool
}

type Option func(*State)

func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithLocation sets the timezone that decides where a calendar day ends.
func WithLocation(loc *time.Location) Option {
	return func(s *State) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *State) { s.log = log }
}

func WithAnimation(a *Animation) Option {
	return func(s *State) { s.anim = a }
}

func New(cfg Config, counter Counter, gate Gate, opts ...Option) *State {
	s := &State{
		cfg:     cfg,
		counter: counter,
		gate:    gate,
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.anim == nil {
		s.anim = NewAnimation()
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	return s
}

func (s *State) today() string {
	return DateKey(s.now().In(s.loc))
}

func (s *State) clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > s.cfg.Max {
		return s.cfg.Max
	}
	return n
}

// Load reads the shared count and the gate marker, one attempt each. A failed
// fetch leaves the count at zero; the returned error is only informational
// and the state is usable either way.
func (s *State) Load(ctx context.Context) error {
	n, fetchErr := s.counter.GetCount(ctx)
	if fetchErr != nil {
		s.log.WithError(fetchErr).Debug("wall: count fetch failed, starting from zero")
		n = 0
	}

	last, err := s.gate.LastClickDate()
	if err != nil {
		s.log.WithError(err).Warn("wall: read gate marker")
		last = ""
	}
	today := s.today()

	s.mu.Lock()
	s.count = s.clamp(n)
	s.gateUsed = last != "" && last == today
	s.mu.Unlock()
	return fetchErr
}

// AttemptClick spends today's punch. The gate is written before the remote
// increment starts so a second call can never issue another increment.
func (s *State) AttemptClick(ctx context.Context) ClickResult {
	s.mu.Lock()
	if s.gateUsed {
		count := s.count
		s.mu.Unlock()
		return ClickResult{Outcome: OutcomeGateUsed, Count: count}
	}
	if s.count >= s.cfg.Max {
		count := s.count
		s.mu.Unlock()
		return ClickResult{Outcome: OutcomeComplete, Count: count}
	}
	today := s.today()
	if err := s.gate.SetLastClickDate(today); err != nil {
		if errors.Is(err, ErrGateTaken) {
			s.gateUsed = true
			count := s.count
			s.mu.Unlock()
			return ClickResult{Outcome: OutcomeGateUsed, Count: count}
		}
		s.log.WithError(err).WithField("date", today).Warn("wall: persist gate marker")
	}
	s.gateUsed = true
	s.anim.Trigger()
	s.mu.Unlock()

	n, err := s.counter.Increment(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.count = min(s.count+1, s.cfg.Max)
		s.log.WithError(err).WithField("count", s.count).Info("wall: increment failed, counting locally")
		return ClickResult{Outcome: OutcomeAccepted, Count: s.count, Err: err}
	}
	s.count = s.clamp(n)
	return ClickResult{Outcome: OutcomeAccepted, Count: s.count, Remote: true}
}

func (s *State) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *State) GateUsed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateUsed
}

func (s *State) Stage() int {
	return s.cfg.StageForCount(s.Count())
}

func (s *State) Animation() *Animation { return s.anim }

// Status picks which of the three messages to show. Completion wins over the
// gate.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *State) statusLocked() Status {
	switch {
	case s.count >= s.cfg.Max:
		return StatusComplete
	case s.gateUsed:
		return StatusUsedToday
	default:
		return StatusReady
	}
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	count, used, status := s.count, s.gateUsed, s.statusLocked()
	s.mu.Unlock()
	return Snapshot{
		Clicks:   count,
		Max:      s.cfg.Max,
		Stage:    s.cfg.StageForCount(count),
		Asset:    s.cfg.AssetForCount(count),
		GateUsed: used,
		Status:   status,
		Shaking:  s.anim.Shaking(),
		Dusting:  s.anim.Dusting(),
	}
}
