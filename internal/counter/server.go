// Package counter serves the shared click counter over HTTP.
package counter

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/pefman/break-the-wall/internal/events"
	"github.com/pefman/break-the-wall/internal/metrics"
	"github.com/pefman/break-the-wall/internal/models"
	"github.com/pefman/break-the-wall/internal/stats"
	"github.com/pefman/break-the-wall/internal/store"
)

type Options struct {
	// RateLimit is increments per second per client address; zero disables it.
	RateLimit float64
	RateBurst int
}

type Server struct {
	store   store.Store
	pub     events.Publisher
	log     logrus.FieldLogger
	limiter *clientLimiter
	now     func() time.Time
}

func NewServer(st store.Store, pub events.Publisher, log logrus.FieldLogger, opts Options) *Server {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	s := &Server{store: st, pub: pub, log: log, now: time.Now}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = newClientLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return s
}

// Router wires every endpoint, with CORS open for the widget's origin.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	r.HandleFunc("/clicks", s.handleGetClicks).Methods(http.MethodGet)
	r.HandleFunc("/click", s.handlePostClick).Methods(http.MethodPost)
	r.HandleFunc("/clicks/today", s.handleToday).Methods(http.MethodGet)
	r.HandleFunc("/api/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "unsupported path")
	})
	return withCORS(r)
}

// GET /clicks
func (s *Server) handleGetClicks(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Get(r.Context())
	if err != nil {
		s.log.WithError(err).Error("counter: read")
		writeError(w, http.StatusServiceUnavailable, "counter unavailable")
		return
	}
	writeJSON(w, models.NewClicksResponse(int(n)))
}

// POST /click
func (s *Server) handlePostClick(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.allow(clientKey(r)) {
		metrics.RecordRateLimited()
		s.log.WithField("client", clientKey(r)).Warn("counter: rate limited")
		writeError(w, http.StatusTooManyRequests, "slow down")
		return
	}
	n, err := s.store.Incr(r.Context())
	if err != nil {
		s.log.WithError(err).Error("counter: increment")
		writeError(w, http.StatusServiceUnavailable, "counter unavailable")
		return
	}
	metrics.RecordIncrement()
	stats.RecordClick()

	ev := models.ClickEvent{Clicks: int(n), At: s.now().Unix()}
	// Publishing must not hold up or fail the increment the caller already got.
	if err := s.pub.Publish(context.WithoutCancel(r.Context()), events.TopicClicked, ev); err != nil {
		s.log.WithError(err).Warn("counter: publish click event")
	}
	s.log.WithField("clicks", n).Debug("counter: increment")
	writeJSON(w, models.NewClicksResponse(int(n)))
}

// GET /clicks/today
func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	date, n := stats.ClicksToday()
	writeJSON(w, models.DailyClicks{Date: date, Clicks: n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Get(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// ========================= helpers =========================

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   http.StatusText(code),
		"message": msg,
		"status":  code,
	})
}

// simple CORS for GET/POST/OPTIONS
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ========================= rate limiting =========================

type clientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newClientLimiter(r rate.Limit, burst int) *clientLimiter {
	return &clientLimiter{limiters: make(map[string]*rate.Limiter), rate: r, burst: burst}
}

func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Cleanup forgets every client once the map gets large; a forgotten client
// just starts with a full bucket again.
func (l *clientLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.limiters) > 10000 {
		l.limiters = make(map[string]*rate.Limiter)
	}
}

// StartMaintenance prunes limiter and daily-stat state until ctx ends.
func (s *Server) StartMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if s.limiter != nil {
					s.limiter.cleanup()
				}
				stats.PruneBefore(30)
			}
		}
	}()
}
