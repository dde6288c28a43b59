// Package widget serves the Break the Wall page and its punch endpoint.
package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/pefman/break-the-wall/internal/gate"
	"github.com/pefman/break-the-wall/internal/metrics"
	"github.com/pefman/break-the-wall/internal/models"
	"github.com/pefman/break-the-wall/internal/wall"
)

const (
	visitorCookie = "wall_visitor"
	tzCookie      = "wall_tz"
)

type Options struct {
	Wall wall.Config
	// Location decides the calendar day when the browser sends no timezone.
	Location      *time.Location
	AssetsDir     string
	SecureCookies bool
	Now           func() time.Time
	// Animation builds the per-request animation; nil uses the real timers.
	Animation func() *wall.Animation
}

type Server struct {
	counter wall.Counter
	opts    Options
	hub     *Hub
	claims  *claims
	log     logrus.FieldLogger
}

func NewServer(counter wall.Counter, log logrus.FieldLogger, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Animation == nil {
		opts.Animation = wall.NewAnimation
	}
	if opts.AssetsDir == "" {
		opts.AssetsDir = "public"
	}
	return &Server{
		counter: counter,
		opts:    opts,
		hub:     NewHub(opts.Wall, log),
		claims:  newClaims(),
		log:     log,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/punch", s.handlePunch).Methods(http.MethodPost)
	r.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.ServeWS)
	r.PathPrefix("/stages/").Handler(http.StripPrefix("/stages/", http.FileServer(http.Dir(s.opts.AssetsDir))))
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// ========================= per-visitor state =========================

// visitor returns the visitor id, issuing one on first sight. It only tags
// log lines; the gate lives in its own cookie.
func (s *Server) visitor(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(visitorCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return c.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour) / time.Second),
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// location resolves the visitor's timezone: form value, then cookie, then the
// server default. A valid form value is remembered in a cookie.
func (s *Server) location(w http.ResponseWriter, r *http.Request) *time.Location {
	if tz := strings.TrimSpace(r.FormValue("tz")); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			http.SetCookie(w, &http.Cookie{
				Name:     tzCookie,
				Value:    tz,
				Path:     "/",
				MaxAge:   int(gate.CookieMaxAge / time.Second),
				HttpOnly: true,
				Secure:   s.opts.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
			return loc
		}
	}
	if c, err := r.Cookie(tzCookie); err == nil {
		if loc, err := time.LoadLocation(c.Value); err == nil {
			return loc
		}
	}
	return s.opts.Location
}

// load builds and loads the wall state for one request.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (*wall.State, logrus.FieldLogger) {
	visitor := s.visitor(w, r)
	log := s.log.WithField("visitor", visitor)
	g := &visitorGate{
		Cookie:  gate.NewCookie(w, r, s.opts.SecureCookies),
		claims:  s.claims,
		visitor: visitor,
	}
	st := wall.New(s.opts.Wall, s.counter, g,
		wall.WithClock(s.opts.Now),
		wall.WithLocation(s.location(w, r)),
		wall.WithLogger(log),
		wall.WithAnimation(s.opts.Animation()),
	)
	if err := st.Load(r.Context()); err != nil {
		metrics.RecordRemoteFailure("get")
	} else {
		s.hub.Observe(st.Count())
	}
	return st, log
}

// ========================= handlers =========================

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st, _ := s.load(w, r)
	s.render(w, st.Snapshot())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, _ := s.load(w, r)
	writeJSON(w, st.Snapshot())
}

func (s *Server) handlePunch(w http.ResponseWriter, r *http.Request) {
	st, log := s.load(w, r)
	res := st.AttemptClick(r.Context())
	metrics.RecordPunch(res.Outcome.String())

	entry := log.WithFields(logrus.Fields{"outcome": res.Outcome.String(), "clicks": res.Count})
	switch {
	case res.Outcome != wall.OutcomeAccepted:
		entry.Debug("punch: rejected")
	case res.Remote:
		s.hub.Observe(res.Count)
		entry.Info("punch: accepted")
	default:
		// The local fallback count is not the shared count; keep it off the hub.
		metrics.RecordRemoteFailure("increment")
		entry.WithError(res.Err).Warn("punch: accepted, increment failed")
	}

	if wantsJSON(r) {
		writeJSON(w, st.Snapshot())
		return
	}
	s.render(w, st.Snapshot())
}

func (s *Server) render(w http.ResponseWriter, snap wall.Snapshot) {
	data := pageData{
		Snapshot: snap,
		Message:  StatusMessage(snap.Status),
		ImageURL: stageURL(snap.Asset, snap.Stage),
		Messages: statusMessages,
	}
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		s.log.WithError(err).Error("render page")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

// ========================= live updates =========================

// Refresh polls the counter service once and pushes the count to browsers.
// The poll is authoritative, so a count below the last one seen (a reset
// service) replaces it.
func (s *Server) Refresh(ctx context.Context) {
	n, err := s.counter.GetCount(ctx)
	if err != nil {
		metrics.RecordRemoteFailure("get")
		s.log.WithError(err).Debug("refresh: count fetch failed")
		return
	}
	if s.hub.Set(n) {
		s.log.WithField("clicks", n).Debug("refresh: new count")
	}
}

// PruneClaims forgets punch claims too old to block any visitor. A visitor's
// local day is never more than one day behind UTC.
func (s *Server) PruneClaims() int {
	cutoff := wall.DateKey(s.opts.Now().UTC().AddDate(0, 0, -1))
	n := s.claims.prune(cutoff)
	if n > 0 {
		s.log.WithField("pruned", n).Debug("claims: pruned")
	}
	return n
}

// StartRefresh schedules Refresh on a cron spec such as "@every 30s", plus an
// hourly PruneClaims. The caller stops the returned scheduler.
func (s *Server) StartRefresh(spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	if _, err := c.AddFunc("@hourly", func() { s.PruneClaims() }); err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

// Follow pushes counts from click events until the channel closes or ctx
// ends.
func (s *Server) Follow(ctx context.Context, events <-chan models.ClickEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.hub.Observe(ev.Clicks)
		}
	}
}

// ========================= helpers =========================

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(v)
}
