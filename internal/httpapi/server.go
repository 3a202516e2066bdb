// Package httpapi exposes the service surface: health and status
// reads, the event journal, admin session control, Prometheus metrics
// and a WebSocket event stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Arkyalys/YouTubeEvent/internal/core"
	"github.com/Arkyalys/YouTubeEvent/internal/session"
	"github.com/Arkyalys/YouTubeEvent/internal/sink"
)

// SessionControl is the manager surface the admin endpoints drive.
type SessionControl interface {
	Start(ctx context.Context, videoID string) error
	Stop() error
	Status() session.Status
}

// Journal is the event history surface.
type Journal interface {
	ListEvents(ctx context.Context, q sink.Query) ([]core.Event, error)
	CountEvents(ctx context.Context, q sink.Query) (int64, error)
	Ping() error
}

type Options struct {
	Addr string
	// RateRPS and RateBurst bound per-client request rates; zero
	// disables limiting.
	RateRPS   int
	RateBurst int
	// Origins lists allowed CORS origins, "*" for any.
	Origins []string
	Build   BuildInfo
}

type Server struct {
	httpServer *http.Server
	control    SessionControl
	journal    Journal
	metrics    *Metrics
	log        *slog.Logger
	opts       Options
	limiter    *ipRateLimiter
	cors       *corsPolicy

	mu      sync.Mutex
	clients map[chan core.Event]struct{}
	closed  bool
}

func New(control SessionControl, journal Journal, metrics *Metrics, log *slog.Logger, opts Options) *Server {
	if log == nil {
		log = slog.Default()
	}
	srv := &Server{
		control: control,
		journal: journal,
		metrics: metrics,
		log:     log,
		opts:    opts,
		limiter: newIPRateLimiter(opts.RateRPS, opts.RateBurst),
		cors:    newCORSPolicy(opts.Origins),
		clients: make(map[chan core.Event]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/status", srv.handleStatus)
	mux.HandleFunc("/info", srv.handleInfo)
	mux.HandleFunc("/events", srv.handleEvents)
	mux.HandleFunc("/events/count", srv.handleEventCount)
	mux.HandleFunc("/events/stream", srv.handleStream)
	mux.HandleFunc("/admin/session/start", srv.handleSessionStart)
	mux.HandleFunc("/admin/session/stop", srv.handleSessionStop)
	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	srv.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           srv.wrap(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv
}

// Publish delivers an event to connected stream clients. Server
// satisfies sink.Sink so it can sit on the fanout next to the journal.
func (s *Server) Publish(ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	for ch := range s.clients {
		select {
		case ch <- ev:
		default:
			s.metrics.IncBroadcastDrops()
		}
	}
	return nil
}

func (s *Server) Close() error { return nil }

// wrap applies access logging, CORS and rate limiting around the mux.
func (s *Server) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := newResponseRecorder(w)

		if handled, status := s.cors.handlePreflight(rec, r); handled {
			s.observe(r, status, start)
			return
		}
		if !s.cors.applyHeaders(rec, r) {
			http.Error(rec, "origin not allowed", http.StatusForbidden)
			s.observe(r, http.StatusForbidden, start)
			return
		}
		if !s.limiter.Allow(remoteIP(r)) {
			s.metrics.IncRateLimited()
			http.Error(rec, "rate limit exceeded", http.StatusTooManyRequests)
			s.observe(r, http.StatusTooManyRequests, start)
			return
		}

		next.ServeHTTP(rec, r)
		s.observe(r, rec.Status(), start)
	})
}

func (s *Server) observe(r *http.Request, status int, start time.Time) {
	dur := time.Since(start)
	s.metrics.ObserveRequest(r.URL.Path, r.Method, status, dur)
	s.log.Debug("http request", "path", r.URL.Path, "method", r.Method, "status", status, "dur", dur)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if s.journal != nil {
		if err := s.journal.Ping(); err != nil {
			http.Error(w, "journal unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.control.Status())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q, err := parseEventQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	events, err := s.journal.ListEvents(r.Context(), q)
	if err != nil {
		s.log.Error("journal list failed", "err", err)
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []core.Event{}
	}
	writeJSON(w, events)
}

func (s *Server) handleEventCount(w http.ResponseWriter, r *http.Request) {
	q, err := parseEventQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := s.journal.CountEvents(r.Context(), q)
	if err != nil {
		s.log.Error("journal count failed", "err", err)
		http.Error(w, "count error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"count": n})
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	videoID := r.URL.Query().Get("video")
	if videoID == "" {
		http.Error(w, "video parameter required", http.StatusBadRequest)
		return
	}
	if err := s.control.Start(r.Context(), videoID); err != nil {
		if errors.Is(err, session.ErrSessionActive) {
			http.Error(w, "session already active", http.StatusConflict)
			return
		}
		s.log.Error("session start failed", "video", videoID, "err", err)
		http.Error(w, "start failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"status": "started", "video_id": videoID})
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := s.control.Stop(); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			http.Error(w, "no active session", http.StatusNotFound)
			return
		}
		http.Error(w, "stop failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "stopped"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) Start() error {
	s.log.Info("http api listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for ch := range s.clients {
		close(ch)
	}
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}
