// Package api exposes the scheduler's control surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ibeckermayer/sharpwatch/internal/app"
	"github.com/ibeckermayer/sharpwatch/internal/quality"
	"github.com/ibeckermayer/sharpwatch/internal/scheduler"
	"github.com/ibeckermayer/sharpwatch/internal/store"
	"github.com/ibeckermayer/sharpwatch/internal/types"
)

// Controller is the slice of *scheduler.Scheduler the API drives.
type Controller interface {
	Status() scheduler.Status
	TriggerImmediate(ctx context.Context) (*types.ScrapingSession, app.Counts, error)
	UpdateFrequency() time.Duration
	Sessions(ctx context.Context, n int) ([]types.ScrapingSession, error)
}

// Server holds the handler dependencies.
type Server struct {
	ctrl    Controller
	quality *quality.Monitor
	store   store.Store
	live    http.Handler
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Server. store may be nil, in which case the history
// endpoints answer 503.
func New(ctrl Controller, q *quality.Monitor, s store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ctrl: ctrl, quality: q, store: s, logger: logger, now: time.Now}
}

// SetLiveFeed mounts h at /api/alerts/live. Call before Router.
func (s *Server) SetLiveFeed(h http.Handler) { s.live = h }

// Router builds the chi router. origins lists the allowed CORS origins.
func (s *Server) Router(origins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/scraper", func(r chi.Router) {
			r.Get("/status", s.status)
			r.Post("/trigger", s.trigger)
			r.Post("/frequency", s.frequency)
			r.Get("/quality", s.qualityReport)
			r.Get("/sessions", s.sessions)
		})
		if s.live != nil {
			r.Handle("/alerts/live", s.live)
		}
		r.Get("/movements", s.movements)
		r.Get("/tailing", s.tailing)
	})
	return r
}

// envelope is the response shape of every endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.ctrl.Status())
}

// trigger runs a manual session synchronously. A session already in
// flight is a conflict, not a failure.
func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	sess, counts, err := s.ctrl.TriggerImmediate(r.Context())
	if errors.Is(err, scheduler.ErrSessionRunning) {
		s.respondError(w, http.StatusConflict, "a scraping session is already running", nil)
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "scraping session failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id":                 sess.ID,
		"props_scraped":              counts.PropsScraped,
		"sentiment_points_collected": counts.SentimentPoints,
		"movements_detected":         counts.Movements,
		"reverse_line_movements":     counts.ReverseMoves,
		"tailing_alerts":             counts.TailingAlerts,
		"signals":                    counts.Signals,
		"sources":                    counts.Sources,
		"errors":                     counts.Errors,
		"timestamp":                  s.now().UTC(),
	})
}

func (s *Server) frequency(w http.ResponseWriter, r *http.Request) {
	interval := s.ctrl.UpdateFrequency()
	st := s.ctrl.Status()
	respondJSON(w, http.StatusOK, map[string]any{
		"props_interval":     interval.String(),
		"sentiment_interval": st.Sentiment.Interval,
		"is_peak_time":       st.IsPeakTime,
	})
}

func (s *Server) qualityReport(w http.ResponseWriter, r *http.Request) {
	if s.quality == nil {
		s.respondError(w, http.StatusServiceUnavailable, "quality monitoring is not configured", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"metrics":     s.quality.Rollup(),
		"diagnostics": s.quality.Diagnostics(),
		"insights":    s.quality.ActionableInsights(),
	})
}

func (s *Server) sessions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := min(parseIntParam(r, "limit", 20), 200)
	sessions, err := s.ctrl.Sessions(ctx, limit)
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "failed to retrieve sessions", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) movements(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusServiceUnavailable, "no store configured", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := min(parseIntParam(r, "limit", 50), 500)
	moves, err := store.RecentMovements(ctx, s.store, limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to retrieve movements", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"movements": moves,
		"count":     len(moves),
	})
}

func (s *Server) tailing(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.respondError(w, http.StatusServiceUnavailable, "no store configured", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snap, err := store.LatestTailing(ctx, s.store)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to retrieve tailing snapshot", err)
		return
	}
	if snap == nil {
		s.respondError(w, http.StatusNotFound, "no tailing snapshot yet", nil)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// requestLogger logs one line per request once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("api: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()))
	})
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Success: true, Data: data}); err != nil {
		slog.Error("api: encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		s.logger.Error("api: "+message, "error", err)
		message = message + ": " + err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Error: message}); err != nil {
		s.logger.Error("api: encode error response", "error", err)
	}
}
