package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/odds-history/internal/canonical"
	"github.com/rickgao/odds-history/internal/deviation"
	"github.com/rickgao/odds-history/internal/model"
)

// DefaultWatchInterval is how often radar.json is checked for changes.
const DefaultWatchInterval = 5 * time.Second

// Options configures a Server.
type Options struct {
	Root           string   // storage root holding the odds/ tree
	AllowedOrigins []string // CORS origins; empty allows any
	WatchInterval  time.Duration
	Gatherer       prometheus.Gatherer // nil selects prometheus.DefaultGatherer
}

// Server serves read-only radar endpoints.
type Server struct {
	opts     Options
	router   chi.Router
	hub      *hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New creates a Server and its routes.
func New(opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = DefaultWatchInterval
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		opts:   opts,
		hub:    newHub(),
		logger: logger.With("component", "radar_server"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/radar", s.handleRadar)
	r.Get("/canonical/{league}/{fixture}", s.handleCanonical)
	r.Get("/ws", s.handleWS)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if radar, err := deviation.ReadRadar(s.opts.Root); err == nil {
		resp["radar_generated_at"] = radar.GeneratedAt
		resp["radar_items"] = len(radar.Items)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRadar(w http.ResponseWriter, r *http.Request) {
	radar, err := deviation.ReadRadar(s.opts.Root)
	if err != nil {
		s.readError(w, "radar", err)
		return
	}
	writeJSON(w, http.StatusOK, radar)
}

func (s *Server) handleCanonical(w http.ResponseWriter, r *http.Request) {
	league := chi.URLParam(r, "league")
	fixture := chi.URLParam(r, "fixture")
	if !model.ValidID(league) || !model.ValidID(fixture) {
		writeError(w, http.StatusBadRequest, "invalid league or fixture id")
		return
	}
	rec, err := canonical.Read(s.opts.Root, league, fixture)
	if err != nil {
		s.readError(w, "canonical record", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) readError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	s.logger.Error("read failed", "what", what, "error", err)
	writeError(w, http.StatusInternalServerError, "failed to read "+what)
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
