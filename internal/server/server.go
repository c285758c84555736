package server

import (
	"log/slog"
	"net/http"

	"pinepulse/internal/handlers"
	"pinepulse/internal/insights"
	"pinepulse/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

// Options carries the optional collaborators. A nil Advisor disables the
// insights endpoint, a nil MetricsHandler disables /metrics.
type Options struct {
	Advisor           *insights.Advisor
	MetricsHandler    http.Handler
	DefaultWindowDays int
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, templateHandlers *TemplateHandlers, opts Options) *Server {
	s := &Server{
		analytics:   analytics,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, opts.Advisor, logger),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger),
	}
	s.apiHandlers.SetDefaultWindow(opts.DefaultWindowDays)
	s.sseHandlers.SetDefaultWindow(opts.DefaultWindowDays)
	s.setupRoutes(templateHandlers, opts)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers, opts Options) {
	// Dashboard routes
	s.mux.HandleFunc("GET /", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	if opts.MetricsHandler != nil {
		s.mux.Handle("GET /metrics", opts.MetricsHandler)
	}

	// REST API endpoints
	s.mux.HandleFunc("GET /api/report", s.apiHandlers.HandleReport)
	s.mux.HandleFunc("GET /api/categories", s.apiHandlers.HandleCategoryMix)
	s.mux.HandleFunc("GET /api/insights", s.apiHandlers.HandleInsights)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/report", s.sseHandlers.HandleReport)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
