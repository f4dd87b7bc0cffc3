package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vbonduro/nutriai/internal/audit"
	"github.com/vbonduro/nutriai/internal/domain"
	"github.com/vbonduro/nutriai/internal/mcptools"
)

type Server struct {
	gateway         mcptools.Gateway
	logs            audit.Reader
	tools           *mcptools.Tools
	defaultProvider domain.Provider
	router          *chi.Mux
	logger          *slog.Logger
}

func NewServer(gw mcptools.Gateway, logs audit.Reader, defaultProvider domain.Provider, logger *slog.Logger) *Server {
	s := &Server{
		gateway:         gw,
		logs:            logs,
		tools:           mcptools.New(gw, logs, defaultProvider),
		defaultProvider: defaultProvider,
		router:          chi.NewRouter(),
		logger:          logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler { return requestLogger(s.logger, next) })
	r.Use(securityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "nutriai")
	})

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/recipes", s.handleRecipes)
		r.Post("/calories/photo", s.handleCaloriesPhoto)
		r.Post("/calories/text", s.handleCaloriesText)
		r.Post("/plans", s.handlePlan)
		r.Post("/text", s.handleText)
		r.Get("/logs", s.handleLogs)
	})
	r.Route("/mcp/tools", func(r chi.Router) {
		r.Get("/", s.handleListTools)
		r.Post("/call", s.handleCallTool)
	})
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to the shutdown grace period.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
