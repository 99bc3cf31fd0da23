package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/boamp-console/internal/app"
	"github.com/JakeFAU/boamp-console/internal/jobs"
	"github.com/JakeFAU/boamp-console/internal/metrics"
	"github.com/JakeFAU/boamp-console/internal/render"
)

// Backend is the part of the extraction backend the HTTP surface needs.
type Backend interface {
	ExportURL(processID string, kind jobs.ExportKind) string
	Health(ctx context.Context) error
}

// Config tunes the server.
type Config struct {
	RequestTimeout time.Duration
	AuthEnabled    bool
	APIKey         string
	Logger         *zap.Logger
}

// Server wires HTTP handlers to the controller.
type Server struct {
	router   chi.Router
	console  *app.Controller
	backend  Backend
	renderer *render.Renderer
	logger   *zap.Logger

	// authEnabled makes rendered download links carry the caller's key.
	authEnabled bool
}

// NewServer constructs a Server with middleware and routes.
func NewServer(console *app.Controller, backend Backend, renderer *render.Renderer, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	s := &Server{
		console:     console,
		backend:     backend,
		renderer:    renderer,
		logger:      logger.Named("api"),
		authEnabled: cfg.AuthEnabled,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		// http.TimeoutHandler hides the Hijacker the upgrade needs.
		r.Get("/ws", s.serveWS)

		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(timeout))
			r.Get("/", s.page)

			r.Route("/fragments", func(r chi.Router) {
				r.Get("/selection", s.selectionFragment)
				r.Get("/job", s.jobFragment)
				r.Get("/results", s.resultsFragment)
				r.Get("/notification", s.notificationFragment)
			})

			r.Route("/api", func(r chi.Router) {
				r.Get("/state", s.state)
				r.Get("/departments", s.departments)
				r.Get("/keywords", s.keywords)

				r.Route("/map", func(r chi.Router) {
					r.Get("/", s.mapState)
					r.Get("/features", s.mapFeatures)
					r.Post("/features/{code}/{action}", s.featureAction)
				})

				r.Route("/selection", func(r chi.Router) {
					r.Get("/", s.selection)
					r.Delete("/", s.clearSelection)
					r.Post("/predefined", s.selectPredefined)
					r.Post("/{code}", s.addDepartment)
					r.Delete("/{code}", s.removeDepartment)
				})

				r.Route("/jobs", func(r chi.Router) {
					r.Post("/", s.submitJob)
					r.Get("/current", s.currentJob)
				})
				r.Get("/results", s.results)
				r.Delete("/notifications/{id}", s.dismissNotification)
			})

			r.Get("/download/{process_id}", s.download(jobs.ExportFull))
			r.Get("/download-summary/{process_id}", s.download(jobs.ExportSummary))
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.backend == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	if err := s.backend.Health(r.Context()); err != nil {
		s.logger.Warn("backend not ready", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Debug("request completed",
				zap.String("request_id", requestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.String("request_id", requestID(r.Context())),
						zap.Any("error", rec),
						zap.Stack("stack"),
					)
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

// requestKey returns the API key presented in the X-API-Key header or the
// api_key query parameter.
func requestKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requestKey(r) != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
