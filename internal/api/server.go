package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/paste-resolver/internal/config"
	"github.com/JakeFAU/paste-resolver/internal/metrics"
	"github.com/JakeFAU/paste-resolver/internal/resolver"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultRequestTimeout = 120 * time.Second

// Resolver is the service the handlers dispatch to.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) resolver.Outcome
}

// Server wires HTTP handlers to the resolver service.
type Server struct {
	router   chi.Router
	resolver Resolver
	idGen    resolver.IDGenerator
	cfg      config.Config
	logger   *zap.Logger
	draining atomic.Bool
}

// NewServer constructs a Server with middleware and routes.
func NewServer(svc Resolver, idGen resolver.IDGenerator, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		resolver: svc,
		idGen:    idGen,
		cfg:      cfg,
		logger:   logger,
	}
	timeout := time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Get("/v1/resolve", s.resolve)
		r.Get("/api/apex", s.resolve)
		r.Get("/api/apex-kazuma/bypass", s.resolve)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Drain marks the server as not ready so load balancers stop routing to it
// before shutdown.
func (s *Server) Drain() {
	s.draining.Store(true)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.draining.Load() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("resolver/api").Start(r.Context(), "resolve")
	defer span.End()

	outcome := s.resolver.Resolve(ctx, r.URL.Query().Get("url"))
	span.SetAttributes(
		attribute.String("resolver.request_id", outcome.RequestID),
		attribute.String("resolver.adapter", outcome.AdapterID),
	)
	if outcome.Err != nil {
		span.SetStatus(codes.Error, outcome.Err.Code())
	}
	status, env := resolver.Assemble(outcome)
	s.writeJSON(w, status, env)
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" && s.idGen != nil {
			id, err := s.idGen.NewID()
			if err != nil {
				s.logger.Warn("request id generation failed", zap.Error(err))
			}
			reqID = id
		}
		if reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
			r = r.WithContext(resolver.WithRequestID(r.Context(), reqID))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", resolver.RequestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeJSON(w, http.StatusInternalServerError, resolver.Envelope{
					Success:   false,
					Error:     string(resolver.KindUnexpectedError),
					Message:   "internal server error",
					RequestID: resolver.RequestIDFrom(r.Context()),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	body := fmt.Sprintf(`{"success":false,"error":%q,"message":"request timed out"}`, resolver.KindUnexpectedError)
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, body)
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeJSONWith(w, http.StatusForbidden, resolver.Envelope{
					Success:   false,
					Error:     "Unauthorized",
					Message:   "missing or invalid api key",
					RequestID: resolver.RequestIDFrom(r.Context()),
				}, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
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

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	writeJSONWith(w, status, payload, s.logger)
}

func writeJSONWith(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}
