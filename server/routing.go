package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kliewerdaniel/News02/logger"
)

// setupRoutes configures all HTTP handlers
func (s *Server) setupRoutes() {
	s.handle("GET /api/status", s.HandleStatus)
	// Upgrader needs the raw writer for Hijack
	s.mux.HandleFunc("GET /ws/status", s.corsMiddleware(s.HandleStatusWebSocket))
	s.handle("GET /api/profiles", s.HandleProfiles)

	s.handle("GET /api/jobs", s.HandleListJobs)
	s.handle("POST /api/jobs", s.HandleCreateJob)
	s.handle("GET /api/jobs/{id}", s.HandleGetJob)
	s.handle("PATCH /api/jobs/{id}", s.HandleUpdateJob)
	s.handle("DELETE /api/jobs/{id}", s.HandleDeleteJob)
	s.handle("POST /api/jobs/{id}/toggle", s.HandleToggleJob)
	s.handle("POST /api/jobs/{id}/run", s.HandleRunJob)
	s.handle("GET /api/jobs/{id}/executions", s.HandleJobExecutions)

	// Preflight for every API path
	s.mux.HandleFunc("OPTIONS /", s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {}))
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, s.corsMiddleware(s.logMiddleware(h)))
}

// corsMiddleware grants CORS to allowed origins and answers preflight
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

// checkOrigin allows requests without an Origin header and origins matching
// a configured prefix (any port)
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// logMiddleware tags each request with an id and logs its outcome
func (s *Server) logMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		ctx := logger.WithRequestID(r.Context(), requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r.WithContext(ctx))

		logger.FromContext(ctx, s.logger).Debugw("HTTP request",
			"method", r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldStatus, rec.status,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	}
}
