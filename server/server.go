// Package server exposes the scheduler's status and job management over
// HTTP while `news02 scheduler start` runs.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/logger"
	"github.com/kliewerdaniel/News02/schedule"
)

// ShutdownTimeout bounds graceful shutdown of open requests
const ShutdownTimeout = 5 * time.Second

// ProfileLister lists known feed profiles
type ProfileLister interface {
	Names() ([]string, error)
}

// Deps are the components the handlers operate on
type Deps struct {
	Jobs       *schedule.Store
	Executions *schedule.ExecutionStore
	Ticker     *schedule.Ticker
	Profiles   ProfileLister // Optional
}

// Server serves the status/jobs API
type Server struct {
	jobs       *schedule.Store
	executions *schedule.ExecutionStore
	ticker     *schedule.Ticker
	profiles   ProfileLister
	logger     *zap.SugaredLogger

	allowedOrigins []string
	statusPoll     time.Duration

	mux        *http.ServeMux
	httpServer *http.Server
}

// New creates a server. allowedOrigins are origin prefixes granted CORS and
// websocket access; requests without an Origin header are always allowed.
func New(deps Deps, allowedOrigins []string, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = logger.Logger
	}
	s := &Server{
		jobs:           deps.Jobs,
		executions:     deps.Executions,
		ticker:         deps.Ticker,
		profiles:       deps.Profiles,
		logger:         log.Named("server"),
		allowedOrigins: allowedOrigins,
		statusPoll:     500 * time.Millisecond,
		mux:            http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}

	s.httpServer = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()
	s.logger.Infow("HTTP server listening", logger.FieldAddress, ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("HTTP server shutdown incomplete", logger.FieldError, err)
		return errors.Wrap(err, "http server shutdown")
	}
	s.logger.Infow("HTTP server stopped")
	return nil
}
