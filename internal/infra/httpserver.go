package infra

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPServer owns the API process's listener lifecycle: timeouts come from
// Config, Start blocks until shutdown, and Shutdown drains in-flight requests
// within the caller's deadline.
type HTTPServer struct {
	srv *http.Server
}

// NewHTTPServer wires the router into an http.Server with the configured
// timeouts. Generation downloads can be large, so the write timeout is the
// long one.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	return &HTTPServer{srv: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}}
}

// Addr returns the listen address, for startup logging.
func (s *HTTPServer) Addr() string {
	if s.srv == nil {
		return ""
	}
	return s.srv.Addr
}

// Start serves requests until Shutdown is called or the listener fails.
// A graceful shutdown is not an error to the caller.
func (s *HTTPServer) Start() error {
	if s.srv == nil {
		return nil
	}
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by ctx.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
