package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"adbridge/internal/config"
	"adbridge/pkg/logging"
)

// HealthBody is the fixed liveness response.
const HealthBody = "adbridge is running"

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
)

// Routes are the handlers mounted by the server. Nil handlers are not
// mounted.
type Routes struct {
	Callback http.Handler
	Webhook  http.Handler
	Metrics  http.Handler
}

// Server serves the health check, the OAuth callback and, depending on
// configuration, the Telegram webhook and metrics.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
}

// New builds the route table. limiter guards the callback route only; a nil
// limiter disables throttling.
func New(cfg config.ServerConfig, routes Routes, limiter *RateLimiter) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", handleHealth)

	if routes.Callback != nil {
		mux.Handle(cfg.CallbackPath, limiter.Middleware(routes.Callback))
	}
	if routes.Webhook != nil && cfg.WebhookPath != "" {
		mux.Handle(cfg.WebhookPath, routes.Webhook)
	}
	if routes.Metrics != nil {
		mux.Handle("GET /metrics", routes.Metrics)
	}

	return &Server{cfg: cfg, handler: recoverer(mux)}
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is done, then
// shuts down gracefully. ready, if non-nil, is called once the listener is
// bound.
func (s *Server) Run(ctx context.Context, ready func(addr net.Addr)) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln, ready)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, ready func(addr net.Addr)) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("Server", "Listening on %s", ln.Addr())
		if ready != nil {
			ready(ln.Addr())
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		logging.Info("Server", "Shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(HealthBody))
}

// recoverer turns a handler panic into a logged 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.Error("Server", fmt.Errorf("panic: %v", rec), "Recovered from panic serving %s %s", r.Method, r.URL.Path)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
