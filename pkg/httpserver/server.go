package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

type settings struct {
	listenAddr      string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	base            *http.Server
	log             *slog.Logger
	onStart         []func(*slog.Logger)
	onStop          []func(*slog.Logger)
}

func defaultSettings() *settings {
	return &settings{
		listenAddr:      ":8080",
		shutdownTimeout: 5 * time.Second,
	}
}

// Server runs the postflow HTTP surface with graceful shutdown on context
// cancellation or SIGINT/SIGTERM. A Server runs at most once.
type Server struct {
	cfg      *settings
	srv      *http.Server
	stopOnce sync.Once
	mu       sync.Mutex
}

// New returns a server configured by the given options.
func New(opts ...Option) *Server {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.log == nil {
		cfg.log = slog.New(slog.DiscardHandler)
	}
	return &Server{cfg: cfg}
}

// buildServer assembles the http.Server for this run. Values already set on
// a WithServer instance win over package defaults.
func (s *Server) buildServer(handler http.Handler) *http.Server {
	srv := s.cfg.base
	if srv == nil {
		srv = &http.Server{}
	}
	if srv.Addr == "" {
		srv.Addr = s.cfg.listenAddr
	}
	if srv.ReadTimeout == 0 && s.cfg.readTimeout != 0 {
		srv.ReadTimeout = s.cfg.readTimeout
	}
	if srv.WriteTimeout == 0 && s.cfg.writeTimeout != 0 {
		srv.WriteTimeout = s.cfg.writeTimeout
	}
	if srv.IdleTimeout == 0 && s.cfg.idleTimeout != 0 {
		srv.IdleTimeout = s.cfg.idleTimeout
	}
	srv.Handler = handler
	return srv
}

// Run serves handler until ctx is cancelled, a termination signal arrives,
// or the listener fails. Startup failures are wrapped with ErrStart. Run
// blocks, so it slots directly into an errgroup alongside the job worker
// and publish scheduler.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errors.Join(ErrStart, errors.New("server already running"))
	}
	s.srv = s.buildServer(handler)
	srv := s.srv
	s.mu.Unlock()

	for _, hook := range s.cfg.onStart {
		hook(s.cfg.log)
	}
	s.cfg.log.Info("http server listening", slog.String("addr", srv.Addr))

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	var err error
	select {
	case <-ctx.Done():
		_ = s.Shutdown(context.Background())
		err = <-serveErr
	case <-sig:
		_ = s.Shutdown(context.Background())
		err = <-serveErr
	case err = <-serveErr:
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrStart, err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured shutdown timeout
// and runs the stop hooks. Safe to call more than once; shutdown errors are
// wrapped with ErrShutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		srv := s.srv
		s.mu.Unlock()
		if srv == nil {
			return
		}

		ctx, cancel := context.WithTimeout(ctx, s.cfg.shutdownTimeout)
		defer cancel()
		err = srv.Shutdown(ctx)

		for _, hook := range s.cfg.onStop {
			hook(s.cfg.log)
		}
		s.cfg.log.Info("http server stopped")
	})

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrShutdown, err)
	}
	return nil
}
