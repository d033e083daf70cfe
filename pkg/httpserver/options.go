package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures the server. Options with invalid arguments panic at
// construction so a misconfigured daemon fails before it starts serving.
type Option func(*settings)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("WithAddr: addr cannot be empty")
	}
	return func(c *settings) { c.listenAddr = addr }
}

// WithReadTimeout caps how long the server reads a request.
func WithReadTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithReadTimeout: duration must be > 0")
	}
	return func(c *settings) { c.readTimeout = d }
}

// WithWriteTimeout caps how long the server writes a response.
func WithWriteTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithWriteTimeout: duration must be > 0")
	}
	return func(c *settings) { c.writeTimeout = d }
}

// WithIdleTimeout caps how long a keep-alive connection waits for its next
// request.
func WithIdleTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithIdleTimeout: duration must be > 0")
	}
	return func(c *settings) { c.idleTimeout = d }
}

// WithShutdownTimeout bounds how long Shutdown waits for in-flight
// requests to drain.
func WithShutdownTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithShutdownTimeout: duration must be > 0")
	}
	return func(c *settings) { c.shutdownTimeout = d }
}

// WithServer runs on the provided http.Server. Its Handler is replaced at
// Run; timeout fields already set on it take precedence over package
// defaults.
func WithServer(srv *http.Server) Option {
	if srv == nil {
		panic("WithServer: nil server")
	}
	return func(c *settings) { c.base = srv }
}

// WithLogger sets the server's logger. A nil logger silences the server.
func WithLogger(l *slog.Logger) Option {
	return func(c *settings) { c.log = l }
}

// WithStartHook registers a callback that runs before the server begins
// listening.
func WithStartHook(h func(*slog.Logger)) Option {
	if h == nil {
		panic("WithStartHook: nil hook")
	}
	return func(c *settings) { c.onStart = append(c.onStart, h) }
}

// WithStopHook registers a callback that runs after the server drains.
func WithStopHook(h func(*slog.Logger)) Option {
	if h == nil {
		panic("WithStopHook: nil hook")
	}
	return func(c *settings) { c.onStop = append(c.onStop, h) }
}
