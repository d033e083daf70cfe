// Package httpserver wraps net/http with graceful shutdown, configurable
// timeouts, lifecycle hooks, and health-check handlers.
//
// Run blocks until the context is cancelled or an interrupt/TERM signal
// arrives, then drains in-flight requests within the configured shutdown
// deadline. Construction goes through New or NewFromConfig with functional
// options (WithAddr, WithReadTimeout, WithLogger, ...); WithStartHook and
// WithStopHook run side effects around the server lifecycle.
//
//	srv := httpserver.New(
//		httpserver.WithAddr(":8080"),
//		httpserver.WithShutdownTimeout(10*time.Second),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//		slog.Error("server stopped", "err", err)
//	}
//
// Startup failures are wrapped with ErrStart and shutdown failures with
// ErrShutdown, so callers can tell them apart with errors.Is.
package httpserver
