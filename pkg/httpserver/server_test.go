package httpserver_test

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postflowhq/postflow/pkg/httpserver"
)

func freeAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// runServer starts srv in a goroutine and waits until it accepts connections.
func runServer(t *testing.T, ctx context.Context, srv *httpserver.Server, handler http.Handler) chan error {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, handler) }()
	return done
}

func waitListening(t *testing.T, addr string) {
	t.Helper()

	for range 50 {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			_ = conn.Close()
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server on %s never started listening", addr)
}

func TestServer_RunAndShutdown(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	srv := httpserver.New(
		httpserver.WithAddr(addr),
		httpserver.WithShutdownTimeout(100*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := runServer(t, ctx, srv, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	waitListening(t, addr)

	resp, err := http.Get("http://" + addr)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not finish after cancel")
	}
}

func TestServer_ManualShutdown(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	started := make(chan struct{})
	srv := httpserver.New(
		httpserver.WithAddr(addr),
		httpserver.WithShutdownTimeout(100*time.Millisecond),
		httpserver.WithStartHook(func(_ *slog.Logger) { close(started) }),
	)

	done := runServer(t, context.Background(), srv, http.NewServeMux())
	<-started

	require.NoError(t, srv.Shutdown(context.Background()))
	// Shutdown is idempotent.
	require.NoError(t, srv.Shutdown(context.Background()))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not finish after shutdown")
	}
}

func TestServer_StartError(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithAddr(":invalid"))
	err := srv.Run(context.Background(), http.NewServeMux())
	require.Error(t, err)
	assert.ErrorIs(t, err, httpserver.ErrStart)
}

func TestServer_AlreadyRunning(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	started := make(chan struct{})
	srv := httpserver.New(
		httpserver.WithAddr(addr),
		httpserver.WithShutdownTimeout(50*time.Millisecond),
		httpserver.WithStartHook(func(_ *slog.Logger) { close(started) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runServer(t, ctx, srv, http.NewServeMux())
	<-started

	err := srv.Run(context.Background(), http.NewServeMux())
	require.ErrorIs(t, err, httpserver.ErrStart)

	cancel()
	_ = srv.Shutdown(context.Background())
}

func TestServer_Hooks(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	var started, stopped atomic.Bool
	ready := make(chan struct{})
	srv := httpserver.New(
		httpserver.WithAddr(addr),
		httpserver.WithShutdownTimeout(50*time.Millisecond),
		httpserver.WithStartHook(func(_ *slog.Logger) {
			started.Store(true)
			close(ready)
		}),
		httpserver.WithStopHook(func(_ *slog.Logger) { stopped.Store(true) }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := runServer(t, ctx, srv, http.NewServeMux())
	<-ready
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not finish")
	}

	assert.True(t, started.Load())
	assert.True(t, stopped.Load())
}

func TestServer_WithServer(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	hs := &http.Server{ReadTimeout: time.Second}
	started := make(chan struct{})
	srv := httpserver.New(
		httpserver.WithServer(hs),
		httpserver.WithAddr(addr),
		httpserver.WithShutdownTimeout(50*time.Millisecond),
		httpserver.WithStartHook(func(_ *slog.Logger) { close(started) }),
	)

	done := runServer(t, context.Background(), srv, http.NewServeMux())
	<-started

	// Values already set on the provided server win over defaults.
	assert.Equal(t, time.Second, hs.ReadTimeout)
	assert.Equal(t, addr, hs.Addr)
	assert.NotNil(t, hs.Handler)

	_ = srv.Shutdown(context.Background())
	<-done
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	hs := &http.Server{}
	started := make(chan struct{})
	srv := httpserver.NewFromConfig(httpserver.Config{
		Addr:            addr,
		ReadTimeout:     time.Second,
		WriteTimeout:    2 * time.Second,
		IdleTimeout:     3 * time.Second,
		ShutdownTimeout: 50 * time.Millisecond,
	},
		httpserver.WithServer(hs),
		httpserver.WithStartHook(func(_ *slog.Logger) { close(started) }),
	)

	done := runServer(t, context.Background(), srv, http.NewServeMux())
	<-started

	assert.Equal(t, time.Second, hs.ReadTimeout)
	assert.Equal(t, 2*time.Second, hs.WriteTimeout)
	assert.Equal(t, 3*time.Second, hs.IdleTimeout)

	_ = srv.Shutdown(context.Background())
	<-done
}

func TestOptionPanics(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		fn   func()
	}{
		{"empty addr", func() { httpserver.WithAddr("") }},
		{"negative read timeout", func() { httpserver.WithReadTimeout(-time.Second) }},
		{"negative write timeout", func() { httpserver.WithWriteTimeout(-time.Second) }},
		{"negative idle timeout", func() { httpserver.WithIdleTimeout(-time.Second) }},
		{"negative shutdown timeout", func() { httpserver.WithShutdownTimeout(-time.Second) }},
		{"nil server", func() { httpserver.WithServer(nil) }},
		{"nil start hook", func() { httpserver.WithStartHook(nil) }},
		{"nil stop hook", func() { httpserver.WithStopHook(nil) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Panics(t, tc.fn)
		})
	}

	t.Run("nil logger allowed", func(t *testing.T) {
		t.Parallel()

		assert.NotPanics(t, func() { httpserver.WithLogger(nil) })
	})
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := slog.Default()

	t.Run("liveness", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		httpserver.HealthCheckHandler(ctx, log)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ALIVE", rec.Body.String())
	})

	t.Run("readiness all healthy", func(t *testing.T) {
		t.Parallel()

		ok := func(context.Context) error { return nil }
		rec := httptest.NewRecorder()
		httpserver.HealthCheckHandler(ctx, log, ok, ok)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "READY", rec.Body.String())
	})

	t.Run("readiness dependency down", func(t *testing.T) {
		t.Parallel()

		ok := func(context.Context) error { return nil }
		down := func(context.Context) error { return errors.New("db unreachable") }
		rec := httptest.NewRecorder()
		httpserver.HealthCheckHandler(ctx, log, ok, down)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "NOT_READY", rec.Body.String())
	})
}
