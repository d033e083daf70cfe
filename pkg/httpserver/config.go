package httpserver

import "time"

// Config carries the env-driven server settings for postflowd.
type Config struct {
	// Addr is the listen address.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`
	// ReadTimeout caps reading an entire request.
	ReadTimeout time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	// WriteTimeout caps writing a response.
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	// IdleTimeout caps how long keep-alive connections wait between requests.
	IdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	// ShutdownTimeout bounds the graceful drain on shutdown.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// NewFromConfig builds a server from an env-loaded Config. Zero values fall
// back to package defaults; extra options are applied after the config and
// win on conflict.
func NewFromConfig(cfg Config, opts ...Option) *Server {
	cfgOpts := make([]Option, 0, 5+len(opts))

	if cfg.Addr != "" {
		cfgOpts = append(cfgOpts, WithAddr(cfg.Addr))
	}
	if cfg.ReadTimeout > 0 {
		cfgOpts = append(cfgOpts, WithReadTimeout(cfg.ReadTimeout))
	}
	if cfg.WriteTimeout > 0 {
		cfgOpts = append(cfgOpts, WithWriteTimeout(cfg.WriteTimeout))
	}
	if cfg.IdleTimeout > 0 {
		cfgOpts = append(cfgOpts, WithIdleTimeout(cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout > 0 {
		cfgOpts = append(cfgOpts, WithShutdownTimeout(cfg.ShutdownTimeout))
	}

	return New(append(cfgOpts, opts...)...)
}
