package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Option configures the HTTP server. Invalid values panic so a
// misconfigured process fails at startup.
type Option func(*config)

// WithAddr sets the listen address. Use ":0" for an ephemeral port.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("httpserver: empty listen address")
	}
	return func(c *config) { c.addr = addr }
}

// WithReadTimeout bounds reading the whole request, body included.
func WithReadTimeout(d time.Duration) Option {
	mustBePositive("read timeout", d)
	return func(c *config) { c.readTimeout = d }
}

// WithReadHeaderTimeout bounds reading request headers.
func WithReadHeaderTimeout(d time.Duration) Option {
	mustBePositive("read header timeout", d)
	return func(c *config) { c.readHeaderTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	mustBePositive("write timeout", d)
	return func(c *config) { c.writeTimeout = d }
}

func WithIdleTimeout(d time.Duration) Option {
	mustBePositive("idle timeout", d)
	return func(c *config) { c.idleTimeout = d }
}

// WithShutdownTimeout bounds the drain plus all shutdown hooks.
func WithShutdownTimeout(d time.Duration) Option {
	mustBePositive("shutdown timeout", d)
	return func(c *config) { c.shutdownTimeout = d }
}

// WithLogger sets the server logger. Nil keeps logs discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithShutdownHook registers fn to run after in-flight requests drained.
// Hooks run in reverse registration order and share the shutdown timeout.
func WithShutdownHook(fn func(context.Context) error) Option {
	if fn == nil {
		panic("httpserver: nil shutdown hook")
	}
	return func(c *config) { c.shutdownHooks = append(c.shutdownHooks, fn) }
}

func mustBePositive(name string, d time.Duration) {
	if d <= 0 {
		panic(fmt.Sprintf("httpserver: %s must be > 0, got %s", name, d))
	}
}
