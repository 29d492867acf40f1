package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/productphotostudio/billing/pkg/logger"
)

type config struct {
	addr              string
	readTimeout       time.Duration
	readHeaderTimeout time.Duration
	writeTimeout      time.Duration
	idleTimeout       time.Duration
	shutdownTimeout   time.Duration
	logger            *slog.Logger
	shutdownHooks     []func(context.Context) error
}

// Server serves one handler until its context ends or the process receives
// SIGINT or SIGTERM, then drains in-flight requests and runs shutdown hooks.
type Server struct {
	cfg config

	mu     sync.Mutex
	srv    *http.Server
	addr   net.Addr
	closed bool

	ready        chan struct{}
	done         chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error
}

// New returns a configured Server.
func New(opts ...Option) *Server {
	cfg := config{
		addr:              ":8080",
		readHeaderTimeout: 5 * time.Second,
		shutdownTimeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Discard()
	}
	return &Server{
		cfg:   cfg,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound address, or "" before Ready.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Run binds the listener and serves handler until shutdown. A server runs
// at most once. Bind and serve failures are wrapped with ErrStart; drain
// and hook failures with ErrShutdown.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	if handler == nil {
		handler = http.NotFoundHandler()
	}

	ln, err := s.listen(ctx, handler)
	if err != nil {
		return err
	}
	log := s.cfg.logger

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.srv.Serve(ln) }()
	log.InfoContext(ctx, "http server listening", slog.String("addr", ln.Addr().String()))
	close(s.ready)

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			// Shutdown was called directly; wait for it to finish draining.
			<-s.done
			return s.shutdownErr
		}
		_ = s.Shutdown(context.WithoutCancel(ctx))
		return errors.Join(ErrStart, err)
	case <-sigCtx.Done():
		if ctx.Err() == nil {
			log.InfoContext(ctx, "shutdown signal received")
		}
	}

	shutdownErr := s.Shutdown(context.WithoutCancel(ctx))
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrStart, err, shutdownErr)
	}
	return shutdownErr
}

func (s *Server) listen(ctx context.Context, handler http.Handler) (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return nil, errors.Join(ErrStart, ErrAlreadyRunning)
	}
	if s.closed {
		return nil, errors.Join(ErrStart, http.ErrServerClosed)
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.addr)
	if err != nil {
		return nil, errors.Join(ErrStart, err)
	}

	s.srv = &http.Server{
		Handler:           handler,
		ReadTimeout:       s.cfg.readTimeout,
		ReadHeaderTimeout: s.cfg.readHeaderTimeout,
		WriteTimeout:      s.cfg.writeTimeout,
		IdleTimeout:       s.cfg.idleTimeout,
		ErrorLog:          slog.NewLogLogger(s.cfg.logger.Handler(), slog.LevelWarn),
		// Requests keep their context through the drain.
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.addr = ln.Addr()
	return ln, nil
}

// Shutdown drains in-flight requests, then runs the shutdown hooks in
// reverse registration order, all within the shutdown timeout. Calls after
// the first wait for it and return the same result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		defer close(s.done)

		s.mu.Lock()
		s.closed = true
		srv := s.srv
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(ctx, s.cfg.shutdownTimeout)
		defer cancel()

		var errs []error
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		for i := len(s.cfg.shutdownHooks) - 1; i >= 0; i-- {
			if err := s.cfg.shutdownHooks[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}

		if len(errs) > 0 {
			s.shutdownErr = errors.Join(append([]error{ErrShutdown}, errs...)...)
			s.cfg.logger.ErrorContext(ctx, "http server stopped with errors", logger.Error(s.shutdownErr))
			return
		}
		s.cfg.logger.InfoContext(ctx, "http server stopped")
	})

	<-s.done
	return s.shutdownErr
}
