// Package httpserver runs an http.Handler with graceful shutdown and
// provides liveness and readiness handlers.
//
// Run binds the listener, then serves until the context is cancelled or
// SIGINT/SIGTERM arrives. Shutdown drains in-flight requests and then runs
// the registered shutdown hooks, newest first, all bounded by the shutdown
// timeout. Requests keep a live context during the drain so a webhook that
// is mid-transaction can commit.
//
// # Usage
//
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.HealthCheckHandler(log, 0))
//	r.Get("/readyz", httpserver.HealthCheckHandler(log, 2*time.Second, pg.Healthcheck(pool)))
//
//	srv := httpserver.NewFromConfig(cfg,
//		httpserver.WithLogger(log),
//		httpserver.WithShutdownHook(stopScheduler),
//	)
//	if err := srv.Run(ctx, r); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// # Errors
//
// Bind and serve failures wrap ErrStart; drain and hook failures wrap
// ErrShutdown. Use errors.Is to distinguish them.
package httpserver
