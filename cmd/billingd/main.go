// Command billingd runs the subscription billing service: Stripe webhook
// reconciliation plus the checkout and portal endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/productphotostudio/billing/modules/billing"
	"github.com/productphotostudio/billing/pkg/config"
	"github.com/productphotostudio/billing/pkg/httpserver"
	"github.com/productphotostudio/billing/pkg/logger"
	"github.com/productphotostudio/billing/pkg/pg"
	"github.com/productphotostudio/billing/pkg/redis"
	"github.com/productphotostudio/billing/pkg/requestid"
	"github.com/productphotostudio/billing/pkg/subscription"
	"github.com/productphotostudio/billing/pkg/subscription/pgstore"
)

func main() {
	var app appConfig
	if err := config.Load(&app); err != nil {
		slog.Error("failed to load app config", logger.Error(err))
		os.Exit(1)
	}

	log := logger.New(
		logger.WithEnvironment(app.Env, app.Service),
		logger.WithLevelName(app.LogLevel),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	slog.SetDefault(log)

	if err := run(context.Background(), app, log); err != nil {
		log.Error("billingd stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, app appConfig, log *slog.Logger) error {
	var (
		pgCfg     pg.Config
		redisCfg  redis.Config
		httpCfg   httpserver.Config
		stripeCfg subscription.StripeConfig
		priceCfg  subscription.PriceConfig
	)
	if err := errors.Join(
		config.Load(&pgCfg),
		config.Load(&redisCfg),
		config.Load(&httpCfg),
		config.Load(&stripeCfg),
		config.Load(&priceCfg),
	); err != nil {
		return err
	}

	prices, err := loadPriceTable(app.PlansFile, priceCfg)
	if err != nil {
		return err
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	// the schema ships embedded in pgstore
	pgCfg.MigrationsPath = "migrations"
	if err := pg.Migrate(ctx, pool, pgCfg, pgstore.Migrations, log); err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	store := pgstore.New(pool)
	reconciler := subscription.NewReconciler(prices, store, subscription.WithLogger(log))

	var stripeOpts []subscription.StripeOption
	if priceCfg.Coupon != "" {
		stripeOpts = append(stripeOpts, subscription.WithCoupon(priceCfg.Coupon, priceCfg.CouponTier, priceCfg.CouponCycle))
	}
	provider, err := subscription.NewStripeProvider(stripeCfg, stripeOpts...)
	if err != nil {
		return err
	}

	var svcOpts []subscription.ServiceOption
	if !app.DisableLock {
		svcOpts = append(svcOpts, subscription.WithEventLocker(
			redis.NewLockFromConfig(rdb, redisCfg, redis.WithHeldError(subscription.ErrEventInFlight)),
		))
	}
	svc := subscription.NewService(reconciler, provider, svcOpts...)

	stopPruner, err := schedulePruning(store, app, log)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := billing.NewMetrics(registry)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", httpserver.HealthCheckHandler(log, app.HealthTimeout))
	r.Get("/readyz", httpserver.HealthCheckHandler(log, app.HealthTimeout,
		pg.Healthcheck(pool),
		redis.Healthcheck(rdb),
	))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Mount("/billing", billing.Router(billing.RouterOptions{
		Webhook: billing.NewWebhookHandler(svc,
			billing.WithWebhookLogger(log),
			billing.WithWebhookMetrics(metrics),
			billing.WithBodyLimit(app.WebhookLimit),
		),
		Account: billing.NewAccountHandler(svc, billing.HeaderUserID(app.UserIDHeader),
			billing.WithAccountLogger(log),
			billing.WithAccountMetrics(metrics),
		),
	}))

	log.InfoContext(ctx, "billing configured",
		slog.Int("plans", len(prices.Plans())),
		slog.Bool("event_lock", !app.DisableLock),
		slog.Bool("coupon", priceCfg.Coupon != ""),
	)

	server := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.WithShutdownHook(stopPruner),
	)
	return server.Run(ctx, r)
}

func loadPriceTable(plansFile string, prices subscription.PriceConfig) (*subscription.PriceTable, error) {
	catalog := subscription.DefaultCatalog()
	if plansFile != "" {
		var err error
		if catalog, err = subscription.LoadCatalog(plansFile); err != nil {
			return nil, err
		}
	}
	return subscription.BuildPriceTable(catalog, prices)
}

type eventPruner interface {
	PruneEvents(ctx context.Context, before time.Time) (int64, error)
}

// schedulePruning removes processed-event ledger entries older than the
// retention window. The returned func stops the scheduler and waits for a
// running job until ctx ends.
func schedulePruning(store eventPruner, app appConfig, log *slog.Logger) (func(context.Context) error, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(app.PruneSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		before := time.Now().UTC().Add(-app.EventRetention)
		n, err := store.PruneEvents(ctx, before)
		if err != nil {
			log.ErrorContext(ctx, "failed to prune processed events", logger.Error(err))
			return
		}
		log.InfoContext(ctx, "pruned processed events",
			slog.Int64("removed", n),
			slog.Time("before", before),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule event pruning %q: %w", app.PruneSchedule, err)
	}
	c.Start()

	return func(ctx context.Context) error {
		select {
		case <-c.Stop().Done():
			return nil
		case <-ctx.Done():
			return fmt.Errorf("event pruning still running: %w", ctx.Err())
		}
	}, nil
}
