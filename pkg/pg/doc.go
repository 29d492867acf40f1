// Package pg bootstraps PostgreSQL access on top of pgx/v5: a retrying
// connection pool, goose migrations and a health check.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	// migrations embedded by the owning package
//	if err := pg.Migrate(ctx, pool, cfg, pgstore.Migrations, log); err != nil {
//		return err
//	}
//
//	ready := pg.Healthcheck(pool)
//
// # Configuration
//
// All values come from environment variables; see the field tags on Config.
//
// # Error Handling
//
// IsNotFoundError, IsDuplicateKeyError and IsSerializationError classify
// errors returned by pgx so callers can map them to domain errors.
package pg
