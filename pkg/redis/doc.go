// Package redis provides helpers for connecting to a Redis server with
// go-redis, a readiness check and a key lock used to keep replicas from
// processing the same work concurrently.
//
// # Usage
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	lock := redis.NewLockFromConfig(client, cfg,
//		redis.WithHeldError(subscription.ErrEventInFlight),
//	)
//	unlock, err := lock.Lock(ctx, eventID)
//	if err != nil {
//		return err
//	}
//	defer unlock(ctx)
//
//	ready := redis.Healthcheck(client)
//
// # Errors
//
// Sentinel errors (ErrRedisNotReady, ErrLockHeld, ...) wrap the underlying
// go-redis errors using errors.Join, so callers compare with errors.Is.
package redis
