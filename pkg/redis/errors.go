package redis

import "errors"

// Connection errors.
var (
	ErrEmptyConnectionURL           = errors.New("redis: empty connection URL, set REDIS_URL")
	ErrFailedToParseRedisConnString = errors.New("redis: invalid connection URL")
	ErrRedisNotReady                = errors.New("redis: server not ready")
	ErrHealthcheckFailed            = errors.New("redis: ping failed")
)

// Lock errors.
var (
	ErrEmptyLockKey = errors.New("redis: empty lock key")
	ErrLockHeld     = errors.New("redis: lock held by another owner")
	ErrLockNotHeld  = errors.New("redis: lock expired or taken over")
)
