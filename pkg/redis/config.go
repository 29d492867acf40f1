package redis

import "time"

// Config is read from REDIS_* env vars.
type Config struct {
	// ConnectionURL uses the redis:// scheme, e.g. redis://:secret@localhost:6379/0.
	ConnectionURL string `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`

	// Connect pings up to RetryAttempts times, RetryInterval apart, and gives
	// up after ConnectTimeout overall.
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`

	// LockTTL bounds how long a crashed holder keeps a lock.
	LockTTL    time.Duration `env:"REDIS_LOCK_TTL" envDefault:"30s"`
	LockPrefix string        `env:"REDIS_LOCK_PREFIX" envDefault:"billing:lock:"`
}
