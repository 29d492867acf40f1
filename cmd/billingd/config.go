package main

import (
	"errors"
	"time"
)

type appConfig struct {
	Env            string        `env:"APP_ENV" envDefault:"development"`
	Service        string        `env:"APP_SERVICE_NAME" envDefault:"billingd"`
	LogLevel       string        `env:"LOG_LEVEL"`
	PlansFile      string        `env:"PLANS_FILE"`                               // optional YAML catalog, built-in plans when empty
	UserIDHeader   string        `env:"USER_ID_HEADER" envDefault:"X-User-ID"`    // set by the upstream gateway
	EventRetention time.Duration `env:"EVENT_RETENTION" envDefault:"720h"`        // processed event ledger retention
	PruneSchedule  string        `env:"EVENT_PRUNE_SCHEDULE" envDefault:"@daily"` // cron expression for ledger pruning
	HealthTimeout  time.Duration `env:"HEALTHCHECK_TIMEOUT" envDefault:"3s"`      // per readiness probe
	WebhookLimit   int64         `env:"WEBHOOK_BODY_LIMIT" envDefault:"262144"`   // bytes
	DisableLock    bool          `env:"BILLING_DISABLE_EVENT_LOCK" envDefault:"false"`
}

func (c appConfig) Validate() error {
	var errs []error
	if c.EventRetention < 72*time.Hour {
		errs = append(errs, errors.New("EVENT_RETENTION must be at least 72h to cover provider redelivery"))
	}
	if c.UserIDHeader == "" {
		errs = append(errs, errors.New("USER_ID_HEADER must not be empty"))
	}
	if c.WebhookLimit <= 0 {
		errs = append(errs, errors.New("WEBHOOK_BODY_LIMIT must be positive"))
	}
	return errors.Join(errs...)
}
