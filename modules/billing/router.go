package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Mountable interface {
	Handle() http.Handler
}

// RouterOptions configures which handlers to mount in the billing module.
// Each handler is optional and will only be mounted if provided.
type RouterOptions struct {
	// Webhook receives provider deliveries. It authenticates by signature
	// and must not sit behind session middleware.
	Webhook Mountable

	// Account serves /plans, /subscription, /checkout and /portal for the
	// authenticated caller.
	Account Mountable

	// Middlewares wrap the account routes only.
	Middlewares []func(http.Handler) http.Handler
}

// Router creates the billing module router.
//
// Example:
//
//	metrics := billing.NewMetrics(prometheus.DefaultRegisterer)
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.Router(billing.RouterOptions{
//	    Webhook: billing.NewWebhookHandler(svc, billing.WithWebhookMetrics(metrics)),
//	    Account: billing.NewAccountHandler(svc, billing.HeaderUserID("X-User-ID")),
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	if opts.Webhook != nil {
		r.Mount("/webhook", opts.Webhook.Handle())
	}
	if opts.Account != nil {
		r.Group(func(account chi.Router) {
			account.Use(opts.Middlewares...)
			account.Mount("/", opts.Account.Handle())
		})
	}

	return r
}
