package billing

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/productphotostudio/billing/pkg/logger"
	"github.com/productphotostudio/billing/pkg/subscription"
)

const (
	// DefaultWebhookBodyLimit caps webhook payloads. Invoice events carry
	// every line item and grow with the number of prorations.
	DefaultWebhookBodyLimit = 256 << 10

	// SignatureHeader carries the provider webhook signature.
	SignatureHeader = "Stripe-Signature"
)

// Labels used for deliveries that never produced a verified event.
const (
	typeUnverified = "unverified"
	typeUnread     = "unread"
)

// WebhookHandler receives provider webhook deliveries and hands them to the
// subscription service.
type WebhookHandler struct {
	svc       subscription.Service
	log       *slog.Logger
	metrics   *Metrics
	bodyLimit int64
	now       func() time.Time
}

// WebhookOption configures a WebhookHandler.
type WebhookOption func(*WebhookHandler)

// WithWebhookLogger sets the logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(h *WebhookHandler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithWebhookMetrics enables Prometheus instrumentation.
func WithWebhookMetrics(m *Metrics) WebhookOption {
	return func(h *WebhookHandler) {
		h.metrics = m
	}
}

// WithBodyLimit overrides DefaultWebhookBodyLimit.
func WithBodyLimit(n int64) WebhookOption {
	return func(h *WebhookHandler) {
		if n > 0 {
			h.bodyLimit = n
		}
	}
}

// NewWebhookHandler creates a webhook endpoint backed by svc.
// Panics if svc is nil.
func NewWebhookHandler(svc subscription.Service, opts ...WebhookOption) *WebhookHandler {
	if svc == nil {
		panic("billing: subscription service is required")
	}
	h := &WebhookHandler{
		svc:       svc,
		log:       logger.Discard(),
		bodyLimit: DefaultWebhookBodyLimit,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(logger.Component("billing_webhook"))
	return h
}

// Handle implements Mountable.
func (h *WebhookHandler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.receive)
	return r
}

// receive answers 200 for processed, duplicate and ignored events so the
// provider stops redelivering. Any other status makes it retry.
func (h *WebhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	ctx := r.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.bodyLimit))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, maxErr.Limit)
		} else {
			err = errors.Join(subscription.ErrInvalidWebhookPayload, err)
		}
		respondError(w, r, h.log, err)
		h.metrics.observeWebhook(typeUnread, OutcomeRejected, h.now().Sub(start))
		return
	}

	ev, err := h.svc.HandleWebhook(ctx, payload, r.Header.Get(SignatureHeader))
	eventType := typeUnverified
	if ev != nil {
		eventType = string(ev.Type)
	}

	if err != nil {
		httpErr := respondError(w, r, h.log, err)
		h.metrics.observeWebhook(eventType, webhookOutcome(httpErr.Code), h.now().Sub(start))
		return
	}

	outcome := OutcomeProcessed
	if !ev.Type.Known() {
		outcome = OutcomeIgnored
	}
	h.log.DebugContext(ctx, "webhook handled",
		logger.EventID(ev.ID),
		logger.EventType(ev.ProviderEvent),
		slog.String("outcome", outcome),
		logger.Duration(h.now().Sub(start)),
	)
	h.metrics.observeWebhook(eventType, outcome, h.now().Sub(start))

	respondJSON(w, http.StatusOK, map[string]any{
		"received": true,
		"event_id": ev.ID,
	})
}

func webhookOutcome(status int) string {
	switch {
	case status == http.StatusConflict:
		return OutcomeInFlight
	case status >= http.StatusInternalServerError:
		return OutcomeFailed
	default:
		return OutcomeRejected
	}
}
