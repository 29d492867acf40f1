package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/productphotostudio/billing/pkg/logger"
)

// billingReasonSubscriptionCycle marks the invoice of a new billing period.
// Only these invoices refill credits: the first period is granted by
// checkout and proration invoices for plan changes grant nothing.
const billingReasonSubscriptionCycle = "subscription_cycle"

// paymentStatusUnpaid marks a checkout paid by a delayed method. The session
// is delivered again once the payment clears.
const paymentStatusUnpaid = "unpaid"

// Reconciler turns verified webhook events into subscription state.
// Each handler applies at most one state transition to one user record and
// is safe to call repeatedly with the same event.
type Reconciler struct {
	prices *PriceTable
	store  Store
	log    *slog.Logger
	now    func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

func WithLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler panics if prices or store is nil.
func NewReconciler(prices *PriceTable, store Store, opts ...ReconcilerOption) *Reconciler {
	if prices == nil {
		panic("subscription: PriceTable is required")
	}
	if store == nil {
		panic("subscription: Store is required")
	}
	r := &Reconciler{
		prices: prices,
		store:  store,
		log:    logger.Discard(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile dispatches ev to its handler. Event types without a handler are
// acknowledged and ignored.
func (r *Reconciler) Reconcile(ctx context.Context, ev *WebhookEvent) error {
	switch ev.Type {
	case EventCheckoutCompleted:
		return r.HandleCheckoutCompleted(ctx, ev)
	case EventSubscriptionUpdated:
		return r.HandleSubscriptionUpdated(ctx, ev)
	case EventSubscriptionDeleted:
		return r.HandleSubscriptionDeleted(ctx, ev)
	case EventPaymentSucceeded:
		return r.HandleInvoicePaymentSucceeded(ctx, ev)
	default:
		r.log.DebugContext(ctx, "webhook event ignored",
			logger.EventID(ev.ID),
			logger.EventType(ev.ProviderEvent),
		)
		return nil
	}
}

// HandleCheckoutCompleted activates the subscription bought in checkout:
// tier and cycle from the purchased price, credits set to the tier allotment.
// Re-delivery for an account already active on the same external
// subscription leaves the credits untouched. Unpaid sessions are skipped.
func (r *Reconciler) HandleCheckoutCompleted(ctx context.Context, ev *WebhookEvent) error {
	if ev.PaymentStatus == paymentStatusUnpaid {
		r.log.InfoContext(ctx, "checkout awaiting payment, activation deferred",
			logger.EventID(ev.ID), logger.SubscriptionRef(ev.SubscriptionID))
		return nil
	}

	price, err := r.prices.Resolve(ev.PriceID)
	if err != nil {
		r.log.ErrorContext(ctx, "checkout references unusable price",
			logger.EventID(ev.ID), logger.PriceID(ev.PriceID), logger.Error(err))
		return err
	}

	userID, err := r.resolveUser(ctx, ev)
	if err != nil {
		return err
	}

	allotment := r.prices.Allotment(price.Tier)
	return r.apply(ctx, ev, userID, func(sub *Subscription) error {
		if sub.IsActive() && ev.SubscriptionID != "" && sub.ProviderSubID == ev.SubscriptionID {
			return ErrNoChange
		}
		sub.activate(price, allotment, ev.SubscriptionID, ev.CustomerID, r.now())
		return nil
	})
}

// HandleSubscriptionUpdated re-resolves tier and cycle from the new price.
// Plan changes keep the current credit balance. Only subscriptions activated
// by checkout are updated; updates for inactive records or for another
// external subscription are recorded and ignored.
func (r *Reconciler) HandleSubscriptionUpdated(ctx context.Context, ev *WebhookEvent) error {
	price, err := r.prices.Resolve(ev.PriceID)
	if err != nil {
		r.log.ErrorContext(ctx, "subscription update references unusable price",
			logger.EventID(ev.ID), logger.PriceID(ev.PriceID), logger.Error(err))
		return err
	}

	userID, err := r.resolveUser(ctx, ev)
	if err != nil {
		return err
	}

	status := mapProviderStatus(ev.Status)
	return r.apply(ctx, ev, userID, func(sub *Subscription) error {
		// ending subscriptions are handled by the deletion event
		if status == StatusCancelled || !sub.IsActive() {
			return ErrNoChange
		}
		if ev.SubscriptionID != "" && sub.ProviderSubID != "" && sub.ProviderSubID != ev.SubscriptionID {
			r.log.WarnContext(ctx, "update for superseded subscription ignored",
				logger.EventID(ev.ID), logger.UserID(userID), logger.SubscriptionRef(ev.SubscriptionID))
			return ErrNoChange
		}
		if sub.Tier == price.Tier && sub.Cycle == price.Cycle &&
			sub.Status == status && sub.ProviderSubID == ev.SubscriptionID {
			return ErrNoChange
		}

		if sub.Tier != price.Tier {
			r.log.InfoContext(ctx, "plan changed",
				logger.UserID(userID),
				slog.String("from", string(sub.Tier)),
				slog.String("to", string(price.Tier)),
				slog.Bool("upgrade", CompareTiers(price.Tier, sub.Tier) > 0),
			)
		}

		sub.Tier = price.Tier
		sub.Cycle = price.Cycle
		sub.Status = status
		if ev.SubscriptionID != "" {
			sub.ProviderSubID = ev.SubscriptionID
		}
		if ev.CustomerID != "" {
			sub.ProviderCustomerID = ev.CustomerID
		}
		sub.UpdatedAt = r.now()
		return nil
	})
}

// HandleSubscriptionDeleted clears the tier and cycle and zeroes the credits,
// whatever the previous state was.
func (r *Reconciler) HandleSubscriptionDeleted(ctx context.Context, ev *WebhookEvent) error {
	userID, err := r.resolveUser(ctx, ev)
	if errors.Is(err, ErrUnresolvedUser) {
		r.log.WarnContext(ctx, "subscription deletion for unknown account ignored",
			logger.EventID(ev.ID), logger.SubscriptionRef(ev.SubscriptionID))
		return nil
	}
	if err != nil {
		return err
	}

	return r.apply(ctx, ev, userID, func(sub *Subscription) error {
		if !sub.IsActive() && sub.Credits == 0 && sub.Status == StatusCancelled {
			return ErrNoChange
		}
		sub.deactivate(r.now())
		return nil
	})
}

// HandleInvoicePaymentSucceeded refills the credit balance to the allotment
// of the current tier when a new billing period is paid. Accounts without an
// active tier are left alone: the event is stale or arrived after
// cancellation. Invoices for anything but a period renewal are recorded and
// ignored.
//
// When the invoice names a price, it is resolved; an unknown price fails the
// event and a price for another tier or cycle is adopted before the refill.
func (r *Reconciler) HandleInvoicePaymentSucceeded(ctx context.Context, ev *WebhookEvent) error {
	userID, err := r.resolveUser(ctx, ev)
	if errors.Is(err, ErrUnresolvedUser) {
		r.log.InfoContext(ctx, "payment for unknown subscription ignored",
			logger.EventID(ev.ID), logger.SubscriptionRef(ev.SubscriptionID))
		return nil
	}
	if err != nil {
		return err
	}

	return r.apply(ctx, ev, userID, func(sub *Subscription) error {
		if !sub.IsActive() || ev.BillingReason != billingReasonSubscriptionCycle {
			return ErrNoChange
		}

		if ev.PriceID != "" {
			price, err := r.prices.Resolve(ev.PriceID)
			if err != nil {
				r.log.ErrorContext(ctx, "invoice references unusable price",
					logger.EventID(ev.ID), logger.PriceID(ev.PriceID), logger.Error(err))
				return err
			}
			if price.Tier != sub.Tier || price.Cycle != sub.Cycle {
				r.log.WarnContext(ctx, "invoice price disagrees with stored plan, adopting invoice",
					logger.UserID(userID), logger.Tier(string(sub.Tier)), logger.PriceID(price.ID))
				sub.Tier = price.Tier
				sub.Cycle = price.Cycle
			}
		}

		sub.Credits = r.prices.Allotment(sub.Tier)
		sub.Status = StatusActive
		sub.UpdatedAt = r.now()
		return nil
	})
}

func (r *Reconciler) apply(ctx context.Context, ev *WebhookEvent, userID uuid.UUID, fn Mutation) error {
	var after *Subscription
	err := r.store.Apply(ctx, userID, ev.ID, func(sub *Subscription) error {
		if err := fn(sub); err != nil {
			return err
		}
		after = sub.Clone()
		return nil
	})

	switch {
	case errors.Is(err, ErrDuplicateEvent):
		r.log.InfoContext(ctx, "duplicate webhook event skipped",
			logger.EventID(ev.ID), logger.EventType(ev.ProviderEvent), logger.UserID(userID))
		return nil
	case err != nil:
		return fmt.Errorf("apply %s for user %s: %w", ev.ProviderEvent, userID, err)
	}

	if after != nil {
		r.log.InfoContext(ctx, "subscription reconciled",
			logger.EventID(ev.ID),
			logger.EventType(ev.ProviderEvent),
			logger.UserID(userID),
			logger.Tier(string(after.Tier)),
			logger.Credits(after.Credits),
		)
	}
	return nil
}

// resolveUser prefers the user ID carried in the event and falls back to the
// external subscription reference.
func (r *Reconciler) resolveUser(ctx context.Context, ev *WebhookEvent) (uuid.UUID, error) {
	if ev.UserID != "" {
		if id, err := uuid.Parse(ev.UserID); err == nil {
			return id, nil
		}
		r.log.WarnContext(ctx, "webhook carries malformed user id",
			logger.EventID(ev.ID), slog.String("raw_user_id", ev.UserID))
	}

	if ev.SubscriptionID != "" {
		id, err := r.store.UserIDByProviderSubID(ctx, ev.SubscriptionID)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrSubscriptionNotFound) {
			return uuid.Nil, err
		}
	}

	return uuid.Nil, fmt.Errorf("%w: event %s", ErrUnresolvedUser, ev.ID)
}

// mapProviderStatus maps provider subscription statuses to Status.
func mapProviderStatus(s string) Status {
	switch s {
	case "", "active":
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "past_due", "unpaid", "incomplete":
		return StatusPastDue
	case "canceled", "cancelled", "incomplete_expired":
		return StatusCancelled
	default:
		return Status(s)
	}
}
