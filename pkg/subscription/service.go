package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/productphotostudio/billing/pkg/logger"
)

// Service defines the public interface for subscription management.
type Service interface {
	// Account lifecycle
	EnsureSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	GetSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	Plans() []Plan

	// Billing provider interactions
	CreateCheckoutLink(ctx context.Context, userID uuid.UUID, tier Tier, cycle BillingCycle, opts CheckoutOptions) (*CheckoutLink, error)
	GetCustomerPortalLink(ctx context.Context, userID uuid.UUID, returnURL string) (*PortalLink, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// EventLocker guards a webhook event against concurrent processing by
// another replica. Lock returns ErrEventInFlight when the event is held.
type EventLocker interface {
	Lock(ctx context.Context, eventID string) (unlock func(context.Context) error, err error)
}

type service struct {
	reconciler *Reconciler
	prices     *PriceTable
	store      Store
	provider   BillingProvider
	locker     EventLocker
	log        *slog.Logger
}

// NewService creates a new Service on top of a Reconciler.
// Panics if reconciler or provider is nil to fail fast during initialization.
func NewService(reconciler *Reconciler, provider BillingProvider, opts ...ServiceOption) Service {
	if reconciler == nil {
		panic("subscription: Reconciler is required")
	}
	if provider == nil {
		panic("subscription: BillingProvider is required")
	}

	s := &service{
		reconciler: reconciler,
		prices:     reconciler.prices,
		store:      reconciler.store,
		provider:   provider,
		log:        reconciler.log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureSubscription creates the inactive record for a new account.
// Calling it for an existing account returns the stored record.
func (s *service) EnsureSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub := NewSubscription(userID, s.reconciler.now())
	err := s.store.Create(ctx, sub)
	switch {
	case err == nil:
		s.log.InfoContext(ctx, "subscription record created", logger.UserID(userID))
		return sub, nil
	case errors.Is(err, ErrSubscriptionAlreadyExists):
		return s.store.Get(ctx, userID)
	default:
		return nil, err
	}
}

func (s *service) GetSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.store.Get(ctx, userID)
}

func (s *service) Plans() []Plan {
	return s.prices.Plans()
}

// CreateCheckoutLink starts a hosted checkout for the price of tier and cycle.
// Accounts with an active tier change plans through the customer portal.
func (s *service) CreateCheckoutLink(ctx context.Context, userID uuid.UUID, tier Tier, cycle BillingCycle, opts CheckoutOptions) (*CheckoutLink, error) {
	if !tier.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}
	if !cycle.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCycle, cycle)
	}
	priceID, err := s.prices.PriceID(tier, cycle)
	if err != nil {
		return nil, err
	}

	sub, err := s.EnsureSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.IsActive() {
		return nil, ErrSubscriptionAlreadyExists
	}

	link, err := s.provider.CreateCheckoutLink(ctx, CheckoutRequest{
		UserID:     userID.String(),
		PriceID:    priceID,
		Tier:       tier,
		Cycle:      cycle,
		Email:      opts.Email,
		SuccessURL: opts.SuccessURL,
		CancelURL:  opts.CancelURL,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "failed to create checkout link",
			logger.UserID(userID), logger.PriceID(priceID), logger.Error(err))
		return nil, err
	}
	return link, nil
}

// GetCustomerPortalLink returns a link to the portal where users update
// payment details, switch plans or cancel.
func (s *service) GetCustomerPortalLink(ctx context.Context, userID uuid.UUID, returnURL string) (*PortalLink, error) {
	sub, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.ProviderCustomerID == "" {
		return nil, ErrMissingProviderCustomerID
	}
	return s.provider.GetCustomerPortalLink(ctx, sub, returnURL)
}

// HandleWebhook verifies and reconciles one webhook delivery. The parsed
// event is returned whenever verification succeeded, even if reconciling it
// failed.
func (s *service) HandleWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	ev, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		s.log.WarnContext(ctx, "webhook rejected", logger.Error(err))
		return nil, err
	}

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, ev.ID)
		if err != nil {
			return ev, err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.log.WarnContext(ctx, "failed to release event lock",
					logger.EventID(ev.ID), logger.Error(err))
			}
		}()
	}

	return ev, s.reconciler.Reconcile(ctx, ev)
}
