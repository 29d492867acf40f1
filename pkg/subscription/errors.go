package subscription

import "errors"

var (
	ErrUnknownPriceID   = errors.New("price ID is not mapped to any plan")
	ErrMissingPriceID   = errors.New("price ID is required")
	ErrDuplicatePriceID = errors.New("price ID is configured more than once")
	ErrInvalidPriceID   = errors.New("price ID has an invalid format")
	ErrInvalidTier      = errors.New("invalid plan tier")
	ErrInvalidCycle     = errors.New("invalid billing cycle")
	ErrPlanNotFound     = errors.New("subscription plan not found")

	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load subscription plans")

	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	ErrUnresolvedUser            = errors.New("webhook event cannot be matched to a user")
	ErrNegativeCredits           = errors.New("credit balance cannot be negative")

	// ErrDuplicateEvent is returned by Store.Apply when the event ID has
	// already been applied. The reconciler treats it as success.
	ErrDuplicateEvent = errors.New("webhook event already processed")
	// ErrNoChange is returned from an Apply mutation to record the event
	// without writing the subscription.
	ErrNoChange = errors.New("no subscription change")
	// ErrEventInFlight is returned by an EventLocker when another worker is
	// processing the same event.
	ErrEventInFlight = errors.New("webhook event is being processed")

	ErrMissingAPIKey             = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret      = errors.New("billing provider webhook secret is required")
	ErrMissingBaseURL            = errors.New("application base URL is required")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrInvalidWebhookPayload     = errors.New("invalid webhook payload")
	ErrNoCheckoutURL             = errors.New("no checkout URL returned from provider")
	ErrNoPortalURL               = errors.New("no portal URL returned from provider")
	ErrMissingProviderCustomerID = errors.New("provider customer ID not available")
	ErrProviderError             = errors.New("billing provider error")
)
