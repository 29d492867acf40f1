package subscription

import (
	"context"
	"time"
)

// BillingProvider is the capability the service needs from the payment
// processor. The processor hosts checkout and the customer portal; the
// service only asks for links and consumes its webhooks.
type BillingProvider interface {
	// CreateCheckoutLink creates a hosted checkout session.
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)

	// GetCustomerPortalLink returns a short-lived link to the customer portal
	// where users update payment methods, switch plans or cancel.
	GetCustomerPortalLink(ctx context.Context, sub *Subscription, returnURL string) (*PortalLink, error)

	// ParseWebhook verifies the signature and normalizes the event.
	// Must return ErrWebhookVerificationFailed for bad signatures.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutRequest contains data needed to create a checkout session.
type CheckoutRequest struct {
	UserID     string // internal user ID, echoed back in webhook events
	PriceID    string
	Tier       Tier
	Cycle      BillingCycle
	Email      string
	SuccessURL string
	CancelURL  string
}

// CheckoutLink represents a hosted checkout session.
type CheckoutLink struct {
	URL       string    `json:"url"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PortalLink represents a customer portal session.
type PortalLink struct {
	URL string `json:"url"`
}

// WebhookEvent is a verified, normalized webhook event.
type WebhookEvent struct {
	ID             string    // provider event ID, used as the idempotency key
	Type           EventType // normalized type
	ProviderEvent  string    // original provider event name
	UserID         string    // internal user ID from client reference or metadata
	SubscriptionID string    // external subscription reference
	CustomerID     string    // provider customer ID
	PriceID        string    // price the event refers to, if any
	Status         string    // provider subscription status, if any
	BillingReason  string    // invoice billing reason, if any
	PaymentStatus  string    // checkout payment status: paid, unpaid or no_payment_required
	OccurredAt     time.Time
}
