package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Stripe event names consumed by the reconciler.
const (
	stripeCheckoutCompleted   = "checkout.session.completed"
	stripeCheckoutAsyncPaid   = "checkout.session.async_payment_succeeded"
	stripeSubscriptionUpdated = "customer.subscription.updated"
	stripeSubscriptionDeleted = "customer.subscription.deleted"
	stripeInvoicePaid         = "invoice.payment_succeeded"
)

// Metadata keys written on checkout sessions and their subscriptions.
const (
	metadataUserID  = "user_id"
	metadataPriceID = "price_id"
)

// StripeConfig holds Stripe credentials and redirect targets.
type StripeConfig struct {
	SecretKey          string        `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret      string        `env:"STRIPE_WEBHOOK_SECRET,required"`
	BaseURL            string        `env:"APP_BASE_URL,required"`
	SuccessPath        string        `env:"STRIPE_SUCCESS_PATH" envDefault:"/billing/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelPath         string        `env:"STRIPE_CANCEL_PATH" envDefault:"/billing/cancel"`
	PortalReturnPath   string        `env:"STRIPE_PORTAL_RETURN_PATH" envDefault:"/settings/billing"`
	SignatureTolerance time.Duration `env:"STRIPE_SIGNATURE_TOLERANCE" envDefault:"5m"`
}

// Validate implements config.Validator.
func (c StripeConfig) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	if c.WebhookSecret == "" {
		errs = append(errs, ErrMissingWebhookSecret)
	}
	if c.BaseURL == "" {
		errs = append(errs, ErrMissingBaseURL)
	}
	return errors.Join(errs...)
}

func (c StripeConfig) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

// StripeOption configures a StripeProvider.
type StripeOption func(*StripeProvider)

// WithBackends routes API calls through custom backends.
func WithBackends(b *stripe.Backends) StripeOption {
	return func(p *StripeProvider) {
		p.backends = b
	}
}

// WithCoupon attaches coupon as a checkout discount for one tier and cycle.
func WithCoupon(coupon string, tier Tier, cycle BillingCycle) StripeOption {
	return func(p *StripeProvider) {
		p.coupon = coupon
		p.couponTier = tier
		p.couponCycle = cycle
	}
}

// WithLineItemLookup overrides how the purchased price is found for a
// checkout session whose payload carries neither line items nor metadata.
func WithLineItemLookup(fn func(ctx context.Context, sessionID string) (string, error)) StripeOption {
	return func(p *StripeProvider) {
		if fn != nil {
			p.lookupPrice = fn
		}
	}
}

// StripeProvider implements BillingProvider on Stripe Checkout, the Stripe
// customer portal and Stripe webhooks.
type StripeProvider struct {
	cfg         StripeConfig
	api         *client.API
	backends    *stripe.Backends
	coupon      string
	couponTier  Tier
	couponCycle BillingCycle
	lookupPrice func(ctx context.Context, sessionID string) (string, error)
}

var _ BillingProvider = (*StripeProvider)(nil)

func NewStripeProvider(cfg StripeConfig, opts ...StripeOption) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SignatureTolerance <= 0 {
		cfg.SignatureTolerance = webhook.DefaultTolerance
	}

	p := &StripeProvider{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	p.api = client.New(cfg.SecretKey, p.backends)
	if p.lookupPrice == nil {
		p.lookupPrice = p.fetchSessionPrice
	}
	return p, nil
}

// CreateCheckoutLink creates a subscription-mode checkout session for one price.
func (p *StripeProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	successURL := req.SuccessURL
	if successURL == "" {
		successURL = p.cfg.url(p.cfg.SuccessPath)
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = p.cfg.url(p.cfg.CancelPath)
	}

	metadata := map[string]string{
		metadataUserID:  req.UserID,
		metadataPriceID: req.PriceID,
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(req.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	if p.coupon != "" && req.Tier == p.couponTier && req.Cycle == p.couponCycle {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(p.coupon)},
		}
	} else {
		params.AllowPromotionCodes = stripe.Bool(true)
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}
	if sess.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	link := &CheckoutLink{URL: sess.URL, SessionID: sess.ID}
	if sess.ExpiresAt > 0 {
		link.ExpiresAt = time.Unix(sess.ExpiresAt, 0).UTC()
	}
	return link, nil
}

// GetCustomerPortalLink creates a billing portal session for the customer.
func (p *StripeProvider) GetCustomerPortalLink(ctx context.Context, sub *Subscription, returnURL string) (*PortalLink, error) {
	if sub == nil || sub.ProviderCustomerID == "" {
		return nil, ErrMissingProviderCustomerID
	}
	if returnURL == "" {
		returnURL = p.cfg.url(p.cfg.PortalReturnPath)
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(sub.ProviderCustomerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}
	if sess.URL == "" {
		return nil, ErrNoPortalURL
	}
	return &PortalLink{URL: sess.URL}, nil
}

// ParseWebhook verifies the Stripe-Signature header and normalizes the event.
// Event types the reconciler does not consume are returned with their raw
// type and no payload fields.
func (p *StripeProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret,
		webhook.ConstructEventOptions{
			Tolerance:                p.cfg.SignatureTolerance,
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if event.ID == "" || event.Data == nil {
		return nil, fmt.Errorf("%w: missing event id or data", ErrInvalidWebhookPayload)
	}

	ev := &WebhookEvent{
		ID:            event.ID,
		Type:          EventType(event.Type),
		ProviderEvent: string(event.Type),
		OccurredAt:    time.Unix(event.Created, 0).UTC(),
	}

	switch string(event.Type) {
	case stripeCheckoutCompleted, stripeCheckoutAsyncPaid:
		err = p.parseCheckoutSession(ctx, event.Data.Raw, ev)
	case stripeSubscriptionUpdated, stripeSubscriptionDeleted:
		err = parseSubscription(event.Data.Raw, ev)
	case stripeInvoicePaid:
		err = parseInvoice(event.Data.Raw, ev)
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (p *StripeProvider) parseCheckoutSession(ctx context.Context, raw json.RawMessage, ev *WebhookEvent) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return errors.Join(ErrInvalidWebhookPayload, err)
	}

	ev.Type = EventCheckoutCompleted
	ev.PaymentStatus = string(sess.PaymentStatus)
	ev.UserID = sess.ClientReferenceID
	if ev.UserID == "" {
		ev.UserID = sess.Metadata[metadataUserID]
	}
	if sess.Subscription != nil {
		ev.SubscriptionID = sess.Subscription.ID
	}
	if sess.Customer != nil {
		ev.CustomerID = sess.Customer.ID
	}

	switch {
	case sess.LineItems != nil && len(sess.LineItems.Data) > 0 && sess.LineItems.Data[0].Price != nil:
		ev.PriceID = sess.LineItems.Data[0].Price.ID
	case sess.Metadata[metadataPriceID] != "":
		ev.PriceID = sess.Metadata[metadataPriceID]
	case sess.ID != "":
		priceID, err := p.lookupPrice(ctx, sess.ID)
		if err != nil {
			return errors.Join(ErrProviderError, err)
		}
		ev.PriceID = priceID
	}
	return nil
}

// fetchSessionPrice reads the first line item of a checkout session.
func (p *StripeProvider) fetchSessionPrice(ctx context.Context, sessionID string) (string, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := p.api.CheckoutSessions.ListLineItems(params)
	for iter.Next() {
		if item := iter.LineItem(); item.Price != nil {
			return item.Price.ID, nil
		}
	}
	if err := iter.Err(); err != nil {
		return "", err
	}
	return "", nil
}

func parseSubscription(raw json.RawMessage, ev *WebhookEvent) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return errors.Join(ErrInvalidWebhookPayload, err)
	}

	if ev.ProviderEvent == stripeSubscriptionDeleted {
		ev.Type = EventSubscriptionDeleted
	} else {
		ev.Type = EventSubscriptionUpdated
	}
	ev.SubscriptionID = sub.ID
	ev.UserID = sub.Metadata[metadataUserID]
	ev.Status = string(sub.Status)
	if sub.Customer != nil {
		ev.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		ev.PriceID = sub.Items.Data[0].Price.ID
	}
	return nil
}

func parseInvoice(raw json.RawMessage, ev *WebhookEvent) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return errors.Join(ErrInvalidWebhookPayload, err)
	}

	ev.Type = EventPaymentSucceeded
	ev.BillingReason = string(inv.BillingReason)
	if inv.Subscription != nil {
		ev.SubscriptionID = inv.Subscription.ID
	}
	if inv.Customer != nil {
		ev.CustomerID = inv.Customer.ID
	}
	if inv.SubscriptionDetails != nil {
		ev.UserID = inv.SubscriptionDetails.Metadata[metadataUserID]
	}
	ev.PriceID = invoicedPrice(inv.Lines)
	return nil
}

// invoicedPrice returns the price of the first line charging for the plan
// itself. Proration lines and credits for unused time name the previous
// price and are skipped.
func invoicedPrice(lines *stripe.InvoiceLineItemList) string {
	if lines == nil {
		return ""
	}
	for _, line := range lines.Data {
		if line == nil || line.Proration || line.Amount < 0 {
			continue
		}
		if line.Price != nil && line.Price.ID != "" {
			return line.Price.ID
		}
	}
	return ""
}
