package subscription_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/productphotostudio/billing/pkg/subscription"
)

const testWebhookSecret = "whsec_test_secret"

func testStripeConfig() subscription.StripeConfig {
	return subscription.StripeConfig{
		SecretKey:        "sk_test_123",
		WebhookSecret:    testWebhookSecret,
		BaseURL:          "https://app.example.com/",
		SuccessPath:      "/billing/success",
		CancelPath:       "/billing/cancel",
		PortalReturnPath: "/settings/billing",
	}
}

// stripeStub records form posts and serves canned Stripe responses by path.
type stripeStub struct {
	mu        sync.Mutex
	forms     map[string]map[string][]string
	responses map[string]string
}

func newStripeStub(t *testing.T, responses map[string]string) (*stripeStub, *stripe.Backends) {
	t.Helper()
	stub := &stripeStub{forms: map[string]map[string][]string{}, responses: responses}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return stub, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
}

func (s *stripeStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	s.mu.Lock()
	s.forms[r.URL.Path] = r.PostForm
	body, ok := s.responses[r.URL.Path]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"not found"}}`))
		return
	}
	_, _ = w.Write([]byte(body))
}

func (s *stripeStub) form(path string) map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forms[path]
}

func signedEvent(t *testing.T, eventType string, object any) ([]byte, string) {
	t.Helper()
	obj, err := json.Marshal(object)
	require.NoError(t, err)

	payload := fmt.Appendf(nil,
		`{"id":"evt_%s","object":"event","api_version":"2020-08-27","created":1700000000,"type":%q,"data":{"object":%s}}`,
		uuid.NewString()[:8], eventType, obj)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}

func newTestStripe(t *testing.T, opts ...subscription.StripeOption) *subscription.StripeProvider {
	t.Helper()
	p, err := subscription.NewStripeProvider(testStripeConfig(), opts...)
	require.NoError(t, err)
	return p
}

func TestNewStripeProvider(t *testing.T) {
	t.Parallel()

	cfg := testStripeConfig()
	cfg.SecretKey = ""
	cfg.BaseURL = ""
	_, err := subscription.NewStripeProvider(cfg)
	assert.ErrorIs(t, err, subscription.ErrMissingAPIKey)
	assert.ErrorIs(t, err, subscription.ErrMissingBaseURL)

	cfg = testStripeConfig()
	cfg.WebhookSecret = ""
	_, err = subscription.NewStripeProvider(cfg)
	assert.ErrorIs(t, err, subscription.ErrMissingWebhookSecret)
}

func TestStripeProvider_ParseWebhook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	userID := uuid.NewString()

	t.Run("checkout completed with metadata price", func(t *testing.T) {
		t.Parallel()
		p := newTestStripe(t)
		payload, sig := signedEvent(t, "checkout.session.completed", map[string]any{
			"id":                  "cs_test_1",
			"object":              "checkout.session",
			"mode":                "subscription",
			"client_reference_id": userID,
			"customer":            "cus_1",
			"subscription":        "sub_1",
			"metadata":            map[string]string{"price_id": creatorMonthlyID, "user_id": userID},
		})

		ev, err := p.ParseWebhook(ctx, payload, sig)
		require.NoError(t, err)
		assert.Equal(t, subscription.EventCheckoutCompleted, ev.Type)
		assert.Equal(t, "checkout.session.completed", ev.ProviderEvent)
		assert.Equal(t, userID, ev.UserID)
		assert.Equal(t, "sub_1", ev.SubscriptionID)
		assert.Equal(t, "cus_1", ev.CustomerID)
		assert.Equal(t, creatorMonthlyID, ev.PriceID)
		assert.Equal(t, time.Unix(1700000000, 0).UTC(), ev.OccurredAt)
		assert.NotEmpty(t, ev.ID)
	})

	t.Run("checkout completed with expanded line items", func(t *testing.T) {
		t.Parallel()
		p := newTestStripe(t)
		payload, sig := signedEvent(t, "checkout.session.completed", map[string]any{
			"id":       "cs_test_2",
			"object":   "checkout.session",
			"metadata": map[string]string{"user_id": userID},
			"line_items": map[string]any{
				"object": "list",
				"data": []any{
					map[string]any{"id": "li_1", "object": "item", "price": map[string]any{"id": starterAnnualID, "object": "price"}},
				},
			},
		})

		ev, err := p.ParseWebhook(ctx, payload, sig)
		require.NoError(t, err)
		assert.Equal(t, userID, ev.UserID)
		assert.Equal(t, starterAnnualID, ev.PriceID)
	})

	t.Run("checkout completed falls back to line item lookup", func(t *testing.T) {
		t.Parallel()
		p := newTestStripe(t, subscription.WithLineItemLookup(func(_ context.Context, sessionID string) (string, error) {
			assert.Equal(t, "cs_test_3", sessionID)
			return enterpriseMonthlyID, nil
		}))
		payload, sig := signedEvent(t, "checkout.session.completed", map[string]any{
			"id":                  "cs_test_3",
			"object":              "checkout.session",
			"client_reference_id": userID,
		})

		ev, err := p.ParseWebhook(ctx, payload, sig)
		require.NoError(t, err)
		assert.Equal(t, enterpriseMonthlyID, ev.PriceID)
	})

	t.Run("checkout line items fetched from the API", func(t *testing.T) {
		t.Parallel()
		_, backends := newStripeStub(t, map[string]string{
			"/v1/checkout/sessions/cs_test_4/line_items": fmt.Sprintf(
				`{"object":"list","url":"/v1/checkout/sessions/cs_test_4/line_items","has_more":false,"data":[{"id":"li_1","object":"item","price":{"id":%q,"object":"price"}}]}`,
				creatorAnnualID),
		})
		p := newTestStripe(t, subscription.WithBackends(backends))
		payload, sig := signedEvent(t, "checkout.session.completed", map[string]any{
			"id":                  "cs_test_4",
			"object":              "checkout.session",
			"client_reference_id": userID,
		})

		ev, err := p.ParseWebhook(ctx, payload, sig)
		require.NoError(t, err)
		assert.Equal(t, creatorAnnualID, ev.PriceID)
	})

	t.Run("subscription updated", func(t *testing.T) {
		t.Parallel()
		p := newTestStripe(t)
		payload, sig := signedEvent(t, "customer.subscription.updated", map[string]any{
			"id":       "sub_1",
			"object":   "subscription",
			"customer": "cus_1",
			"status":   "past_due",
			"metadata": map[string]string{"user_id": userID},
			"items": map[string]any{
				"object": "list",
				"data": []any{
					map[string]any{"id": "si_1", "object": "subscription_item", "price": map[string]any{"id": enterpriseAnnualID, "object": "price"}},
				},
			},
		})

		ev, err := p.ParseWebhook(ctx, payload, sig)
		require.NoError(t, err)
		assert.Equal(t, subscription.EventSubscriptionUpdated, ev.Type)
		assert.Equal(t, "sub_1", ev.SubscriptionID)
		assert.Equal(t, userID, ev.UserID)
		assert.Equal(t, "past_due", ev.Status)
		assert.Equal(t, enterpriseAnnualID, ev.PriceID)
	})

	t.Run("subscription deleted", func(t *testing.T) {
		t.Parallel()
		p := newTestStripe(t)
		payload, sig := signedEvent(t, "customer.subscription.deleted", map[string]any{
			"id":     "sub_1",
			"object": "subscription",
			"status": "canceled",
		})

		ev, err := p.ParseWebhook(ctx, payload, sig)
		require.NoError(t, err)
		assert.Equal(t, subscription.EventSubscriptionDeleted, ev.Type)
		assert.Equal(t, "sub_1", ev.SubscriptionID)
		assert.Equal(t, "canceled", ev.Status)
	})

	t.Run("invoice payment succeeded", func(t *testing.T) {
		t.Parallel()
		p := newTestStripe(t)
		payload, sig := signedEvent(t, "invoice.payment_succeeded", map[string]any{
			"id":                   "in_1",
			"object":               "invoice",
			"customer":             "cus_1",
			"subscription":         "sub_1",
			"billing_reason":       "subscription_cycle",
			"subscription_details": map[string]any{"metadata": map[string]string{"user_id": userID}},
			"lines": map[string]any{
				"object": "list",
				"data": []any{
					map[string]any{"id": "il_1", "object": "line_item", "price": map[string]any{"id": creatorMonthlyID, "object": "price"}},
				},
			},
		})

		ev, err := p.ParseWebhook(ctx, payload, sig)
		require.NoError(t, err)
		assert.Equal(t, subscription.EventPaymentSucceeded, ev.Type)
		assert.Equal(t, "sub_1", ev.SubscriptionID)
		assert.Equal(t, userID, ev.UserID)
		assert.Equal(t, "subscription_cycle", ev.BillingReason)
		assert.Equal(t, creatorMonthlyID, ev.PriceID)
	})

	t.Run("proration invoice takes the price of the charged line", func(t *testing.T) {
		t.Parallel()
		p := newTestStripe(t)
		payload, sig := signedEvent(t, "invoice.payment_succeeded", map[string]any{
			"id":             "in_2",
			"object":         "invoice",
			"customer":       "cus_1",
			"subscription":   "sub_1",
			"billing_reason": "subscription_update",
			"lines": map[string]any{
				"object": "list",
				"data": []any{
					map[string]any{"id": "il_1", "object": "line_item", "amount": -400, "proration": true,
						"price": map[string]any{"id": starterMonthlyID, "object": "price"}},
					map[string]any{"id": "il_2", "object": "line_item", "amount": 700, "proration": true,
						"price": map[string]any{"id": creatorMonthlyID, "object": "price"}},
					map[string]any{"id": "il_3", "object": "line_item", "amount": 1500,
						"price": map[string]any{"id": creatorMonthlyID, "object": "price"}},
				},
			},
		})

		ev, err := p.ParseWebhook(ctx, payload, sig)
		require.NoError(t, err)
		assert.Equal(t, "subscription_update", ev.BillingReason)
		assert.Equal(t, creatorMonthlyID, ev.PriceID)
	})

	t.Run("invoice with only proration lines has no price", func(t *testing.T) {
		t.Parallel()
		p := newTestStripe(t)
		payload, sig := signedEvent(t, "invoice.payment_succeeded", map[string]any{
			"id":             "in_3",
			"object":         "invoice",
			"subscription":   "sub_1",
			"billing_reason": "subscription_update",
			"lines": map[string]any{
				"object": "list",
				"data": []any{
					map[string]any{"id": "il_1", "object": "line_item", "amount": -400, "proration": true,
						"price": map[string]any{"id": starterMonthlyID, "object": "price"}},
					map[string]any{"id": "il_2", "object": "line_item", "amount": 700, "proration": true,
						"price": map[string]any{"id": creatorMonthlyID, "object": "price"}},
				},
			},
		})

		ev, err := p.ParseWebhook(ctx, payload, sig)
		require.NoError(t, err)
		assert.Empty(t, ev.PriceID)
	})

	t.Run("checkout payment status", func(t *testing.T) {
		t.Parallel()
		p := newTestStripe(t)
		session := func(status string) map[string]any {
			return map[string]any{
				"id":                  "cs_test_async",
				"object":              "checkout.session",
				"mode":                "subscription",
				"client_reference_id": userID,
				"subscription":        "sub_1",
				"payment_status":      status,
				"metadata":            map[string]string{"price_id": creatorMonthlyID},
			}
		}

		payload, sig := signedEvent(t, "checkout.session.completed", session("unpaid"))
		ev, err := p.ParseWebhook(ctx, payload, sig)
		require.NoError(t, err)
		assert.Equal(t, subscription.EventCheckoutCompleted, ev.Type)
		assert.Equal(t, "unpaid", ev.PaymentStatus)

		payload, sig = signedEvent(t, "checkout.session.async_payment_succeeded", session("paid"))
		ev, err = p.ParseWebhook(ctx, payload, sig)
		require.NoError(t, err)
		assert.Equal(t, subscription.EventCheckoutCompleted, ev.Type)
		assert.Equal(t, "checkout.session.async_payment_succeeded", ev.ProviderEvent)
		assert.Equal(t, "paid", ev.PaymentStatus)
		assert.Equal(t, creatorMonthlyID, ev.PriceID)
	})

	t.Run("other event types keep their raw type", func(t *testing.T) {
		t.Parallel()
		p := newTestStripe(t)
		payload, sig := signedEvent(t, "customer.created", map[string]any{"id": "cus_1", "object": "customer"})

		ev, err := p.ParseWebhook(ctx, payload, sig)
		require.NoError(t, err)
		assert.Equal(t, subscription.EventType("customer.created"), ev.Type)
		assert.Empty(t, ev.UserID)
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		p := newTestStripe(t)
		payload, _ := signedEvent(t, "customer.subscription.deleted", map[string]any{"id": "sub_1"})

		_, err := p.ParseWebhook(ctx, payload, "t=1700000000,v1=deadbeef")
		assert.ErrorIs(t, err, subscription.ErrWebhookVerificationFailed)
	})

	t.Run("tampered payload", func(t *testing.T) {
		t.Parallel()
		p := newTestStripe(t)
		payload, sig := signedEvent(t, "customer.subscription.deleted", map[string]any{"id": "sub_1"})
		payload[len(payload)-2] = ' '

		_, err := p.ParseWebhook(ctx, payload, sig)
		assert.ErrorIs(t, err, subscription.ErrWebhookVerificationFailed)
	})
}

func TestStripeProvider_CreateCheckoutLink(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	const sessionPath = "/v1/checkout/sessions"
	sessionJSON := `{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1","expires_at":1700003600}`

	t.Run("creates a subscription session", func(t *testing.T) {
		t.Parallel()
		stub, backends := newStripeStub(t, map[string]string{sessionPath: sessionJSON})
		p := newTestStripe(t, subscription.WithBackends(backends))
		userID := uuid.NewString()

		link, err := p.CreateCheckoutLink(ctx, subscription.CheckoutRequest{
			UserID:  userID,
			PriceID: starterMonthlyID,
			Tier:    subscription.TierStarter,
			Cycle:   subscription.CycleMonthly,
			Email:   "ann@example.com",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", link.URL)
		assert.Equal(t, "cs_test_1", link.SessionID)
		assert.Equal(t, time.Unix(1700003600, 0).UTC(), link.ExpiresAt)

		form := stub.form(sessionPath)
		require.NotNil(t, form)
		assert.Equal(t, []string{"subscription"}, form["mode"])
		assert.Equal(t, []string{userID}, form["client_reference_id"])
		assert.Equal(t, []string{starterMonthlyID}, form["line_items[0][price]"])
		assert.Equal(t, []string{"1"}, form["line_items[0][quantity]"])
		assert.Equal(t, []string{userID}, form["metadata[user_id]"])
		assert.Equal(t, []string{starterMonthlyID}, form["metadata[price_id]"])
		assert.Equal(t, []string{userID}, form["subscription_data[metadata][user_id]"])
		assert.Equal(t, []string{"ann@example.com"}, form["customer_email"])
		assert.Equal(t, []string{"https://app.example.com/billing/success"}, form["success_url"])
		assert.Equal(t, []string{"https://app.example.com/billing/cancel"}, form["cancel_url"])
		assert.Empty(t, form["discounts[0][coupon]"])
	})

	t.Run("coupon applies only to its tier and cycle", func(t *testing.T) {
		t.Parallel()
		stub, backends := newStripeStub(t, map[string]string{sessionPath: sessionJSON})
		p := newTestStripe(t,
			subscription.WithBackends(backends),
			subscription.WithCoupon("LAUNCH50", subscription.TierCreator, subscription.CycleMonthly),
		)

		_, err := p.CreateCheckoutLink(ctx, subscription.CheckoutRequest{
			UserID: uuid.NewString(), PriceID: creatorMonthlyID,
			Tier: subscription.TierCreator, Cycle: subscription.CycleMonthly,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"LAUNCH50"}, stub.form(sessionPath)["discounts[0][coupon]"])

		_, err = p.CreateCheckoutLink(ctx, subscription.CheckoutRequest{
			UserID: uuid.NewString(), PriceID: creatorAnnualID,
			Tier: subscription.TierCreator, Cycle: subscription.CycleAnnual,
		})
		require.NoError(t, err)
		assert.Empty(t, stub.form(sessionPath)["discounts[0][coupon]"])
	})

	t.Run("explicit redirect URLs win", func(t *testing.T) {
		t.Parallel()
		stub, backends := newStripeStub(t, map[string]string{sessionPath: sessionJSON})
		p := newTestStripe(t, subscription.WithBackends(backends))

		_, err := p.CreateCheckoutLink(ctx, subscription.CheckoutRequest{
			UserID: uuid.NewString(), PriceID: creatorMonthlyID,
			SuccessURL: "https://other.example.com/ok", CancelURL: "https://other.example.com/no",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"https://other.example.com/ok"}, stub.form(sessionPath)["success_url"])
		assert.Equal(t, []string{"https://other.example.com/no"}, stub.form(sessionPath)["cancel_url"])
	})

	t.Run("missing URL", func(t *testing.T) {
		t.Parallel()
		_, backends := newStripeStub(t, map[string]string{sessionPath: `{"id":"cs_test_1","object":"checkout.session"}`})
		p := newTestStripe(t, subscription.WithBackends(backends))

		_, err := p.CreateCheckoutLink(ctx, subscription.CheckoutRequest{UserID: uuid.NewString(), PriceID: creatorMonthlyID})
		assert.ErrorIs(t, err, subscription.ErrNoCheckoutURL)
	})

	t.Run("API error", func(t *testing.T) {
		t.Parallel()
		_, backends := newStripeStub(t, map[string]string{})
		p := newTestStripe(t, subscription.WithBackends(backends))

		_, err := p.CreateCheckoutLink(ctx, subscription.CheckoutRequest{UserID: uuid.NewString(), PriceID: creatorMonthlyID})
		assert.ErrorIs(t, err, subscription.ErrProviderError)
	})
}

func TestStripeProvider_GetCustomerPortalLink(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	const portalPath = "/v1/billing_portal/sessions"

	stub, backends := newStripeStub(t, map[string]string{
		portalPath: `{"id":"bps_1","object":"billing_portal.session","url":"https://billing.stripe.com/p/session/test_1"}`,
	})
	p := newTestStripe(t, subscription.WithBackends(backends))

	link, err := p.GetCustomerPortalLink(ctx, &subscription.Subscription{ProviderCustomerID: "cus_1"}, "")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.com/p/session/test_1", link.URL)

	form := stub.form(portalPath)
	assert.Equal(t, []string{"cus_1"}, form["customer"])
	assert.Equal(t, []string{"https://app.example.com/settings/billing"}, form["return_url"])

	_, err = p.GetCustomerPortalLink(ctx, &subscription.Subscription{}, "")
	assert.ErrorIs(t, err, subscription.ErrMissingProviderCustomerID)
}
