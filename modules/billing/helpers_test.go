package billing_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/productphotostudio/billing/modules/billing"
	"github.com/productphotostudio/billing/pkg/subscription"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) EnsureSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *mockService) GetSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

func (m *mockService) Plans() []subscription.Plan {
	args := m.Called()
	return args.Get(0).([]subscription.Plan)
}

func (m *mockService) CreateCheckoutLink(ctx context.Context, userID uuid.UUID, tier subscription.Tier, cycle subscription.BillingCycle, opts subscription.CheckoutOptions) (*subscription.CheckoutLink, error) {
	args := m.Called(ctx, userID, tier, cycle, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.CheckoutLink), args.Error(1)
}

func (m *mockService) GetCustomerPortalLink(ctx context.Context, userID uuid.UUID, returnURL string) (*subscription.PortalLink, error) {
	args := m.Called(ctx, userID, returnURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.PortalLink), args.Error(1)
}

func (m *mockService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*subscription.WebhookEvent, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.WebhookEvent), args.Error(1)
}

type envelope struct {
	Data  json.RawMessage      `json:"data"`
	Error *billing.ErrorDetail `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}
