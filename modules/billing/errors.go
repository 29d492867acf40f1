package billing

import (
	"errors"
	"net/http"

	"github.com/productphotostudio/billing/pkg/subscription"
)

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrInvalidJSON          = errors.New("invalid JSON request body")
	ErrBodyTooLarge         = errors.New("request body too large")
	ErrUnauthenticated      = errors.New("caller identity is missing or invalid")
)

// HTTPError pairs a status code with a stable machine-readable key.
type HTTPError struct {
	Code int
	Key  string
}

func (e HTTPError) Error() string { return e.Key }

// errorStatus maps a domain error to the response status and error key.
// The first matching sentinel wins.
func errorStatus(err error) HTTPError {
	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return HTTPError{Code: http.StatusInternalServerError, Key: "internal_error"}
}

var errorStatuses = []struct {
	err    error
	status HTTPError
}{
	{ErrBodyTooLarge, HTTPError{http.StatusRequestEntityTooLarge, "body_too_large"}},
	{ErrUnsupportedMediaType, HTTPError{http.StatusUnsupportedMediaType, "unsupported_media_type"}},
	{ErrInvalidJSON, HTTPError{http.StatusBadRequest, "invalid_json"}},
	{ErrUnauthenticated, HTTPError{http.StatusUnauthorized, "unauthenticated"}},

	{subscription.ErrWebhookVerificationFailed, HTTPError{http.StatusBadRequest, "invalid_signature"}},
	{subscription.ErrInvalidWebhookPayload, HTTPError{http.StatusBadRequest, "invalid_payload"}},
	{subscription.ErrEventInFlight, HTTPError{http.StatusConflict, "event_in_flight"}},
	{subscription.ErrUnknownPriceID, HTTPError{http.StatusUnprocessableEntity, "unknown_price_id"}},
	{subscription.ErrMissingPriceID, HTTPError{http.StatusUnprocessableEntity, "missing_price_id"}},

	{subscription.ErrInvalidTier, HTTPError{http.StatusUnprocessableEntity, "invalid_tier"}},
	{subscription.ErrInvalidCycle, HTTPError{http.StatusUnprocessableEntity, "invalid_cycle"}},
	{subscription.ErrPlanNotFound, HTTPError{http.StatusUnprocessableEntity, "plan_not_found"}},
	{subscription.ErrSubscriptionNotFound, HTTPError{http.StatusNotFound, "subscription_not_found"}},
	{subscription.ErrSubscriptionAlreadyExists, HTTPError{http.StatusConflict, "subscription_active"}},
	{subscription.ErrMissingProviderCustomerID, HTTPError{http.StatusConflict, "no_billing_account"}},
	{subscription.ErrProviderError, HTTPError{http.StatusBadGateway, "provider_error"}},
	{subscription.ErrNoCheckoutURL, HTTPError{http.StatusBadGateway, "provider_error"}},
	{subscription.ErrNoPortalURL, HTTPError{http.StatusBadGateway, "provider_error"}},
}
