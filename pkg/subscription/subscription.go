package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is the billing state of one user account.
// Each user has exactly one record, created with TierNone at sign-up.
type Subscription struct {
	UserID             uuid.UUID    `json:"user_id"`
	Tier               Tier         `json:"tier"`
	Cycle              BillingCycle `json:"cycle"`
	Credits            int64        `json:"credits"`
	Status             Status       `json:"status"`
	ProviderSubID      string       `json:"provider_subscription_id,omitempty"`
	ProviderCustomerID string       `json:"provider_customer_id,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	CancelledAt        *time.Time   `json:"cancelled_at,omitempty"`
}

// NewSubscription returns the inactive record created at account creation.
func NewSubscription(userID uuid.UUID, now time.Time) *Subscription {
	return &Subscription{
		UserID:    userID,
		Status:    StatusNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive reports whether the account currently holds a paid tier.
func (s *Subscription) IsActive() bool {
	return s.Tier != TierNone
}

// Clone returns a deep copy.
func (s *Subscription) Clone() *Subscription {
	c := *s
	if s.CancelledAt != nil {
		t := *s.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}

func (s *Subscription) activate(price Price, credits int64, subID, customerID string, now time.Time) {
	s.Tier = price.Tier
	s.Cycle = price.Cycle
	s.Credits = credits
	s.Status = StatusActive
	s.ProviderSubID = subID
	if customerID != "" {
		s.ProviderCustomerID = customerID
	}
	s.CancelledAt = nil
	s.UpdatedAt = now
}

func (s *Subscription) deactivate(now time.Time) {
	s.Tier = TierNone
	s.Cycle = CycleNone
	s.Credits = 0
	s.Status = StatusCancelled
	s.ProviderSubID = ""
	s.CancelledAt = &now
	s.UpdatedAt = now
}
