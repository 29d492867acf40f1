package subscription

// Tier is a named subscription level that controls the credit allotment.
// The zero value means the account has no active subscription.
type Tier string

const (
	TierNone       Tier = ""
	TierStarter    Tier = "starter"
	TierCreator    Tier = "creator"
	TierEnterprise Tier = "enterprise"
)

// Tiers lists the paid tiers in ascending order.
var Tiers = []Tier{TierStarter, TierCreator, TierEnterprise}

// Valid reports whether t is one of the paid tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierStarter, TierCreator, TierEnterprise:
		return true
	}
	return false
}

// BillingCycle is the billing frequency of a price.
type BillingCycle string

const (
	CycleNone    BillingCycle = ""
	CycleMonthly BillingCycle = "monthly"
	CycleAnnual  BillingCycle = "annual"
)

// Cycles lists the supported billing cycles.
var Cycles = []BillingCycle{CycleMonthly, CycleAnnual}

func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleAnnual
}

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  `yaml:"amount" json:"amount"`
	Currency string `yaml:"currency" json:"currency"`
}

// Status is the internal view of the subscription state.
type Status string

const (
	StatusNone      Status = "none"
	StatusActive    Status = "active"
	StatusTrialing  Status = "trialing"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
)

// EventType is the normalized billing event type.
// Provider implementations map their event names to these values; events
// that do not map keep their raw name and are ignored by the service.
type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout_completed"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventSubscriptionDeleted EventType = "subscription_deleted"
	EventPaymentSucceeded    EventType = "payment_succeeded"
)

// CheckoutOptions contains caller-supplied options for a checkout session.
type CheckoutOptions struct {
	Email      string // pre-fill billing email if known
	SuccessURL string // overrides the default success redirect
	CancelURL  string // overrides the default cancel redirect
}

// Known reports whether the reconciler acts on events of this type.
func (e EventType) Known() bool {
	switch e {
	case EventCheckoutCompleted, EventSubscriptionUpdated, EventSubscriptionDeleted, EventPaymentSucceeded:
		return true
	}
	return false
}
