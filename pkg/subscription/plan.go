package subscription

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Stripe price IDs look like price_1SIDgmAEzseiAJU6m8OBsmEE.
const (
	priceIDPrefix    = "price_"
	priceIDMinLength = 20
)

// Plan describes one paid tier: its credit allotment per billing period and
// the provider price IDs that sell it.
type Plan struct {
	Tier        Tier
	Name        string
	Description string
	Credits     int64                   // allotment granted on activation and each renewal
	Prices      map[BillingCycle]Money  // display prices, informational only
	PriceIDs    map[BillingCycle]string // provider price ID per cycle
}

// Price is what a provider price ID resolves to.
type Price struct {
	ID    string
	Tier  Tier
	Cycle BillingCycle
}

// CompareTiers returns -1 if a ranks below b, 1 if above and 0 if equal.
// TierNone ranks below every paid tier.
func CompareTiers(a, b Tier) int {
	rank := func(t Tier) int { return slices.Index(Tiers, t) }
	switch ra, rb := rank(a), rank(b); {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	}
	return 0
}

// ValidatePriceIDFormat checks that id looks like a Stripe price identifier.
func ValidatePriceIDFormat(id string) error {
	if !strings.HasPrefix(id, priceIDPrefix) {
		return fmt.Errorf("%w: %q must start with %q", ErrInvalidPriceID, id, priceIDPrefix)
	}
	if len(id) < priceIDMinLength {
		return fmt.Errorf("%w: %q seems too short", ErrInvalidPriceID, id)
	}
	return nil
}

// PriceTable is the immutable, injective mapping from provider price IDs to
// (tier, cycle). It is built once at startup and shared read-only.
type PriceTable struct {
	plans  map[Tier]Plan
	prices map[string]Price
}

// NewPriceTable validates the plans and builds the lookup table.
// Every paid tier must be present with a positive allotment and a well-formed
// price ID for each cycle, and no price ID may be used twice.
func NewPriceTable(plans ...Plan) (*PriceTable, error) {
	t := &PriceTable{
		plans:  make(map[Tier]Plan, len(plans)),
		prices: make(map[string]Price, len(plans)*len(Cycles)),
	}

	for _, p := range plans {
		if !p.Tier.Valid() {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("%w: %q", ErrInvalidTier, p.Tier))
		}
		if _, dup := t.plans[p.Tier]; dup {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("tier %s defined twice", p.Tier))
		}
		if p.Credits <= 0 {
			return nil, errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("tier %s has non-positive credit allotment %d", p.Tier, p.Credits))
		}

		for _, cycle := range Cycles {
			id := p.PriceIDs[cycle]
			if id == "" {
				return nil, errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("%w: tier %s cycle %s", ErrMissingPriceID, p.Tier, cycle))
			}
			if err := ValidatePriceIDFormat(id); err != nil {
				return nil, errors.Join(ErrInvalidPlanConfiguration, err)
			}
			if prev, dup := t.prices[id]; dup {
				return nil, errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("%w: %s used by %s/%s and %s/%s", ErrDuplicatePriceID, id, prev.Tier, prev.Cycle, p.Tier, cycle))
			}
			t.prices[id] = Price{ID: id, Tier: p.Tier, Cycle: cycle}
		}

		t.plans[p.Tier] = clonePlan(p)
	}

	for _, tier := range Tiers {
		if _, ok := t.plans[tier]; !ok {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("tier %s is not configured", tier))
		}
	}

	return t, nil
}

// Resolve maps a provider price ID to its tier and cycle.
func (t *PriceTable) Resolve(priceID string) (Price, error) {
	if priceID == "" {
		return Price{}, ErrMissingPriceID
	}
	p, ok := t.prices[priceID]
	if !ok {
		return Price{}, fmt.Errorf("%w: %s", ErrUnknownPriceID, priceID)
	}
	return p, nil
}

// PriceID returns the provider price ID selling tier at the given cycle.
func (t *PriceTable) PriceID(tier Tier, cycle BillingCycle) (string, error) {
	if !cycle.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCycle, cycle)
	}
	p, err := t.Plan(tier)
	if err != nil {
		return "", err
	}
	return p.PriceIDs[cycle], nil
}

// Plan returns a copy of the plan for tier.
func (t *PriceTable) Plan(tier Tier) (Plan, error) {
	p, ok := t.plans[tier]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrPlanNotFound, tier)
	}
	return clonePlan(p), nil
}

// Allotment returns the credit allotment of tier, or 0 for TierNone and
// unknown tiers.
func (t *PriceTable) Allotment(tier Tier) int64 {
	return t.plans[tier].Credits
}

// Plans returns copies of all plans ordered by tier rank.
func (t *PriceTable) Plans() []Plan {
	out := make([]Plan, 0, len(t.plans))
	for _, tier := range Tiers {
		if p, ok := t.plans[tier]; ok {
			out = append(out, clonePlan(p))
		}
	}
	return out
}

func clonePlan(p Plan) Plan {
	p.Prices = maps.Clone(p.Prices)
	p.PriceIDs = maps.Clone(p.PriceIDs)
	return p
}
