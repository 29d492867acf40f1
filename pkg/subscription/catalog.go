package subscription

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogEntry holds the non-secret description of a tier: its name, credit
// allotment and display prices. Price IDs are supplied separately through
// PriceConfig since they differ between Stripe accounts.
type CatalogEntry struct {
	Tier        Tier                   `yaml:"tier"`
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Credits     int64                  `yaml:"credits"`
	Prices      map[BillingCycle]Money `yaml:"prices"`
}

type catalogFile struct {
	Plans []CatalogEntry `yaml:"plans"`
}

// DefaultCatalog returns the catalog published on the pricing page.
func DefaultCatalog() []CatalogEntry {
	usd := func(cents int64) Money { return Money{Amount: cents, Currency: "USD"} }
	return []CatalogEntry{
		{
			Tier:        TierStarter,
			Name:        "Starter",
			Description: "120 images per month",
			Credits:     60000,
			Prices:      map[BillingCycle]Money{CycleMonthly: usd(600), CycleAnnual: usd(6000)},
		},
		{
			Tier:        TierCreator,
			Name:        "Creator",
			Description: "400 images per month",
			Credits:     200000,
			Prices:      map[BillingCycle]Money{CycleMonthly: usd(1100), CycleAnnual: usd(22000)},
		},
		{
			Tier:        TierEnterprise,
			Name:        "Enterprise",
			Description: "1600 images per month",
			Credits:     800000,
			Prices:      map[BillingCycle]Money{CycleMonthly: usd(9900), CycleAnnual: usd(99000)},
		},
	}
}

// ReadCatalog decodes a YAML catalog:
//
//	plans:
//	  - tier: creator
//	    name: Creator
//	    credits: 200000
//	    prices:
//	      monthly: {amount: 1100, currency: USD}
//	      annual:  {amount: 22000, currency: USD}
func ReadCatalog(r io.Reader) ([]CatalogEntry, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	if len(f.Plans) == 0 {
		return nil, errors.Join(ErrFailedToLoadPlans, errors.New("catalog has no plans"))
	}
	for _, e := range f.Plans {
		if !e.Tier.Valid() {
			return nil, errors.Join(ErrFailedToLoadPlans, fmt.Errorf("%w: %q", ErrInvalidTier, e.Tier))
		}
	}
	return f.Plans, nil
}

// LoadCatalog reads the catalog file at path, or returns DefaultCatalog when
// path is empty.
func LoadCatalog(path string) ([]CatalogEntry, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	defer f.Close()
	return ReadCatalog(f)
}

// PriceConfig is the price ID configuration surface: six price IDs and an
// optional single-use coupon applied to one tier/cycle combination.
type PriceConfig struct {
	StarterMonthly    string `env:"STRIPE_PRICE_ID_STARTER,required"`
	CreatorMonthly    string `env:"STRIPE_PRICE_ID_CREATOR,required"`
	EnterpriseMonthly string `env:"STRIPE_PRICE_ID_ENTERPRISE,required"`
	StarterAnnual     string `env:"STRIPE_PRICE_ID_STARTER_ANNUAL,required"`
	CreatorAnnual     string `env:"STRIPE_PRICE_ID_CREATOR_ANNUAL,required"`
	EnterpriseAnnual  string `env:"STRIPE_PRICE_ID_ENTERPRISE_ANNUAL,required"`

	Coupon      string       `env:"STRIPE_CREATOR_COUPON"`
	CouponTier  Tier         `env:"STRIPE_COUPON_TIER" envDefault:"creator"`
	CouponCycle BillingCycle `env:"STRIPE_COUPON_CYCLE" envDefault:"monthly"`
}

// IDs returns the configured price IDs keyed by tier and cycle.
func (c PriceConfig) IDs() map[Tier]map[BillingCycle]string {
	return map[Tier]map[BillingCycle]string{
		TierStarter:    {CycleMonthly: c.StarterMonthly, CycleAnnual: c.StarterAnnual},
		TierCreator:    {CycleMonthly: c.CreatorMonthly, CycleAnnual: c.CreatorAnnual},
		TierEnterprise: {CycleMonthly: c.EnterpriseMonthly, CycleAnnual: c.EnterpriseAnnual},
	}
}

// Validate checks price ID format and uniqueness, and the coupon target.
func (c PriceConfig) Validate() error {
	seen := make(map[string]string, 6)
	var errs []error
	for _, tier := range Tiers {
		for _, cycle := range Cycles {
			id := c.IDs()[tier][cycle]
			slot := string(tier) + "/" + string(cycle)
			if err := ValidatePriceIDFormat(id); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", slot, err))
				continue
			}
			if prev, dup := seen[id]; dup {
				errs = append(errs, fmt.Errorf("%w: %s used by %s and %s", ErrDuplicatePriceID, id, prev, slot))
				continue
			}
			seen[id] = slot
		}
	}
	if c.Coupon != "" {
		if !c.CouponTier.Valid() {
			errs = append(errs, fmt.Errorf("coupon: %w: %q", ErrInvalidTier, c.CouponTier))
		}
		if !c.CouponCycle.Valid() {
			errs = append(errs, fmt.Errorf("coupon: %w: %q", ErrInvalidCycle, c.CouponCycle))
		}
	}
	return errors.Join(errs...)
}

// BuildPriceTable joins the catalog with the configured price IDs.
func BuildPriceTable(catalog []CatalogEntry, prices PriceConfig) (*PriceTable, error) {
	if err := prices.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidPlanConfiguration, err)
	}
	ids := prices.IDs()
	plans := make([]Plan, 0, len(catalog))
	for _, e := range catalog {
		plans = append(plans, Plan{
			Tier:        e.Tier,
			Name:        e.Name,
			Description: e.Description,
			Credits:     e.Credits,
			Prices:      e.Prices,
			PriceIDs:    ids[e.Tier],
		})
	}
	return NewPriceTable(plans...)
}
