package subscription_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/productphotostudio/billing/pkg/subscription"
)

const (
	starterMonthlyID    = "price_starter_monthly_0001"
	starterAnnualID     = "price_starter_annual_00001"
	creatorMonthlyID    = "price_creator_monthly_0001"
	creatorAnnualID     = "price_creator_annual_00001"
	enterpriseMonthlyID = "price_enterprise_monthly_1"
	enterpriseAnnualID  = "price_enterprise_annual_01"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testPriceConfig() subscription.PriceConfig {
	return subscription.PriceConfig{
		StarterMonthly:    starterMonthlyID,
		StarterAnnual:     starterAnnualID,
		CreatorMonthly:    creatorMonthlyID,
		CreatorAnnual:     creatorAnnualID,
		EnterpriseMonthly: enterpriseMonthlyID,
		EnterpriseAnnual:  enterpriseAnnualID,
		CouponTier:        subscription.TierCreator,
		CouponCycle:       subscription.CycleMonthly,
	}
}

func testPlans() []subscription.Plan {
	return []subscription.Plan{
		{
			Tier:     subscription.TierStarter,
			Name:     "Starter",
			Credits:  300,
			PriceIDs: map[subscription.BillingCycle]string{subscription.CycleMonthly: starterMonthlyID, subscription.CycleAnnual: starterAnnualID},
		},
		{
			Tier:     subscription.TierCreator,
			Name:     "Creator",
			Credits:  1000,
			PriceIDs: map[subscription.BillingCycle]string{subscription.CycleMonthly: creatorMonthlyID, subscription.CycleAnnual: creatorAnnualID},
		},
		{
			Tier:     subscription.TierEnterprise,
			Name:     "Enterprise",
			Credits:  5000,
			PriceIDs: map[subscription.BillingCycle]string{subscription.CycleMonthly: enterpriseMonthlyID, subscription.CycleAnnual: enterpriseAnnualID},
		},
	}
}

func newTestTable(t *testing.T) *subscription.PriceTable {
	t.Helper()
	table, err := subscription.NewPriceTable(testPlans()...)
	require.NoError(t, err)
	return table
}
