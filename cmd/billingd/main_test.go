package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/productphotostudio/billing/pkg/logger"
	"github.com/productphotostudio/billing/pkg/subscription"
)

func validAppConfig() appConfig {
	return appConfig{
		UserIDHeader:   "X-User-ID",
		EventRetention: 720 * time.Hour,
		PruneSchedule:  "@daily",
		WebhookLimit:   256 << 10,
	}
}

func TestAppConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		mutate func(*appConfig)
		want   string
	}{
		"valid":           {mutate: func(*appConfig) {}},
		"short retention": {mutate: func(c *appConfig) { c.EventRetention = 24 * time.Hour }, want: "EVENT_RETENTION"},
		"empty header":    {mutate: func(c *appConfig) { c.UserIDHeader = "" }, want: "USER_ID_HEADER"},
		"zero limit":      {mutate: func(c *appConfig) { c.WebhookLimit = 0 }, want: "WEBHOOK_BODY_LIMIT"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := validAppConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func testPrices() subscription.PriceConfig {
	return subscription.PriceConfig{
		StarterMonthly:    "price_starter_monthly_0001",
		CreatorMonthly:    "price_creator_monthly_0001",
		EnterpriseMonthly: "price_enterprise_month_001",
		StarterAnnual:     "price_starter_annual_00001",
		CreatorAnnual:     "price_creator_annual_00001",
		EnterpriseAnnual:  "price_enterprise_annual_01",
	}
}

func TestLoadPriceTable(t *testing.T) {
	t.Parallel()

	t.Run("built-in catalog", func(t *testing.T) {
		t.Parallel()
		table, err := loadPriceTable("", testPrices())
		require.NoError(t, err)

		price, err := table.Resolve("price_creator_annual_00001")
		require.NoError(t, err)
		assert.Equal(t, subscription.TierCreator, price.Tier)
		assert.Equal(t, subscription.CycleAnnual, price.Cycle)
		assert.Equal(t, int64(200000), table.Allotment(subscription.TierCreator))
	})

	t.Run("missing catalog file", func(t *testing.T) {
		t.Parallel()
		_, err := loadPriceTable(filepath.Join(t.TempDir(), "plans.yaml"), testPrices())
		assert.ErrorIs(t, err, subscription.ErrFailedToLoadPlans)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("duplicate price IDs", func(t *testing.T) {
		t.Parallel()
		prices := testPrices()
		prices.CreatorAnnual = prices.CreatorMonthly
		_, err := loadPriceTable("", prices)
		assert.ErrorIs(t, err, subscription.ErrDuplicatePriceID)
	})
}

func TestSchedulePruning(t *testing.T) {
	t.Parallel()

	t.Run("invalid schedule", func(t *testing.T) {
		t.Parallel()
		cfg := validAppConfig()
		cfg.PruneSchedule = "every tuesday"
		_, err := schedulePruning(subscription.NewMemoryStore(), cfg, logger.Discard())
		assert.ErrorContains(t, err, "every tuesday")
	})

	t.Run("stop hook", func(t *testing.T) {
		t.Parallel()
		stop, err := schedulePruning(subscription.NewMemoryStore(), validAppConfig(), logger.Discard())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, stop(ctx))
	})
}
