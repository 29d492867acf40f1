// Command verifyprices checks the Stripe price ID configuration before a
// deploy: every ID is present, well formed and used once. With -fetch it
// also retrieves each price from Stripe and prints amount, interval and
// product.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/productphotostudio/billing/pkg/config"
	"github.com/productphotostudio/billing/pkg/subscription"
)

// slot is one configurable price ID.
type slot struct {
	Env   string
	Tier  subscription.Tier
	Cycle subscription.BillingCycle
	Def   string
}

// slots lists the six price IDs with the defaults of the production account.
var slots = []slot{
	{"STRIPE_PRICE_ID_STARTER", subscription.TierStarter, subscription.CycleMonthly, "price_1SIDgmAEzseiAJU6m8OBsmEE"},
	{"STRIPE_PRICE_ID_CREATOR", subscription.TierCreator, subscription.CycleMonthly, "price_1SIDnMAEzseiAJU6DaZmPwBf"},
	{"STRIPE_PRICE_ID_ENTERPRISE", subscription.TierEnterprise, subscription.CycleMonthly, "price_1SIDsNAEzseiAJU6BNb5geHN"},
	{"STRIPE_PRICE_ID_STARTER_ANNUAL", subscription.TierStarter, subscription.CycleAnnual, "price_1SIDgmAEzseiAJU6vsEva7Fe"},
	{"STRIPE_PRICE_ID_CREATOR_ANNUAL", subscription.TierCreator, subscription.CycleAnnual, "price_1SIDp0AEzseiAJU6mC23jEBO"},
	{"STRIPE_PRICE_ID_ENTERPRISE_ANNUAL", subscription.TierEnterprise, subscription.CycleAnnual, "price_1SIDr3AEzseiAJU6vAFIkUe9"},
}

const rule = "======================================================================"

func main() {
	// the .env file is optional
	_ = config.LoadEnv()

	fetch := flag.Bool("fetch", false, "retrieve each price from Stripe (requires STRIPE_SECRET_KEY)")
	plansFile := flag.String("plans", os.Getenv("PLANS_FILE"), "YAML plan catalog, built-in plans when empty")
	flag.Parse()

	if *fetch {
		key := os.Getenv("STRIPE_SECRET_KEY")
		if key == "" {
			fmt.Fprintln(os.Stderr, "STRIPE_SECRET_KEY is not set")
			os.Exit(1)
		}
		sc := client.New(key, nil)
		if !fetchPrices(context.Background(), os.Stdout, sc, resolve(os.LookupEnv)) {
			os.Exit(1)
		}
		return
	}

	catalog, err := subscription.LoadCatalog(*plansFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !verify(os.Stdout, resolve(os.LookupEnv), catalog) {
		os.Exit(1)
	}
}

// resolved is a slot with its effective value.
type resolved struct {
	slot
	Value     string
	IsDefault bool
}

func resolve(lookup func(string) (string, bool)) []resolved {
	out := make([]resolved, 0, len(slots))
	for _, s := range slots {
		v, ok := lookup(s.Env)
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			v = s.Def
		}
		out = append(out, resolved{slot: s, Value: v, IsDefault: v == s.Def})
	}
	return out
}

// verify prints the report and reports whether the configuration is usable.
func verify(w io.Writer, ids []resolved, catalog []subscription.CatalogEntry) bool {
	var errs, warnings []string

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "STRIPE PRICE CONFIGURATION")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Price IDs")
	for _, id := range ids {
		mark, status := "ok", "OK"
		if err := subscription.ValidatePriceIDFormat(id.Value); err != nil {
			mark, status = "!!", err.Error()
			errs = append(errs, fmt.Sprintf("%s: %v", id.Env, err))
		}
		source := "(from environment)"
		if id.IsDefault {
			source = "(using default)"
			warnings = append(warnings, id.Env+" uses the default value, verify it belongs to your Stripe account")
		}
		fmt.Fprintf(w, "[%s] %s (%s/%s)\n", mark, id.Env, id.Tier, id.Cycle)
		fmt.Fprintf(w, "     value:  %s %s\n", id.Value, source)
		fmt.Fprintf(w, "     status: %s\n", status)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "2. Duplicates")
	dups := duplicates(ids)
	if len(dups) == 0 {
		fmt.Fprintln(w, "[ok] no duplicate price IDs")
	}
	for _, d := range dups {
		fmt.Fprintf(w, "[!!] %s used by %s\n", d.id, strings.Join(d.envs, ", "))
		errs = append(errs, "duplicate price ID "+d.id)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "SUMMARY")
	fmt.Fprintln(w, rule)
	if len(errs) == 0 {
		fmt.Fprintln(w, "no errors")
	} else {
		fmt.Fprintf(w, "%d error(s):\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	if len(warnings) > 0 {
		fmt.Fprintf(w, "%d warning(s):\n", len(warnings))
		for _, m := range warnings {
			fmt.Fprintf(w, "  - %s\n", m)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "EXPECTED PRICING")
	fmt.Fprintln(w, rule)
	printPricing(w, catalog)

	return len(errs) == 0
}

type duplicate struct {
	id   string
	envs []string
}

func duplicates(ids []resolved) []duplicate {
	byID := make(map[string][]string, len(ids))
	var order []string
	for _, id := range ids {
		if _, seen := byID[id.Value]; !seen {
			order = append(order, id.Value)
		}
		byID[id.Value] = append(byID[id.Value], id.Env)
	}
	var out []duplicate
	for _, id := range order {
		if envs := byID[id]; len(envs) > 1 {
			out = append(out, duplicate{id: id, envs: envs})
		}
	}
	return out
}

func printPricing(w io.Writer, catalog []subscription.CatalogEntry) {
	for _, e := range catalog {
		fmt.Fprintf(w, "\n%s (%d credits per period)\n", strings.ToUpper(e.Name), e.Credits)
		if m, ok := e.Prices[subscription.CycleMonthly]; ok {
			fmt.Fprintf(w, "  monthly: %s/mo\n", formatMoney(m.Amount, m.Currency))
		}
		if m, ok := e.Prices[subscription.CycleAnnual]; ok {
			fmt.Fprintf(w, "  annual:  %s/yr (%s/mo)\n",
				formatMoney(m.Amount, m.Currency), formatMoney(m.Amount/12, m.Currency))
		}
	}
}

func formatMoney(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}

// fetchPrices looks up every configured price with its product expanded.
func fetchPrices(ctx context.Context, w io.Writer, sc *client.API, ids []resolved) bool {
	ok := true
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "PRICE DETAILS FROM STRIPE")
	fmt.Fprintln(w, rule)

	for _, id := range ids {
		fmt.Fprintf(w, "\n%s\n  id: %s\n", id.Env, id.Value)

		params := &stripe.PriceParams{}
		params.Context = ctx
		params.AddExpand("product")
		price, err := sc.Prices.Get(id.Value, params)
		if err != nil {
			ok = false
			fmt.Fprintf(w, "  error: %s\n", stripeMessage(err))
			continue
		}

		product := "unknown"
		if price.Product != nil {
			product = price.Product.Name
			if product == "" {
				if p, err := sc.Products.Get(price.Product.ID, &stripe.ProductParams{Params: stripe.Params{Context: ctx}}); err == nil {
					product = p.Name
				}
			}
		}
		interval := "one-time"
		if price.Recurring != nil {
			interval = string(price.Recurring.Interval)
		}

		fmt.Fprintf(w, "  product:  %s\n", product)
		fmt.Fprintf(w, "  amount:   %s\n", formatMoney(price.UnitAmount, string(price.Currency)))
		fmt.Fprintf(w, "  interval: %s\n", interval)
		fmt.Fprintf(w, "  active:   %t\n", price.Active)
		if !price.Active {
			ok = false
		}
	}
	return ok
}

func stripeMessage(err error) string {
	var serr *stripe.Error
	if errors.As(err, &serr) && serr.Msg != "" {
		return serr.Msg
	}
	return err.Error()
}
