// Package subscription keeps each account's subscription tier, billing cycle
// and credit balance in step with the payment processor.
//
// The processor hosts checkout and the customer portal. The only way state
// changes here is through verified webhook events, which the Reconciler maps
// to one transition on one account record.
//
// # Architecture
//
//   - PriceTable: immutable, injective mapping from provider price IDs to
//     (tier, cycle), plus the credit allotment of each tier
//   - Reconciler: applies checkout, subscription update, subscription
//     deletion and invoice payment events
//   - Store: persists subscriptions together with the ledger of processed
//     event IDs (MemoryStore here, a Postgres store in pgstore)
//   - BillingProvider: checkout links, portal links and webhook parsing
//     (StripeProvider)
//   - Service: the façade HTTP handlers call
//
// # Event semantics
//
//	checkout.session.completed     tier, cycle from price; credits = allotment
//	customer.subscription.updated  tier, cycle from new price; credits kept
//	customer.subscription.deleted  tier none, credits 0
//	invoice.payment_succeeded      renewals only: credits = allotment of the tier
//
// Checkout sessions still awaiting a delayed payment are skipped; the
// checkout.session.async_payment_succeeded delivery activates them. Updates
// never activate a record, so an update arriving before its checkout or after
// the deletion changes nothing.
//
// Every event is applied inside Store.Apply, which records the event ID in the
// same atomic write as the state change. Redelivered events return
// ErrDuplicateEvent from the store and succeed without effect.
//
// A price ID that is not in the table fails the event with ErrUnknownPriceID.
// The reconciler never falls back to a default tier.
//
// # Quick Start
//
//	catalog, err := subscription.LoadCatalog(os.Getenv("PLANS_FILE"))
//	if err != nil {
//		return err
//	}
//	var prices subscription.PriceConfig
//	if err := config.Load(&prices); err != nil {
//		return err
//	}
//	table, err := subscription.BuildPriceTable(catalog, prices)
//	if err != nil {
//		return err
//	}
//
//	var stripeCfg subscription.StripeConfig
//	if err := config.Load(&stripeCfg); err != nil {
//		return err
//	}
//	provider, err := subscription.NewStripeProvider(stripeCfg,
//		subscription.WithCoupon(prices.Coupon, prices.CouponTier, prices.CouponCycle),
//	)
//	if err != nil {
//		return err
//	}
//
//	rec := subscription.NewReconciler(table, store, subscription.WithLogger(log))
//	svc := subscription.NewService(rec, provider, subscription.WithEventLocker(lock))
//
// # Error Handling
//
//	switch {
//	case errors.Is(err, subscription.ErrWebhookVerificationFailed):
//		// bad signature, reject with 400
//	case errors.Is(err, subscription.ErrUnknownPriceID):
//		// configuration drift between Stripe and the price table
//	case errors.Is(err, subscription.ErrEventInFlight):
//		// another replica holds the event, let the processor retry
//	}
package subscription
