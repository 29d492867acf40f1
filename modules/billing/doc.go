// Package billing exposes the subscription service over HTTP.
//
// Routes, relative to the mount point:
//
//	POST /webhook       provider deliveries, authenticated by Stripe-Signature
//	GET  /plans         plan catalog with credits and display prices
//	GET  /subscription  the caller's subscription record
//	POST /checkout      {"tier","cycle","email"} -> hosted checkout URL
//	POST /portal        {"return_url"} -> customer portal URL
//
// Webhook status codes drive provider retries: 200 for processed, duplicate
// and ignored events; 400 for signature or payload failures; 409 while
// another replica holds the event; 422 for unknown or missing price IDs;
// 500 for storage failures.
//
// All responses use the Envelope shape, with either data or error set.
package billing
