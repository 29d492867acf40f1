package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Mutation changes a subscription inside Store.Apply. Returning ErrNoChange
// records the event without writing the subscription; any other error aborts
// the whole Apply.
type Mutation func(sub *Subscription) error

// Store persists subscriptions and the ledger of processed webhook events.
type Store interface {
	// Get returns ErrSubscriptionNotFound if the user has no record.
	Get(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// Create inserts a new record and returns ErrSubscriptionAlreadyExists
	// if the user already has one.
	Create(ctx context.Context, sub *Subscription) error

	// UserIDByProviderSubID finds the user holding an external subscription
	// reference. Returns ErrSubscriptionNotFound if none does.
	UserIDByProviderSubID(ctx context.Context, providerSubID string) (uuid.UUID, error)

	// Apply atomically records eventID and read-modify-writes the user's
	// subscription. It returns ErrDuplicateEvent without calling fn when
	// eventID was already recorded. Either both the ledger entry and the
	// subscription change are committed, or neither is. A mutation leaving
	// a negative credit balance fails with ErrNegativeCredits.
	Apply(ctx context.Context, userID uuid.UUID, eventID string, fn Mutation) error

	// PruneEvents deletes ledger entries recorded before the given time.
	PruneEvents(ctx context.Context, before time.Time) (int64, error)
}
