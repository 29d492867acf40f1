// Package pgstore is the PostgreSQL implementation of subscription.Store.
//
// Subscriptions live in billing_subscriptions, one row per user. Applied
// webhook event IDs live in billing_processed_events and are written in the
// same transaction as the subscription change they caused.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/productphotostudio/billing/pkg/pg"
	"github.com/productphotostudio/billing/pkg/subscription"
)

// Migrations holds the goose migrations for the billing tables under
// "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db  DB
	now func() time.Time
}

var _ subscription.Store = (*Store)(nil)

func New(db DB) *Store {
	if db == nil {
		panic("pgstore: DB is required")
	}
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const selectSubscription = `
SELECT user_id, tier, cycle, credits, status, provider_subscription_id,
       provider_customer_id, created_at, updated_at, cancelled_at
FROM billing_subscriptions`

func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(ctx, selectSubscription+` WHERE user_id = $1`, userID))
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *Store) Create(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO billing_subscriptions (
    user_id, tier, cycle, credits, status, provider_subscription_id,
    provider_customer_id, created_at, updated_at, cancelled_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sub.UserID, string(sub.Tier), string(sub.Cycle), sub.Credits, string(sub.Status),
		sub.ProviderSubID, sub.ProviderCustomerID, sub.CreatedAt, sub.UpdatedAt, sub.CancelledAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return subscription.ErrSubscriptionAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (s *Store) UserIDByProviderSubID(ctx context.Context, providerSubID string) (uuid.UUID, error) {
	if providerSubID == "" {
		return uuid.Nil, subscription.ErrSubscriptionNotFound
	}

	var userID uuid.UUID
	err := s.db.QueryRow(ctx,
		`SELECT user_id FROM billing_subscriptions WHERE provider_subscription_id = $1 LIMIT 1`,
		providerSubID,
	).Scan(&userID)
	if pg.IsNotFoundError(err) {
		return uuid.Nil, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("find subscription by provider reference: %w", err)
	}
	return userID, nil
}

// maxApplyAttempts bounds retries of a transaction aborted by a deadlock or
// serialization failure.
const maxApplyAttempts = 3

// Apply records eventID and updates the user's row in one transaction. The
// row is locked with SELECT ... FOR UPDATE so concurrent events for the same
// user are serialised. A concurrent insert of the same event ID waits on the
// primary key and then reports a duplicate.
func (s *Store) Apply(ctx context.Context, userID uuid.UUID, eventID string, fn subscription.Mutation) error {
	var err error
	for range maxApplyAttempts {
		if err = s.apply(ctx, userID, eventID, fn); !pg.IsSerializationError(err) {
			return err
		}
	}
	return err
}

func (s *Store) apply(ctx context.Context, userID uuid.UUID, eventID string, fn subscription.Mutation) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
INSERT INTO billing_processed_events (event_id, user_id, processed_at)
VALUES ($1, $2, $3)
ON CONFLICT (event_id) DO NOTHING`,
		eventID, userID, s.now(),
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrDuplicateEvent
	}

	sub, err := scanSubscription(tx.QueryRow(ctx, selectSubscription+` WHERE user_id = $1 FOR UPDATE`, userID))
	if pg.IsNotFoundError(err) {
		return subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return fmt.Errorf("lock subscription: %w", err)
	}

	switch err := fn(sub); {
	case errors.Is(err, subscription.ErrNoChange):
		// ledger entry only
	case err != nil:
		return err
	case sub.Credits < 0:
		return subscription.ErrNegativeCredits
	default:
		if _, err := tx.Exec(ctx, `
UPDATE billing_subscriptions SET
    tier = $2, cycle = $3, credits = $4, status = $5,
    provider_subscription_id = $6, provider_customer_id = $7,
    updated_at = $8, cancelled_at = $9
WHERE user_id = $1`,
			userID, string(sub.Tier), string(sub.Cycle), sub.Credits, string(sub.Status),
			sub.ProviderSubID, sub.ProviderCustomerID, sub.UpdatedAt, sub.CancelledAt,
		); err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM billing_processed_events WHERE processed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune processed events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		sub                 subscription.Subscription
		tier, cycle, status string
	)
	if err := row.Scan(
		&sub.UserID, &tier, &cycle, &sub.Credits, &status, &sub.ProviderSubID,
		&sub.ProviderCustomerID, &sub.CreatedAt, &sub.UpdatedAt, &sub.CancelledAt,
	); err != nil {
		return nil, err
	}
	sub.Tier = subscription.Tier(tier)
	sub.Cycle = subscription.BillingCycle(cycle)
	sub.Status = subscription.Status(status)
	return &sub, nil
}
