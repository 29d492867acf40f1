package subscription

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store kept in process memory. A single mutex serialises
// every Apply, which gives the per-user atomicity the reconciler needs.
// Intended for tests and local development.
type MemoryStore struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]*Subscription
	events map[string]time.Time
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:   make(map[uuid.UUID]*Subscription),
		events: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.UserID]; ok {
		return ErrSubscriptionAlreadyExists
	}
	s.subs[sub.UserID] = sub.Clone()
	return nil
}

func (s *MemoryStore) UserIDByProviderSubID(_ context.Context, providerSubID string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if providerSubID != "" {
		for id, sub := range s.subs {
			if sub.ProviderSubID == providerSubID {
				return id, nil
			}
		}
	}
	return uuid.Nil, ErrSubscriptionNotFound
}

func (s *MemoryStore) Apply(_ context.Context, userID uuid.UUID, eventID string, fn Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.events[eventID]; seen {
		return ErrDuplicateEvent
	}

	current, ok := s.subs[userID]
	if !ok {
		return ErrSubscriptionNotFound
	}

	// mutate a copy so a failing mutation leaves no trace
	next := current.Clone()
	err := fn(next)
	switch {
	case errors.Is(err, ErrNoChange):
	case err != nil:
		return err
	case next.Credits < 0:
		return ErrNegativeCredits
	default:
		s.subs[userID] = next
	}

	s.events[eventID] = s.now()
	return nil
}

func (s *MemoryStore) PruneEvents(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, at := range s.events {
		if at.Before(before) {
			delete(s.events, id)
			n++
		}
	}
	return n, nil
}
