package ledger

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// FallbackStore wraps a primary Store and degrades to an in-memory store when
// the primary fails, so a degraded backend never hard-fails the gate chain.
// Errors are logged, never returned.
//
// Known limitation: state written while degraded lives only in the fallback
// and is not reconciled with the primary once it recovers.
type FallbackStore struct {
	primary  Store
	fallback *MemoryStore
}

// NewFallbackStore wraps primary with an in-memory fallback. A nil primary
// yields a purely in-memory store.
func NewFallbackStore(primary Store) *FallbackStore {
	return &FallbackStore{
		primary:  primary,
		fallback: NewMemoryStore(),
	}
}

func (s *FallbackStore) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	if s.primary != nil {
		balance, err := s.primary.Balance(ctx, account)
		if err == nil {
			return balance, nil
		}
		log.Printf("ledger: primary store failed, using in-memory fallback: %v", err)
	}
	return s.fallback.Balance(ctx, account)
}

func (s *FallbackStore) Credit(ctx context.Context, account string, amount decimal.Decimal) (decimal.Decimal, error) {
	if s.primary != nil {
		newBalance, err := s.primary.Credit(ctx, account, amount)
		if err == nil {
			return newBalance, nil
		}
		log.Printf("ledger: primary store failed, using in-memory fallback: %v", err)
	}
	return s.fallback.Credit(ctx, account, amount)
}

func (s *FallbackStore) DebitIfSufficient(ctx context.Context, account string, amount decimal.Decimal) (bool, error) {
	if s.primary != nil {
		ok, err := s.primary.DebitIfSufficient(ctx, account, amount)
		if err == nil {
			return ok, nil
		}
		log.Printf("ledger: primary store failed, using in-memory fallback: %v", err)
	}
	return s.fallback.DebitIfSufficient(ctx, account, amount)
}

func (s *FallbackStore) IsSpent(ctx context.Context, reference string) (bool, error) {
	if s.primary != nil {
		spent, err := s.primary.IsSpent(ctx, reference)
		if err == nil {
			return spent, nil
		}
		log.Printf("ledger: primary store failed, using in-memory fallback: %v", err)
	}
	return s.fallback.IsSpent(ctx, reference)
}

func (s *FallbackStore) MarkSpent(ctx context.Context, reference string, ttl time.Duration) (bool, error) {
	if s.primary != nil {
		ok, err := s.primary.MarkSpent(ctx, reference, ttl)
		if err == nil {
			return ok, nil
		}
		log.Printf("ledger: primary store failed, using in-memory fallback: %v", err)
	}
	return s.fallback.MarkSpent(ctx, reference, ttl)
}

// Ensure FallbackStore implements Store
var _ Store = (*FallbackStore)(nil)
