package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store. Suitable for single-instance
// deployments; state is lost on restart. For shared or durable state use
// RedisStore, typically behind a FallbackStore.
//
// Features:
//   - Thread-safe with mutex protection
//   - TTL on spent-reference markers
//   - Lazy cleanup of expired markers
type MemoryStore struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	spent    map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]decimal.Decimal),
		spent:    make(map[string]time.Time),
	}
}

// Balance returns the account's budget, zero if no record exists.
func (s *MemoryStore) Balance(_ context.Context, account string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[BudgetKey(account)], nil
}

// Credit adds amount to the account's budget and returns the new balance.
func (s *MemoryStore) Credit(_ context.Context, account string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("credit amount must not be negative: %s", amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := BudgetKey(account)
	newBalance := s.balances[key].Add(amount)
	s.balances[key] = newBalance
	return newBalance, nil
}

// DebitIfSufficient debits amount when the balance covers it. The check and
// the write happen under one lock, so concurrent debits cannot over-spend.
func (s *MemoryStore) DebitIfSufficient(_ context.Context, account string, amount decimal.Decimal) (bool, error) {
	if amount.IsNegative() {
		return false, fmt.Errorf("debit amount must not be negative: %s", amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := BudgetKey(account)
	balance := s.balances[key]
	if balance.LessThan(amount) {
		return false, nil
	}
	s.balances[key] = balance.Sub(amount)
	return true, nil
}

// IsSpent reports whether the reference is marked and its TTL has not passed.
func (s *MemoryStore) IsSpent(_ context.Context, reference string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSpentLocked(RefKey(reference)), nil
}

// MarkSpent records the reference as consumed. Returns false without
// mutating anything if a live marker already exists.
func (s *MemoryStore) MarkSpent(_ context.Context, reference string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultSpentRefTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := RefKey(reference)
	if s.isSpentLocked(key) {
		return false, nil
	}
	s.spent[key] = time.Now().Add(ttl)
	s.cleanupExpiredLocked()
	return true, nil
}

// isSpentLocked checks a marker and removes it when expired.
// Must be called with the lock held.
func (s *MemoryStore) isSpentLocked(key string) bool {
	expiry, exists := s.spent[key]
	if !exists {
		return false
	}
	if time.Now().After(expiry) {
		delete(s.spent, key)
		return false
	}
	return true
}

// cleanupExpiredLocked removes expired markers. Must be called with the lock held.
func (s *MemoryStore) cleanupExpiredLocked() {
	now := time.Now()
	for key, expiry := range s.spent {
		if now.After(expiry) {
			delete(s.spent, key)
		}
	}
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
