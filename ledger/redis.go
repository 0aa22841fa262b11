package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// spentMarker is the value stored under a spent-reference key. Only key
// presence matters.
const spentMarker = "used"

// debitRetries caps optimistic-transaction retries when a watched balance key
// is modified concurrently.
const debitRetries = 5

// RedisStore is a Store backed by a Redis-compatible service. Balances are
// stored as decimal strings; the arithmetic happens client-side inside
// WATCH/MULTI transactions to keep decimal exactness, and spent references
// use SET NX so exactly one concurrent marker wins.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore creates a store over an existing Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Balance returns the account's budget, zero if no record exists.
func (s *RedisStore) Balance(ctx context.Context, account string) (decimal.Decimal, error) {
	val, err := s.client.Get(ctx, BudgetKey(account)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: get balance: %w", err)
	}
	balance, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: corrupt balance for %s: %w", account, err)
	}
	return balance, nil
}

// Credit adds amount to the account's budget and returns the new balance.
func (s *RedisStore) Credit(ctx context.Context, account string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("credit amount must not be negative: %s", amount)
	}

	var newBalance decimal.Decimal
	err := s.update(ctx, BudgetKey(account), func(balance decimal.Decimal) (decimal.Decimal, bool) {
		newBalance = balance.Add(amount)
		return newBalance, true
	})
	if err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// DebitIfSufficient debits amount when the balance covers it.
func (s *RedisStore) DebitIfSufficient(ctx context.Context, account string, amount decimal.Decimal) (bool, error) {
	if amount.IsNegative() {
		return false, fmt.Errorf("debit amount must not be negative: %s", amount)
	}

	debited := false
	err := s.update(ctx, BudgetKey(account), func(balance decimal.Decimal) (decimal.Decimal, bool) {
		if balance.LessThan(amount) {
			debited = false
			return decimal.Zero, false
		}
		debited = true
		return balance.Sub(amount), true
	})
	if err != nil {
		return false, err
	}
	return debited, nil
}

// update applies fn to the current balance under an optimistic WATCH/MULTI
// transaction. fn returns the new balance and whether to write it. The
// transaction is retried when another writer touches the key first.
func (s *RedisStore) update(ctx context.Context, key string, fn func(decimal.Decimal) (decimal.Decimal, bool)) error {
	txn := func(tx *redis.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			val = "0"
		} else if err != nil {
			return err
		}

		balance, err := decimal.NewFromString(val)
		if err != nil {
			return fmt.Errorf("corrupt balance under %s: %w", key, err)
		}

		newBalance, write := fn(balance)
		if !write {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newBalance.String(), 0)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < debitRetries; i++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("ledger: update %s: %w", key, err)
	}
	return nil
}

// IsSpent reports whether the reference key still exists.
func (s *RedisStore) IsSpent(ctx context.Context, reference string) (bool, error) {
	n, err := s.client.Exists(ctx, RefKey(reference)).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: check reference: %w", err)
	}
	return n > 0, nil
}

// MarkSpent records the reference via SET NX with the retention TTL.
func (s *RedisStore) MarkSpent(ctx context.Context, reference string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = DefaultSpentRefTTL
	}
	ok, err := s.client.SetNX(ctx, RefKey(reference), spentMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("ledger: mark reference: %w", err)
	}
	return ok, nil
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
