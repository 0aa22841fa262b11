// Package ledger owns all budget-balance and spent-reference state. Every
// mutation goes through a Store, and the check-then-write operations the gates
// depend on (debit-if-sufficient, mark-if-unspent) are atomic inside each
// implementation, so concurrent requests can neither over-spend a budget nor
// replay a reference.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evice-protocol/evice"
)

// Key prefixes shared by every backend so they address one namespace.
const (
	budgetKeyPrefix = "budget_"
	refKeyPrefix    = "ref_"
)

// DefaultSpentRefTTL bounds how long a spent reference is retained. References
// are single-use within this window by protocol convention; expiring them
// bounds storage growth.
const DefaultSpentRefTTL = time.Hour

// BudgetKey returns the storage key for an account's budget balance.
func BudgetKey(account string) string {
	return budgetKeyPrefix + evice.NormalizeAddress(account)
}

// RefKey returns the storage key for a spent reference marker.
func RefKey(reference string) string {
	return refKeyPrefix + reference
}

// Store is the serialization point for balances and spent references.
// Implementations must be safe for concurrent use.
type Store interface {
	// Balance returns the account's current budget, zero if none exists.
	Balance(ctx context.Context, account string) (decimal.Decimal, error)

	// Credit adds amount to the account's budget, creating the record on
	// first deposit, and returns the new balance.
	Credit(ctx context.Context, account string, amount decimal.Decimal) (decimal.Decimal, error)

	// DebitIfSufficient atomically debits amount from the account's budget
	// if the balance covers it. Returns true when the debit happened.
	// An insufficient balance is not an error.
	DebitIfSufficient(ctx context.Context, account string, amount decimal.Decimal) (bool, error)

	// IsSpent reports whether a reference has already been consumed.
	IsSpent(ctx context.Context, reference string) (bool, error)

	// MarkSpent atomically records a reference as consumed, expiring after
	// ttl (DefaultSpentRefTTL when ttl <= 0). Returns false if the
	// reference was already marked, so exactly one concurrent caller wins.
	MarkSpent(ctx context.Context, reference string, ttl time.Duration) (bool, error)
}
