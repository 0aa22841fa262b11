// Package chain verifies candidate payment transactions against an EVM RPC
// endpoint. Verification is a read-only, on-demand lookup of a single
// transaction; it does not scan blocks and does not wait for finality beyond
// the transaction being retrievable.
package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/evice-protocol/evice"
)

// weiDecimals converts native wei values into the chain's major unit.
const weiDecimals = 18

// DefaultRPCTimeout bounds a single transaction lookup. The RPC endpoint may
// be slow or unreachable; the caller always gets an answer within this window.
const DefaultRPCTimeout = 15 * time.Second

// TransactionReader is the slice of the RPC client the verifier needs.
// *ethclient.Client satisfies it.
type TransactionReader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error)
}

// Result is the outcome of verifying one transaction. On success Sender and
// AmountReceived are set; AmountReceived is the full value the transaction
// carried, not merely the required minimum, so callers can credit overpayment.
// On failure Err describes the rejection.
type Result struct {
	Success        bool
	Sender         string
	AmountReceived decimal.Decimal
	Err            *evice.VerificationError
}

// Verifier checks transactions against an expected recipient, memo and amount.
type Verifier struct {
	reader  TransactionReader
	timeout time.Duration
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithTimeout overrides the per-lookup RPC timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(v *Verifier) {
		v.timeout = timeout
	}
}

// NewVerifier creates a verifier over an existing transaction reader.
func NewVerifier(reader TransactionReader, opts ...Option) *Verifier {
	v := &Verifier{
		reader:  reader,
		timeout: DefaultRPCTimeout,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Dial connects to an EVM RPC endpoint and returns a verifier over it.
func Dial(rpcURL string, opts ...Option) (*Verifier, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, err
	}
	return NewVerifier(client, opts...), nil
}

// VerifyTransaction fetches txHash from the RPC endpoint and checks, in order:
// the transaction exists, its recipient matches (case-insensitively), its data
// field carries exactly the UTF-8 bytes of reference, and its value covers
// requiredAmount in major units. Every failure is reported as a structured
// Result rather than an error, so gates can always turn it into a response.
func (v *Verifier) VerifyTransaction(ctx context.Context, txHash, reference string, requiredAmount decimal.Decimal, recipientAddress string) Result {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	tx, _, err := v.reader.TransactionByHash(ctx, common.HexToHash(txHash))
	if err != nil || tx == nil {
		return failure(evice.ErrCodeTransactionNotFound, "transaction %s not found on chain", txHash)
	}

	to := tx.To()
	if to == nil {
		return failure(evice.ErrCodeWrongRecipient, "wrong recipient: expected %s, got contract creation", recipientAddress)
	}
	if !strings.EqualFold(to.Hex(), recipientAddress) {
		return failure(evice.ErrCodeWrongRecipient, "wrong recipient: expected %s, got %s", recipientAddress, to.Hex())
	}

	// The paying client embeds the reference as UTF-8 bytes in the data
	// field. Exact match, not substring: a crafted transaction must not be
	// able to satisfy two references at once.
	if !bytes.Equal(tx.Data(), []byte(reference)) {
		return failure(evice.ErrCodeReferenceMismatch,
			"reference does not match transaction data: expected 0x%s", hex.EncodeToString([]byte(reference)))
	}

	received := decimal.NewFromBigInt(tx.Value(), -weiDecimals)
	if received.LessThan(requiredAmount) {
		return failure(evice.ErrCodeInsufficientAmount,
			"insufficient amount: received %s, required %s", received, requiredAmount)
	}

	sender, err := gethtypes.Sender(gethtypes.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return failure(evice.ErrCodeTransactionNotFound, "cannot recover sender of %s: %v", txHash, err)
	}

	return Result{
		Success:        true,
		Sender:         sender.Hex(),
		AmountReceived: received,
	}
}

func failure(code, format string, args ...any) Result {
	return Result{Err: evice.NewVerificationError(code, format, args...)}
}
