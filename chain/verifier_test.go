package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/evice-protocol/evice"
)

// NeuroWeb testnet chain id (otp:20430).
var testChainID = big.NewInt(20430)

var recipient = common.HexToAddress("0x1111111111111111111111111111111111111111")

// mockReader serves transactions from a map, like an RPC node would.
type mockReader struct {
	txs map[common.Hash]*gethtypes.Transaction
}

func (m *mockReader) TransactionByHash(_ context.Context, hash common.Hash) (*gethtypes.Transaction, bool, error) {
	tx, ok := m.txs[hash]
	if !ok {
		return nil, false, ethereum.NotFound
	}
	return tx, false, nil
}

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	if err != nil {
		t.Fatalf("Failed to parse test key: %v", err)
	}
	return key
}

// signedTx builds a signed value transfer to the given recipient carrying
// data as its memo payload.
func signedTx(t *testing.T, key *ecdsa.PrivateKey, to common.Address, valueWei *big.Int, data []byte) *gethtypes.Transaction {
	t.Helper()
	signer := gethtypes.LatestSignerForChainID(testChainID)
	tx, err := gethtypes.SignNewTx(key, signer, &gethtypes.LegacyTx{
		Nonce:    0,
		To:       &to,
		Value:    valueWei,
		Gas:      21000,
		GasPrice: big.NewInt(1),
		Data:     data,
	})
	if err != nil {
		t.Fatalf("Failed to sign test transaction: %v", err)
	}
	return tx
}

func neuro(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Bad decimal %q: %v", s, err)
	}
	return d
}

// wei converts a major-unit decimal into wei.
func wei(t *testing.T, s string) *big.Int {
	t.Helper()
	return neuro(t, s).Shift(18).BigInt()
}

func TestVerifyTransaction_Success(t *testing.T) {
	key := testKey(t)
	tx := signedTx(t, key, recipient, wei(t, "0.01"), []byte("ref-123"))
	verifier := NewVerifier(&mockReader{txs: map[common.Hash]*gethtypes.Transaction{tx.Hash(): tx}})

	result := verifier.VerifyTransaction(context.Background(), tx.Hash().Hex(), "ref-123", neuro(t, "0.01"), recipient.Hex())

	if !result.Success {
		t.Fatalf("Expected success, got %v", result.Err)
	}
	if !result.AmountReceived.Equal(neuro(t, "0.01")) {
		t.Errorf("Expected amount 0.01, got %s", result.AmountReceived)
	}
	want := crypto.PubkeyToAddress(key.PublicKey).Hex()
	if result.Sender != want {
		t.Errorf("Expected sender %s, got %s", want, result.Sender)
	}
}

func TestVerifyTransaction_NotFound(t *testing.T) {
	verifier := NewVerifier(&mockReader{txs: map[common.Hash]*gethtypes.Transaction{}})

	result := verifier.VerifyTransaction(context.Background(), "0xdeadbeef", "ref-123", neuro(t, "0.01"), recipient.Hex())

	if result.Success {
		t.Fatal("Expected failure for unknown transaction")
	}
	if result.Err.Code != evice.ErrCodeTransactionNotFound {
		t.Errorf("Expected code %s, got %s", evice.ErrCodeTransactionNotFound, result.Err.Code)
	}
}

func TestVerifyTransaction_WrongRecipient(t *testing.T) {
	other := common.HexToAddress("0x2222222222222222222222222222222222222222")
	tx := signedTx(t, testKey(t), other, wei(t, "0.01"), []byte("ref-123"))
	verifier := NewVerifier(&mockReader{txs: map[common.Hash]*gethtypes.Transaction{tx.Hash(): tx}})

	result := verifier.VerifyTransaction(context.Background(), tx.Hash().Hex(), "ref-123", neuro(t, "0.01"), recipient.Hex())

	if result.Success {
		t.Fatal("Expected failure for wrong recipient")
	}
	if result.Err.Code != evice.ErrCodeWrongRecipient {
		t.Errorf("Expected code %s, got %s", evice.ErrCodeWrongRecipient, result.Err.Code)
	}
}

func TestVerifyTransaction_RecipientCaseInsensitive(t *testing.T) {
	tx := signedTx(t, testKey(t), recipient, wei(t, "0.01"), []byte("ref-123"))
	verifier := NewVerifier(&mockReader{txs: map[common.Hash]*gethtypes.Transaction{tx.Hash(): tx}})

	lower := "0x1111111111111111111111111111111111111111"
	result := verifier.VerifyTransaction(context.Background(), tx.Hash().Hex(), "ref-123", neuro(t, "0.01"), lower)

	if !result.Success {
		t.Fatalf("Expected lowercased recipient to match, got %v", result.Err)
	}
}

func TestVerifyTransaction_ReferenceMismatch(t *testing.T) {
	tx := signedTx(t, testKey(t), recipient, wei(t, "0.01"), []byte("ref-other"))
	verifier := NewVerifier(&mockReader{txs: map[common.Hash]*gethtypes.Transaction{tx.Hash(): tx}})

	result := verifier.VerifyTransaction(context.Background(), tx.Hash().Hex(), "ref-123", neuro(t, "0.01"), recipient.Hex())

	if result.Success {
		t.Fatal("Expected failure for mismatched reference")
	}
	if result.Err.Code != evice.ErrCodeReferenceMismatch {
		t.Errorf("Expected code %s, got %s", evice.ErrCodeReferenceMismatch, result.Err.Code)
	}
}

func TestVerifyTransaction_ReferenceMustMatchExactly(t *testing.T) {
	// A memo that merely contains the reference as a substring is rejected.
	tx := signedTx(t, testKey(t), recipient, wei(t, "0.01"), []byte("padding-ref-123-padding"))
	verifier := NewVerifier(&mockReader{txs: map[common.Hash]*gethtypes.Transaction{tx.Hash(): tx}})

	result := verifier.VerifyTransaction(context.Background(), tx.Hash().Hex(), "ref-123", neuro(t, "0.01"), recipient.Hex())

	if result.Success {
		t.Fatal("Expected substring-only memo match to be rejected")
	}
	if result.Err.Code != evice.ErrCodeReferenceMismatch {
		t.Errorf("Expected code %s, got %s", evice.ErrCodeReferenceMismatch, result.Err.Code)
	}
}

func TestVerifyTransaction_InsufficientAmount(t *testing.T) {
	tx := signedTx(t, testKey(t), recipient, wei(t, "0.004"), []byte("ref-123"))
	verifier := NewVerifier(&mockReader{txs: map[common.Hash]*gethtypes.Transaction{tx.Hash(): tx}})

	result := verifier.VerifyTransaction(context.Background(), tx.Hash().Hex(), "ref-123", neuro(t, "0.005"), recipient.Hex())

	if result.Success {
		t.Fatal("Expected failure for underpayment")
	}
	if result.Err.Code != evice.ErrCodeInsufficientAmount {
		t.Errorf("Expected code %s, got %s", evice.ErrCodeInsufficientAmount, result.Err.Code)
	}
}

func TestVerifyTransaction_OverpaymentReportsFullAmount(t *testing.T) {
	tx := signedTx(t, testKey(t), recipient, wei(t, "7.5"), []byte("ref-123"))
	verifier := NewVerifier(&mockReader{txs: map[common.Hash]*gethtypes.Transaction{tx.Hash(): tx}})

	result := verifier.VerifyTransaction(context.Background(), tx.Hash().Hex(), "ref-123", neuro(t, "5"), recipient.Hex())

	if !result.Success {
		t.Fatalf("Expected overpayment to be accepted, got %v", result.Err)
	}
	if !result.AmountReceived.Equal(neuro(t, "7.5")) {
		t.Errorf("Expected full received amount 7.5, got %s", result.AmountReceived)
	}
}

func TestVerifyTransaction_Idempotent(t *testing.T) {
	tx := signedTx(t, testKey(t), recipient, wei(t, "0.01"), []byte("ref-123"))
	verifier := NewVerifier(&mockReader{txs: map[common.Hash]*gethtypes.Transaction{tx.Hash(): tx}})

	first := verifier.VerifyTransaction(context.Background(), tx.Hash().Hex(), "ref-123", neuro(t, "0.01"), recipient.Hex())
	second := verifier.VerifyTransaction(context.Background(), tx.Hash().Hex(), "ref-123", neuro(t, "0.01"), recipient.Hex())

	if first.Success != second.Success {
		t.Errorf("Expected identical classification, got %v then %v", first.Success, second.Success)
	}
	if !first.AmountReceived.Equal(second.AmountReceived) {
		t.Errorf("Expected identical amounts, got %s then %s", first.AmountReceived, second.AmountReceived)
	}
}
