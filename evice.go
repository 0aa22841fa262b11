// Package evice contains the shared protocol types for the Evice pay-per-call
// access layer: the x402 invoice issued on HTTP 402 challenges, the payment
// method tags threaded through the gate pipeline, and reference generation.
package evice

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultProtocol identifies the challenge flavor carried in 402 invoices.
const DefaultProtocol = "x402-neuroweb"

// DefaultCurrency is the native unit payments are denominated in.
const DefaultCurrency = "NEURO"

// DefaultInstruction is the human-readable hint included in invoices.
const DefaultInstruction = "Send NEURO to recipient with reference as HEX data."

// PaymentMethod records how a protected request was authorized.
type PaymentMethod string

const (
	// PaymentMethodNone means no gate authorized the request.
	PaymentMethodNone PaymentMethod = ""
	// PaymentMethodBudget means the request was paid from a pre-funded budget.
	PaymentMethodBudget PaymentMethod = "budget"
	// PaymentMethodOneTime means the request was paid by a verified on-chain
	// transaction dedicated to this single call.
	PaymentMethodOneTime PaymentMethod = "onetime"
)

// Invoice is the structured body of a 402 challenge response. A compliant
// client pays by sending the required amount to Recipient with Reference
// embedded as UTF-8 bytes in the transaction's data field, then retries the
// request with "Authorization: x402 <txHash>" and "?reference=<Reference>".
type Invoice struct {
	Protocol    string          `json:"protocol"`
	Recipient   string          `json:"recipient"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Reference   string          `json:"reference"`
	Instruction string          `json:"instruction"`
}

// NewReference generates a fresh unique reference token for an invoice.
func NewReference() string {
	return uuid.NewString()
}

// NormalizeAddress lowercases an account address so that differently cased
// spellings of the same address share one ledger entry.
func NormalizeAddress(addr string) string {
	return strings.ToLower(addr)
}
