// Package paywall implements the pay-per-call gate pipeline: a cheap local
// budget gate followed by an on-chain payment gate. The pipeline is framework
// agnostic; pkg/gin and pkg/echo adapt it to their routers.
package paywall

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evice-protocol/evice"
	"github.com/evice-protocol/evice/chain"
	"github.com/evice-protocol/evice/ledger"
)

// PayerAddressHeader carries the claimed budget account of the caller.
const PayerAddressHeader = "x402-Payer-Address"

// AuthorizationScheme prefixes the transaction hash in the Authorization
// header: "x402 <txHash>".
const AuthorizationScheme = "x402"

// ReferenceQueryParam carries the invoice reference on paid retries.
const ReferenceQueryParam = "reference"

// Outcome is the tri-state result of evaluating one gate.
type Outcome int

const (
	// OutcomeNotApplicable means the gate could not decide; the next gate
	// in the pipeline runs. Insufficient budget lands here deliberately:
	// it is a fallback trigger, not an error.
	OutcomeNotApplicable Outcome = iota
	// OutcomeAuthorized means the request is paid for and may proceed.
	OutcomeAuthorized
	// OutcomeDenied means the request terminates with Status and Body.
	OutcomeDenied
)

// Decision is what a gate returns. Method is set when authorized; Status and
// Body describe the response when denied.
type Decision struct {
	Outcome Outcome
	Method  evice.PaymentMethod
	Status  int
	Body    any
}

// Request is the slice of an HTTP request the gates inspect.
type Request struct {
	PayerAddress  string // x402-Payer-Address header
	Authorization string // Authorization header
	Reference     string // reference query parameter
}

// Gate evaluates one authorization strategy for a protected request.
type Gate interface {
	Evaluate(ctx context.Context, req Request) Decision
}

// TxVerifier is the chain-verification dependency of the payment gate.
// *chain.Verifier satisfies it.
type TxVerifier interface {
	VerifyTransaction(ctx context.Context, txHash, reference string, requiredAmount decimal.Decimal, recipientAddress string) chain.Result
}

// Config parameterizes a protected endpoint: what it costs and how the
// challenge invoice is rendered.
type Config struct {
	Amount          decimal.Decimal
	RecipientWallet string
	Protocol        string
	Currency        string
	Instruction     string
	ReferenceTTL    time.Duration
}

// Option adjusts endpoint configuration.
type Option func(*Config)

// WithProtocol overrides the protocol identifier in issued invoices.
func WithProtocol(protocol string) Option {
	return func(c *Config) {
		c.Protocol = protocol
	}
}

// WithCurrency overrides the currency label in issued invoices.
func WithCurrency(currency string) Option {
	return func(c *Config) {
		c.Currency = currency
	}
}

// WithInstruction overrides the human-readable payment instruction.
func WithInstruction(instruction string) Option {
	return func(c *Config) {
		c.Instruction = instruction
	}
}

// WithReferenceTTL overrides the spent-reference retention window.
func WithReferenceTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.ReferenceTTL = ttl
	}
}

// NewConfig builds an endpoint config with protocol defaults applied.
func NewConfig(amount decimal.Decimal, recipientWallet string, opts ...Option) Config {
	cfg := Config{
		Amount:          amount,
		RecipientWallet: recipientWallet,
		Protocol:        evice.DefaultProtocol,
		Currency:        evice.DefaultCurrency,
		Instruction:     evice.DefaultInstruction,
		ReferenceTTL:    ledger.DefaultSpentRefTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Pipeline runs gates in order and returns the first conclusive decision.
type Pipeline struct {
	gates []Gate
}

// NewPipeline composes gates into a pipeline.
func NewPipeline(gates ...Gate) *Pipeline {
	return &Pipeline{gates: gates}
}

// Evaluate returns the first Authorized or Denied decision. If every gate is
// NotApplicable the request falls through unauthorized with no payment method
// recorded; with a payment gate last that does not happen, because it always
// concludes with authorization or a challenge.
func (p *Pipeline) Evaluate(ctx context.Context, req Request) Decision {
	for _, gate := range p.gates {
		decision := gate.Evaluate(ctx, req)
		if decision.Outcome != OutcomeNotApplicable {
			return decision
		}
	}
	return Decision{Outcome: OutcomeNotApplicable}
}

// NewPaywall composes the standard budget-then-payment pipeline for one
// protected endpoint.
func NewPaywall(store ledger.Store, verifier TxVerifier, cfg Config) *Pipeline {
	return NewPipeline(
		NewBudgetGate(store, cfg.Amount),
		NewPaymentGate(store, verifier, cfg),
	)
}

// BudgetGate authorizes requests from pre-funded budgets. It never denies:
// a missing payer header or an insufficient balance both fall through to the
// next gate.
type BudgetGate struct {
	store  ledger.Store
	amount decimal.Decimal
}

// NewBudgetGate creates a budget gate charging amount per request.
func NewBudgetGate(store ledger.Store, amount decimal.Decimal) *BudgetGate {
	return &BudgetGate{store: store, amount: amount}
}

// Evaluate debits the claimed payer's budget when it covers the price. The
// check and debit are one atomic store operation.
func (g *BudgetGate) Evaluate(ctx context.Context, req Request) Decision {
	if req.PayerAddress == "" {
		return Decision{Outcome: OutcomeNotApplicable}
	}

	ok, err := g.store.DebitIfSufficient(ctx, req.PayerAddress, g.amount)
	if err != nil {
		log.Printf("paywall: budget check failed for %s: %v", req.PayerAddress, err)
		return Decision{Outcome: OutcomeNotApplicable}
	}
	if !ok {
		return Decision{Outcome: OutcomeNotApplicable}
	}
	return Decision{Outcome: OutcomeAuthorized, Method: evice.PaymentMethodBudget}
}

// PaymentGate accepts a one-time on-chain payment or issues a 402 challenge.
type PaymentGate struct {
	store    ledger.Store
	verifier TxVerifier
	cfg      Config
}

// NewPaymentGate creates a payment gate for one protected endpoint.
func NewPaymentGate(store ledger.Store, verifier TxVerifier, cfg Config) *PaymentGate {
	return &PaymentGate{store: store, verifier: verifier, cfg: cfg}
}

// Evaluate runs the challenge/response protocol. With both a transaction hash
// and a reference present it verifies the payment; otherwise it issues a
// fresh invoice as a 402 response.
func (g *PaymentGate) Evaluate(ctx context.Context, req Request) Decision {
	txHash := ParseAuthorization(req.Authorization)

	if txHash != "" && req.Reference != "" {
		return g.verifyPayment(ctx, txHash, req.Reference)
	}

	invoice := evice.Invoice{
		Protocol:    g.cfg.Protocol,
		Recipient:   g.cfg.RecipientWallet,
		Amount:      g.cfg.Amount,
		Currency:    g.cfg.Currency,
		Reference:   evice.NewReference(),
		Instruction: g.cfg.Instruction,
	}
	return Decision{Outcome: OutcomeDenied, Status: http.StatusPaymentRequired, Body: invoice}
}

func (g *PaymentGate) verifyPayment(ctx context.Context, txHash, reference string) Decision {
	spent, err := g.store.IsSpent(ctx, reference)
	if err != nil {
		log.Printf("paywall: reference check failed for %s: %v", reference, err)
	}
	if spent {
		return replayDenied()
	}

	result := g.verifier.VerifyTransaction(ctx, txHash, reference, g.cfg.Amount, g.cfg.RecipientWallet)
	if !result.Success {
		return Decision{
			Outcome: OutcomeDenied,
			Status:  http.StatusPaymentRequired,
			Body:    map[string]string{"error": fmt.Sprintf("Verification failed: %s", result.Err.Message)},
		}
	}

	// Mark-if-unspent is atomic: of two concurrent requests presenting the
	// same reference, exactly one passes.
	ok, err := g.store.MarkSpent(ctx, reference, g.cfg.ReferenceTTL)
	if err != nil {
		log.Printf("paywall: marking reference %s failed: %v", reference, err)
	}
	if !ok {
		return replayDenied()
	}

	return Decision{Outcome: OutcomeAuthorized, Method: evice.PaymentMethodOneTime}
}

func replayDenied() Decision {
	return Decision{
		Outcome: OutcomeDenied,
		Status:  http.StatusUnauthorized,
		Body:    map[string]string{"error": "Payment replay detected"},
	}
}

// ParseAuthorization extracts the transaction hash from an
// "x402 <txHash>" Authorization header, empty when absent or malformed.
func ParseAuthorization(header string) string {
	scheme, txHash, found := strings.Cut(header, " ")
	if !found || scheme != AuthorizationScheme {
		return ""
	}
	return strings.TrimSpace(txHash)
}
