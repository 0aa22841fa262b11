// Package gin adapts the paywall gate pipeline to gin routers.
package gin

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/evice-protocol/evice"
	"github.com/evice-protocol/evice/ledger"
	"github.com/evice-protocol/evice/paywall"
)

// paymentMethodKey is the gin context key the middleware stores the resolved
// payment method under.
const paymentMethodKey = "evice.paymentMethod"

// PaymentMiddleware gates a route behind the budget-then-payment pipeline.
// Amount is the price per request in the chain's major unit (ex: 0.01).
func PaymentMiddleware(amount decimal.Decimal, recipientWallet string, store ledger.Store, verifier paywall.TxVerifier, opts ...paywall.Option) gin.HandlerFunc {
	cfg := paywall.NewConfig(amount, recipientWallet, opts...)
	return FromPipeline(paywall.NewPaywall(store, verifier, cfg))
}

// FromPipeline wraps an already-composed gate pipeline as gin middleware.
func FromPipeline(pipeline *paywall.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := paywall.Request{
			PayerAddress:  c.GetHeader(paywall.PayerAddressHeader),
			Authorization: c.GetHeader("Authorization"),
			Reference:     c.Query(paywall.ReferenceQueryParam),
		}

		decision := pipeline.Evaluate(c.Request.Context(), req)
		switch decision.Outcome {
		case paywall.OutcomeAuthorized:
			c.Set(paymentMethodKey, decision.Method)
			c.Next()
		case paywall.OutcomeDenied:
			c.AbortWithStatusJSON(decision.Status, decision.Body)
		default:
			c.Next()
		}
	}
}

// PaymentMethod returns how the current request was authorized, or
// evice.PaymentMethodNone when no gate authorized it.
func PaymentMethod(c *gin.Context) evice.PaymentMethod {
	if method, ok := c.Get(paymentMethodKey); ok {
		if m, ok := method.(evice.PaymentMethod); ok {
			return m
		}
	}
	return evice.PaymentMethodNone
}
