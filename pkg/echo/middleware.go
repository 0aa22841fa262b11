// Package echo adapts the paywall gate pipeline to echo routers.
package echo

import (
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/evice-protocol/evice"
	"github.com/evice-protocol/evice/ledger"
	"github.com/evice-protocol/evice/paywall"
)

// paymentMethodKey is the echo context key the middleware stores the resolved
// payment method under.
const paymentMethodKey = "evice.paymentMethod"

// PaymentMiddleware gates a route behind the budget-then-payment pipeline.
// Amount is the price per request in the chain's major unit (ex: 0.01).
func PaymentMiddleware(amount decimal.Decimal, recipientWallet string, store ledger.Store, verifier paywall.TxVerifier, opts ...paywall.Option) echo.MiddlewareFunc {
	cfg := paywall.NewConfig(amount, recipientWallet, opts...)
	return FromPipeline(paywall.NewPaywall(store, verifier, cfg))
}

// FromPipeline wraps an already-composed gate pipeline as echo middleware.
func FromPipeline(pipeline *paywall.Pipeline) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := paywall.Request{
				PayerAddress:  c.Request().Header.Get(paywall.PayerAddressHeader),
				Authorization: c.Request().Header.Get("Authorization"),
				Reference:     c.QueryParam(paywall.ReferenceQueryParam),
			}

			decision := pipeline.Evaluate(c.Request().Context(), req)
			switch decision.Outcome {
			case paywall.OutcomeAuthorized:
				c.Set(paymentMethodKey, decision.Method)
				return next(c)
			case paywall.OutcomeDenied:
				return c.JSON(decision.Status, decision.Body)
			default:
				return next(c)
			}
		}
	}
}

// PaymentMethod returns how the current request was authorized, or
// evice.PaymentMethodNone when no gate authorized it.
func PaymentMethod(c echo.Context) evice.PaymentMethod {
	if method, ok := c.Get(paymentMethodKey).(evice.PaymentMethod); ok {
		return method
	}
	return evice.PaymentMethodNone
}
