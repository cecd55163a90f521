// Package payment integrates Stripe checkout and the completed-payment
// webhook that turns external payments into local download credits.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/mastrohq/mastro/internal/model"
)

var (
	// ErrNotConfigured indicates Stripe credentials are absent.
	ErrNotConfigured = errors.New("stripe not configured")
	// ErrBadAmount indicates the requested amount is below the minimum
	// chargeable amount or otherwise malformed.
	ErrBadAmount = errors.New("amount must be at least 100 minor units")
	// ErrStripe wraps failures reported by the Stripe API.
	ErrStripe = errors.New("stripe request failed")
)

const (
	// minAmountCents is Stripe's minimum chargeable amount.
	minAmountCents = 100
	// maxTokensPerCheckout bounds a single bulk purchase.
	maxTokensPerCheckout = 10

	productName = "Mastered track download credit"
)

// CheckoutSession is the subset of a created session the frontend needs.
type CheckoutSession struct {
	URL       string
	SessionID string
}

// CheckoutBuilder creates Stripe checkout sessions with the caller's user
// id attached as correlation metadata for the webhook reconciler.
type CheckoutBuilder struct {
	configured bool
	siteURL    string
}

// NewCheckoutBuilder creates a builder. The global stripe.Key must already
// be set by main when configured is true.
func NewCheckoutBuilder(configured bool, siteURL string) *CheckoutBuilder {
	return &CheckoutBuilder{configured: configured, siteURL: siteURL}
}

// Configured reports whether checkout can be used.
func (b *CheckoutBuilder) Configured() bool {
	return b.configured
}

// CreateSession builds a payment-mode checkout session for the given
// amount. tokenCount is clamped to [1, 10] and recorded as metadata; the
// reconciler decides how many credits a completed payment yields.
func (b *CheckoutBuilder) CreateSession(ctx context.Context, id model.Identity, amountCents int64, tokenCount int64) (*CheckoutSession, error) {
	if !b.configured {
		return nil, ErrNotConfigured
	}
	if amountCents < minAmountCents {
		return nil, ErrBadAmount
	}
	if tokenCount < 1 {
		tokenCount = 1
	}
	if tokenCount > maxTokensPerCheckout {
		tokenCount = maxTokensPerCheckout
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(id.ID),
		SuccessURL:        stripe.String(b.siteURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(b.siteURL + "/checkout/cancelled"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(amountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(productName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", id.ID)
	params.AddMetadata("token_count", strconv.FormatInt(tokenCount, 10))
	if id.Email != "" {
		params.CustomerEmail = stripe.String(id.Email)
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStripe, err)
	}

	return &CheckoutSession{URL: sess.URL, SessionID: sess.ID}, nil
}
