package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// CheckoutSessionRequest carries everything needed to open a hosted
// checkout page for one clip.
type CheckoutSessionRequest struct {
	ClipID             string
	ProductName        string
	ProductDescription string
	AmountCents        int64
	SuccessURL         string
	CancelURL          string
}

// CheckoutSession is the subset of the provider's session this service
// cares about: the id the webhook will later match on, and the hosted
// page URL the buyer is redirected to.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutProvider creates hosted payment sessions.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
}

// metadataKeyClipID is the session metadata key carrying the clip id, so
// the webhook can recover which clip a completed session paid for.
const metadataKeyClipID = "clip_id"

// StripeCheckoutProvider implements CheckoutProvider against Stripe Checkout.
type StripeCheckoutProvider struct {
	api *client.API
}

// NewStripeCheckoutProvider builds a Stripe-backed provider from the
// secret key. The client is constructed once at startup and passed to
// whatever needs it; there is no lazy global.
func NewStripeCheckoutProvider(secretKey string) *StripeCheckoutProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeCheckoutProvider{api: api}
}

func (p *StripeCheckoutProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.ProductName),
						Description: stripe.String(req.ProductDescription),
					},
					UnitAmount: stripe.Int64(req.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata(metadataKeyClipID, req.ClipID)

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session creation failed: %w", err)
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}
