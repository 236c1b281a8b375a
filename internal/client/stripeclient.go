package client

import (
	"context"
	"fmt"

	"healing-commerce/internal/config"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
)

// StripeClient wraps the hosted-checkout and webhook pieces of the Stripe SDK.
type StripeClient interface {
	// CreateCheckoutSession opens a hosted payment page and returns its URL.
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (string, error)
	// ConstructWebhookEvent verifies the Stripe-Signature header against the
	// raw payload and returns the decoded event.
	ConstructWebhookEvent(payload []byte, signature string) (*stripe.Event, error)
}

type CheckoutSessionRequest struct {
	UID        string
	Email      string
	ItemName   string
	Amount     int64 // smallest currency unit
	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
}

type stripeClientImpl struct {
	currency      string
	webhookSecret string
}

func NewStripeClient(cfg *config.Stripe) StripeClient {
	stripe.Key = cfg.SecretKey

	return &stripeClientImpl{
		currency:      cfg.Currency,
		webhookSecret: cfg.WebhookSecret,
	}
}

func (c *stripeClientImpl) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(c.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ItemName),
					},
					UnitAmount: stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}

	if req.UID != "" {
		params.ClientReferenceID = stripe.String(req.UID)
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Metadata = req.Metadata
	params.Params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (c *stripeClientImpl) ConstructWebhookEvent(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}
