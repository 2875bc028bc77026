package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// CheckoutSessionParams describes one hosted checkout to create.
type CheckoutSessionParams struct {
	PriceID       string
	Mode          string // "subscription" or "payment"
	Quantity      int64
	CustomerEmail string
	Locale        string
	SuccessURL    string
	CancelURL     string
	Metadata      CheckoutMetadata
}

// PortalSessionParams describes one billing-portal session to create.
type PortalSessionParams struct {
	StripeCustomerID string
	ReturnURL        string
}

// PaymentClient is the outbound payment-processor surface. Handlers receive
// it at construction instead of touching package-level processor state, so
// tests can swap in a fake.
type PaymentClient interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (url string, err error)
	CreateBillingPortalSession(ctx context.Context, params PortalSessionParams) (url string, err error)
}

type stripeClient struct {
	webhookSecret string
}

// NewStripeClient configures the global Stripe key once and returns a client
// bound to the webhook signing secret.
func NewStripeClient(secretKey, webhookSecret string) PaymentClient {
	stripe.Key = secretKey
	return &stripeClient{webhookSecret: webhookSecret}
}

func (c *stripeClient) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (string, error) {
	quantity := params.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(params.Mode),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(quantity),
			},
		},
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	sessionParams.Context = ctx
	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	if params.Locale != "" {
		sessionParams.Locale = stripe.String(params.Locale)
	}
	for key, value := range params.Metadata.Encode() {
		sessionParams.AddMetadata(key, value)
	}

	result, err := checkoutsession.New(sessionParams)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return result.URL, nil
}

func (c *stripeClient) CreateBillingPortalSession(ctx context.Context, params PortalSessionParams) (string, error) {
	sessionParams := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(params.StripeCustomerID),
		ReturnURL: stripe.String(params.ReturnURL),
	}
	sessionParams.Context = ctx

	result, err := portalsession.New(sessionParams)
	if err != nil {
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return result.URL, nil
}

// VerifyStripeEvent checks the Stripe-Signature header against the payload
// and returns the parsed event envelope. Any verification failure maps to
// ErrInvalidSignature; nothing about an unverified payload is trusted or
// persisted.
func VerifyStripeEvent(payload []byte, signatureHeader, webhookSecret string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}
