package billing

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/webhook"
)

// CheckoutSession es la vista neutral de una sesión de checkout del
// proveedor de pagos.
type CheckoutSession struct {
	ID              string
	URL             string
	PaymentIntentID string
	Paid            bool
}

// CheckoutInput son los datos para crear una sesión de checkout.
type CheckoutInput struct {
	UserID      string
	ProductName string
	AmountCents int64
	Currency    string
	Metadata    map[string]string
}

// PaymentProvider abstrae el proveedor de pagos (Stripe en producción,
// fake en tests).
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	VerifyWebhook(payload []byte, signature string) (*stripe.Event, error)
}

// stripeProvider implementa PaymentProvider con Stripe Checkout.
type stripeProvider struct {
	signingKey string
	successURL string
	cancelURL  string
}

// NewStripeProvider configura la API key global de stripe-go y retorna el
// proveedor.
func NewStripeProvider(secretKey, signingKey, successURL, cancelURL string) PaymentProvider {
	stripe.Key = secretKey
	return &stripeProvider{signingKey: signingKey, successURL: successURL, cancelURL: cancelURL}
}

func (p *stripeProvider) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.successURL),
		CancelURL:  stripe.String(p.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(in.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(in.ProductName),
					},
					UnitAmount: stripe.Int64(in.AmountCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: in.Metadata,
	}
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("billing: create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (p *stripeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := checkoutsession.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("billing: get checkout session: %w", err)
	}
	out := &CheckoutSession{
		ID:   sess.ID,
		URL:  sess.URL,
		Paid: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	return out, nil
}

func (p *stripeProvider) VerifyWebhook(payload []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.signingKey, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("billing: invalid webhook signature: %w", err)
	}
	return &event, nil
}
