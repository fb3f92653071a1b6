package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/money"
)

const ProviderStripe = "stripe"

// StripeProvider opens a PaymentIntent with manual capture; the buyer confirms it with the
// client secret and the approve step captures the authorised amount.
type StripeProvider struct{}

func NewStripeProvider(cfg *config.PaymentConfig) *StripeProvider {
	stripe.Key = cfg.Stripe.SecretKey
	stripe.SetHTTPClient(&http.Client{Timeout: cfg.Timeout})
	return &StripeProvider{}
}

func (p *StripeProvider) Name() string {
	return ProviderStripe
}

func (p *StripeProvider) OpenSession(ctx context.Context, amount decimal.Decimal, currency string) (Session, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(money.ToMinor(amount)),
		Currency:      stripe.String(strings.ToLower(currency)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx

	intent, err := paymentintent.New(params)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return Session{ID: intent.ID, Provider: ProviderStripe, ClientSecret: intent.ClientSecret}, nil
}

func (p *StripeProvider) CaptureSession(ctx context.Context, sessionID string) (Capture, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx

	intent, err := paymentintent.Capture(sessionID, params)
	if err != nil {
		return Capture{}, fmt.Errorf("failed to capture payment intent: %w", err)
	}

	return captureOf(intent), nil
}

func (p *StripeProvider) SessionStatus(ctx context.Context, sessionID string) (Session, Capture, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := paymentintent.Get(sessionID, params)
	if err != nil {
		return Session{}, Capture{}, fmt.Errorf("failed to get payment intent: %w", err)
	}
	return Session{ID: intent.ID, Provider: ProviderStripe, ClientSecret: intent.ClientSecret}, captureOf(intent), nil
}

func captureOf(intent *stripe.PaymentIntent) Capture {
	return Capture{
		Status:         string(intent.Status),
		TransactionID:  intent.ID,
		CapturedAmount: money.FromMinor(intent.AmountReceived),
		Currency:       strings.ToUpper(string(intent.Currency)),
		PayerEmail:     intent.ReceiptEmail,
	}
}
