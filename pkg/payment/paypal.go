package payment

import (
	"context"
	"fmt"
	"net/http"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/money"
)

const ProviderPayPal = "paypal"

// PayPalProvider drives the orders v2 API: a session is a PayPal order with intent CAPTURE.
type PayPalProvider struct {
	client *paypal.Client
}

func NewPayPalProvider(cfg *config.PaymentConfig) (*PayPalProvider, error) {
	client, err := paypal.NewClient(cfg.PayPal.ClientID, cfg.PayPal.Secret, cfg.PayPal.APIBase)
	if err != nil {
		return nil, fmt.Errorf("failed to create paypal client: %w", err)
	}
	client.SetHTTPClient(&http.Client{Timeout: cfg.Timeout})
	return &PayPalProvider{client: client}, nil
}

func (p *PayPalProvider) Name() string {
	return ProviderPayPal
}

func (p *PayPalProvider) OpenSession(ctx context.Context, amount decimal.Decimal, currency string) (Session, error) {
	if _, err := p.client.GetAccessToken(ctx); err != nil {
		return Session{}, fmt.Errorf("failed to get paypal access token: %w", err)
	}

	units := []paypal.PurchaseUnitRequest{{
		Amount: &paypal.PurchaseUnitAmount{
			Currency: currency,
			Value:    money.Format(amount),
		},
	}}
	order, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, nil)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create paypal order: %w", err)
	}

	return sessionOf(order), nil
}

func (p *PayPalProvider) CaptureSession(ctx context.Context, sessionID string) (Capture, error) {
	if _, err := p.client.GetAccessToken(ctx); err != nil {
		return Capture{}, fmt.Errorf("failed to get paypal access token: %w", err)
	}

	resp, err := p.client.CaptureOrder(ctx, sessionID, paypal.CaptureOrderRequest{})
	if err != nil {
		return Capture{}, fmt.Errorf("failed to capture paypal order: %w", err)
	}

	c := Capture{Status: resp.Status}
	if resp.Payer != nil {
		c.PayerEmail = resp.Payer.EmailAddress
	}
	payments := make([]*paypal.CapturedPayments, 0, len(resp.PurchaseUnits))
	for _, unit := range resp.PurchaseUnits {
		payments = append(payments, unit.Payments)
	}
	if err := addCaptures(&c, payments); err != nil {
		return Capture{}, err
	}
	return c, nil
}

// SessionStatus reads the PayPal order. A COMPLETED order carries its captures, so a capture whose
// response was lost can still be reconciled.
func (p *PayPalProvider) SessionStatus(ctx context.Context, sessionID string) (Session, Capture, error) {
	if _, err := p.client.GetAccessToken(ctx); err != nil {
		return Session{}, Capture{}, fmt.Errorf("failed to get paypal access token: %w", err)
	}

	order, err := p.client.GetOrder(ctx, sessionID)
	if err != nil {
		return Session{}, Capture{}, fmt.Errorf("failed to get paypal order: %w", err)
	}

	c := Capture{Status: order.Status}
	if order.Payer != nil {
		c.PayerEmail = order.Payer.EmailAddress
	}
	payments := make([]*paypal.CapturedPayments, 0, len(order.PurchaseUnits))
	for _, unit := range order.PurchaseUnits {
		payments = append(payments, unit.Payments)
	}
	if err := addCaptures(&c, payments); err != nil {
		return Session{}, Capture{}, err
	}
	return sessionOf(order), c, nil
}

func sessionOf(order *paypal.Order) Session {
	s := Session{ID: order.ID, Provider: ProviderPayPal}
	for _, l := range order.Links {
		if l.Rel == "approve" {
			s.ApproveURL = l.Href
		}
	}
	return s
}

func addCaptures(c *Capture, payments []*paypal.CapturedPayments) error {
	total := decimal.Zero
	for _, p := range payments {
		if p == nil {
			continue
		}
		for _, capture := range p.Captures {
			if c.TransactionID == "" {
				c.TransactionID = capture.ID
			}
			if capture.Amount == nil {
				continue
			}
			v, err := decimal.NewFromString(capture.Amount.Value)
			if err != nil {
				return fmt.Errorf("invalid paypal capture amount %q: %w", capture.Amount.Value, err)
			}
			total = total.Add(v)
			c.Currency = capture.Amount.Currency
		}
	}
	c.CapturedAmount = money.Round2(total)
	return nil
}
