package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/pkg/models"
)

// Provider statuses that mean the money has been captured.
const (
	StatusPayPalCompleted = "COMPLETED"
	StatusStripeSucceeded = "succeeded"
)

// Session is an open provider checkout the buyer still has to approve.
type Session struct {
	ID           string `json:"id"`
	Provider     string `json:"provider"`
	ClientSecret string `json:"client_secret,omitempty"`
	ApproveURL   string `json:"approve_url,omitempty"`
}

type Capture struct {
	Status         string
	TransactionID  string
	CapturedAmount decimal.Decimal
	Currency       string
	PayerEmail     string
}

func (c Capture) Completed() bool {
	return c.Status == StatusPayPalCompleted || strings.EqualFold(c.Status, StatusStripeSucceeded)
}

// Provider is the contract every payment SDK adapter satisfies. Implementations must honour ctx
// cancellation where their SDK allows it; Guard enforces the deadline either way.
type Provider interface {
	Name() string
	OpenSession(ctx context.Context, amount decimal.Decimal, currency string) (Session, error)
	CaptureSession(ctx context.Context, sessionID string) (Capture, error)
	// SessionStatus reads a session back from the provider. The Capture is complete once the money
	// has been captured, whichever call captured it.
	SessionStatus(ctx context.Context, sessionID string) (Session, Capture, error)
}

// Registry maps payment methods to the provider that settles them.
type Registry struct {
	providers map[models.PaymentMethod]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[models.PaymentMethod]Provider)}
}

func (r *Registry) Register(method models.PaymentMethod, p Provider) *Registry {
	r.providers[method] = p
	return r
}

func (r *Registry) For(method models.PaymentMethod) (Provider, error) {
	p, ok := r.providers[method]
	if !ok {
		return nil, fmt.Errorf("no payment provider registered for %s", method)
	}
	return p, nil
}
