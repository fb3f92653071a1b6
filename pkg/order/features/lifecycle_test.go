package features

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
	"github.com/example/storefront/pkg/order"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
)

const userID = "shopper"

type scriptedProvider struct {
	name    string
	status  string
	capture *decimal.Decimal
	delay   time.Duration
	opened  decimal.Decimal
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) OpenSession(ctx context.Context, amount decimal.Decimal, currency string) (payment.Session, error) {
	p.opened = amount
	return payment.Session{ID: p.name + "-session", Provider: p.name}, nil
}

func (p *scriptedProvider) CaptureSession(ctx context.Context, sessionID string) (payment.Capture, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return payment.Capture{}, ctx.Err()
		}
	}
	amount := p.opened
	if p.capture != nil {
		amount = *p.capture
	}
	return payment.Capture{Status: p.status, TransactionID: "txn-" + sessionID, CapturedAmount: amount}, nil
}

// SessionStatus reports nothing captured; captures in these scenarios either return or fail outright.
func (p *scriptedProvider) SessionStatus(ctx context.Context, sessionID string) (payment.Session, payment.Capture, error) {
	return payment.Session{ID: sessionID, Provider: p.name}, payment.Capture{Status: "CREATED"}, nil
}

type lifecycleContext struct {
	store     *repository.MemoryStore
	carts     *cart.Engine
	orders    *order.Service
	providers map[models.PaymentMethod]*scriptedProvider
	orderID   string
	method    models.PaymentMethod
	sessionID string
	cart      *models.Cart
	last      apperr.Result
}

func (c *lifecycleContext) reset() {
	c.store = repository.NewMemoryStore()
	rules := money.DefaultRules()
	c.providers = map[models.PaymentMethod]*scriptedProvider{
		models.PaymentMethodPayPal: {name: payment.ProviderPayPal, status: payment.StatusPayPalCompleted},
		models.PaymentMethodStripe: {name: payment.ProviderStripe, status: payment.StatusStripeSucceeded},
	}
	cfg := &config.PaymentConfig{Timeout: 50 * time.Millisecond, MaxAttempts: 1}
	reg := payment.NewRegistry()
	for method, p := range c.providers {
		reg.Register(method, payment.NewGuard(p, cfg, nil, zap.NewNop()))
	}
	c.carts = cart.NewEngine(c.store, c.store, rules, zap.NewNop())
	c.orders = order.NewService(c.store, reg, rules, "USD", zap.NewNop())
	c.orderID, c.sessionID, c.method = "", "", ""
	c.cart = nil
	c.last = apperr.Result{}
}

func (c *lifecycleContext) aProduct(id, name, price string, stock int) error {
	p, err := money.ParsePrice(price)
	if err != nil {
		return err
	}
	return c.store.SaveProduct(context.Background(), &models.Product{
		ID: id, Name: name, Slug: id, Price: p, Stock: stock,
	})
}

func (c *lifecycleContext) theUserAdds(qty int, productID string) error {
	c.last = c.carts.AddItemResult(context.Background(), models.UserOwner(userID), cart.AddItemRequest{ProductID: productID, Qty: qty})
	if cp, ok := c.last.Data.(*models.Cart); ok {
		c.cart = cp
	}
	return nil
}

func (c *lifecycleContext) cartPrice(field string) func(want string) error {
	return func(want string) error {
		if c.cart == nil {
			return fmt.Errorf("no cart: %s", c.last.Message)
		}
		var got decimal.Decimal
		switch field {
		case "items":
			got = c.cart.ItemsPrice
		case "shipping":
			got = c.cart.ShippingPrice
		case "tax":
			got = c.cart.TaxPrice
		default:
			got = c.cart.TotalPrice
		}
		if money.Format(got) != want {
			return fmt.Errorf("expected %s price %s, got %s", field, want, money.Format(got))
		}
		return nil
	}
}

func (c *lifecycleContext) theUserHasAnOrder(method string, qty int, productID string) error {
	ctx := context.Background()
	if _, err := c.carts.AddItem(ctx, models.UserOwner(userID), cart.AddItemRequest{ProductID: productID, Qty: qty}); err != nil {
		return err
	}
	o, err := c.orders.CreateOrder(ctx, userID, order.CreateOrderRequest{
		ShippingAddress: models.ShippingAddress{
			FullName: "Jane Doe", StreetAddress: "123 Main St", City: "Springfield", PostalCode: "12345", Country: "USA",
		},
		PaymentMethod: models.PaymentMethod(method),
	})
	if err != nil {
		return err
	}
	c.orderID = o.ID
	c.method = o.PaymentMethod
	return nil
}

func (c *lifecycleContext) theProviderCaptures(amount string) error {
	d, err := money.ParsePrice(amount)
	if err != nil {
		return err
	}
	c.providers[c.method].capture = &d
	return nil
}

func (c *lifecycleContext) theProviderIsSlow() error {
	c.providers[c.method].delay = time.Second
	return nil
}

func (c *lifecycleContext) anAdminMarksTheOrderPaid() error {
	c.last = c.orders.MarkPaidCashOnDeliveryResult(context.Background(), c.orderID)
	return nil
}

func (c *lifecycleContext) anAdminMarksTheOrderDelivered() error {
	c.last = c.orders.MarkDeliveredResult(context.Background(), c.orderID)
	return nil
}

func (c *lifecycleContext) theUserOpensAPaymentSession() error {
	c.last = c.orders.CreateProviderOrderResult(context.Background(), c.orderID)
	sess, ok := c.last.Data.(payment.Session)
	if !ok {
		return fmt.Errorf("no session: %s", c.last.Message)
	}
	c.sessionID = sess.ID
	return nil
}

func (c *lifecycleContext) theBuyerApproves() error {
	c.last = c.orders.ApproveProviderOrderResult(context.Background(), c.orderID, order.ApproveRequest{SessionID: c.sessionID})
	return nil
}

func (c *lifecycleContext) lastResultSucceeds(message string) error {
	if !c.last.Success || c.last.Message != message {
		return fmt.Errorf("expected success %q, got success=%v %q", message, c.last.Success, c.last.Message)
	}
	return nil
}

func (c *lifecycleContext) lastResultFails(message string) error {
	if c.last.Success || c.last.Message != message {
		return fmt.Errorf("expected failure %q, got success=%v %q", message, c.last.Success, c.last.Message)
	}
	return nil
}

func (c *lifecycleContext) orderPaid(want bool) func() error {
	return func() error {
		o, err := c.orders.GetOrder(context.Background(), c.orderID)
		if err != nil {
			return err
		}
		if o.IsPaid != want {
			return fmt.Errorf("expected is_paid=%v", want)
		}
		if want && o.PaidAt == nil {
			return fmt.Errorf("paid order has no paid_at")
		}
		return nil
	}
}

func (c *lifecycleContext) theOrderStatusIs(status string) error {
	o, err := c.orders.GetOrder(context.Background(), c.orderID)
	if err != nil {
		return err
	}
	if string(o.Status()) != status {
		return fmt.Errorf("expected status %s, got %s", status, o.Status())
	}
	return nil
}

func (c *lifecycleContext) productHasStock(productID string, stock int) error {
	p, err := c.store.FindProduct(context.Background(), productID)
	if err != nil {
		return err
	}
	if p.Stock != stock {
		return fmt.Errorf("expected stock %d, got %d", stock, p.Stock)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	lc := &lifecycleContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		lc.reset()
		return ctx, nil
	})

	ctx.Step(`^a product "([^"]*)" named "([^"]*)" priced "([^"]*)" with stock (\d+)$`, lc.aProduct)
	ctx.Step(`^the user adds (\d+) of "([^"]*)" to the cart$`, lc.theUserAdds)
	ctx.Step(`^the cart items price is "([^"]*)"$`, lc.cartPrice("items"))
	ctx.Step(`^the cart shipping price is "([^"]*)"$`, lc.cartPrice("shipping"))
	ctx.Step(`^the cart tax price is "([^"]*)"$`, lc.cartPrice("tax"))
	ctx.Step(`^the cart total price is "([^"]*)"$`, lc.cartPrice("total"))
	ctx.Step(`^the user has an order paid by "([^"]*)" for (\d+) of "([^"]*)"$`, lc.theUserHasAnOrder)
	ctx.Step(`^the provider captures "([^"]*)"$`, lc.theProviderCaptures)
	ctx.Step(`^the provider is slow$`, lc.theProviderIsSlow)
	ctx.Step(`^an admin marks the order paid$`, lc.anAdminMarksTheOrderPaid)
	ctx.Step(`^an admin marks the order delivered$`, lc.anAdminMarksTheOrderDelivered)
	ctx.Step(`^the user opens a payment session$`, lc.theUserOpensAPaymentSession)
	ctx.Step(`^the buyer approves the payment session$`, lc.theBuyerApproves)
	ctx.Step(`^the last result succeeds with "([^"]*)"$`, lc.lastResultSucceeds)
	ctx.Step(`^the last result fails with "([^"]*)"$`, lc.lastResultFails)
	ctx.Step(`^the order is paid$`, lc.orderPaid(true))
	ctx.Step(`^the order is not paid$`, lc.orderPaid(false))
	ctx.Step(`^the order status is "([^"]*)"$`, lc.theOrderStatusIs)
	ctx.Step(`^product "([^"]*)" has stock (\d+)$`, lc.productHasStock)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"order_lifecycle.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
