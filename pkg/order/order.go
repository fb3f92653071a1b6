package order

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/metrics"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/money"
	"github.com/example/storefront/pkg/notify"
	"github.com/example/storefront/pkg/payment"
)

const (
	MsgOrderCreated      = "Order created"
	MsgOrderPaid         = "Order paid successfully"
	MsgOrderDelivered    = "Order delivered successfully"
	MsgSessionCreated    = "Payment session created"
	MsgNotCashOnDelivery = "Order is not paid by cash on delivery"
	MsgUserRequired      = "User is required"

	providerCashOnDelivery = "cod"
	statusCompleted        = "COMPLETED"
	statusCreated          = "CREATED"
)

// Store is the order side of persistence.
//
// CreateOrderFromCart locks the owner's cart, hands it to build, inserts the returned order and
// empties the cart, all in one transaction. A missing or empty cart yields EmptyCart.
//
// UpdateOrderPaymentState applies a guarded transition and reports whether this call was the one
// that applied it. Losing a race is (false, nil), never an error.
type Store interface {
	FindOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*models.Order, error)
	CreateOrderFromCart(ctx context.Context, ownerID string, build func(c *models.Cart) (*models.Order, error)) (*models.Order, error)
	UpdateOrderPaymentState(ctx context.Context, orderID string, u models.OrderStateUpdate) (bool, error)
}

type Providers interface {
	For(method models.PaymentMethod) (payment.Provider, error)
}

type Publisher interface {
	Publish(e notify.Event)
}

type CreateOrderRequest struct {
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	PaymentMethod   models.PaymentMethod   `json:"payment_method"`
}

type ApproveRequest struct {
	SessionID string `json:"session_id"`
}

// Service is the order state machine: created -> paid -> delivered, never skipping or reversing.
type Service struct {
	store     Store
	providers Providers
	rules     money.Rules
	currency  string
	validate  *validator.Validate
	events    Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *zap.Logger
}

func NewService(store Store, providers Providers, rules money.Rules, currency string, logger *zap.Logger) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		store:     store,
		providers: providers,
		rules:     rules,
		currency:  currency,
		validate:  validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.Named("order"),
	}
}

func (s *Service) WithEvents(p Publisher) *Service {
	s.events = p
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateOrder turns the user's cart into an order. Prices are recomputed from the snapshot, so
// the order never depends on what the cart last stored.
func (s *Service) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*models.Order, error) {
	o, err := s.createOrder(ctx, userID, req)
	s.metrics.OrderTransition("create", err)
	return o, err
}

func (s *Service) createOrder(ctx context.Context, userID string, req CreateOrderRequest) (*models.Order, error) {
	if userID == "" {
		return nil, apperr.Validation(MsgUserRequired)
	}
	if err := s.validate.Struct(req.ShippingAddress); err != nil {
		return nil, apperr.FromValidator(err)
	}
	if !req.PaymentMethod.Valid() {
		return nil, apperr.Validation(apperr.MsgPaymentMethodValid)
	}

	o, err := s.store.CreateOrderFromCart(ctx, models.UserOwner(userID), func(c *models.Cart) (*models.Order, error) {
		if c.IsEmpty() {
			return nil, apperr.EmptyCart()
		}
		id := uuid.NewString()
		items := models.SnapshotItems(id, c.Items)

		lines := make([]money.Line, len(items))
		for i, it := range items {
			lines[i] = money.Line{Price: it.Price, Qty: it.Qty}
		}
		p := money.CalcPrices(lines, s.rules)

		return &models.Order{
			ID:              id,
			UserID:          userID,
			ShippingAddress: req.ShippingAddress,
			Items:           items,
			ItemsPrice:      p.Items,
			ShippingPrice:   p.Shipping,
			TaxPrice:        p.Tax,
			TotalPrice:      p.Total,
			PaymentMethod:   req.PaymentMethod,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("user_id", userID),
		zap.String("total", money.Format(o.TotalPrice)))
	s.publish(notify.Event{
		Type:     notify.EventOrderCreated,
		EntityID: o.ID,
		OwnerID:  userID,
		Data: map[string]interface{}{
			"total":          money.Format(o.TotalPrice),
			"payment_method": string(o.PaymentMethod),
			"lines":          len(o.Items),
		},
	})
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	if orderID == "" {
		return nil, apperr.NotFound(apperr.MsgOrderNotFound)
	}
	return s.store.FindOrder(ctx, orderID)
}

// GetUserOrder hides other users' orders behind NotFound.
func (s *Service) GetUserOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, apperr.NotFound(apperr.MsgOrderNotFound)
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, userID string) ([]*models.Order, error) {
	if userID == "" {
		return nil, apperr.Validation(MsgUserRequired)
	}
	return s.store.ListOrdersByUser(ctx, userID)
}

// MarkPaid moves an unpaid order to paid exactly once. Every later or concurrent call gets the
// current order together with an AlreadyPaid error, which callers report as success.
func (s *Service) MarkPaid(ctx context.Context, orderID string, result *models.PaymentResult) (*models.Order, error) {
	o, err := s.markPaid(ctx, orderID, result)
	s.metrics.OrderTransition("mark_paid", err)
	return o, err
}

func (s *Service) markPaid(ctx context.Context, orderID string, result *models.PaymentResult) (*models.Order, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.IsPaid {
		return o, apperr.AlreadyPaid()
	}

	applied, err := s.store.UpdateOrderPaymentState(ctx, orderID, models.OrderStateUpdate{
		Transition:    models.TransitionPaid,
		At:            s.now(),
		PaymentResult: result,
	})
	if err != nil {
		return nil, err
	}

	o, err = s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return o, apperr.AlreadyPaid()
	}

	s.logger.Info("Order paid", zap.String("order_id", orderID), zap.String("provider", providerOf(result)))
	s.publish(notify.Event{
		Type:     notify.EventOrderPaid,
		EntityID: orderID,
		OwnerID:  o.UserID,
		Data: map[string]interface{}{
			"provider": providerOf(result),
			"total":    money.Format(o.TotalPrice),
		},
	})
	return o, nil
}

// MarkPaidCashOnDelivery is the admin action that settles a cash on delivery order by hand.
func (s *Service) MarkPaidCashOnDelivery(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		s.metrics.OrderTransition("mark_paid_cod", err)
		return nil, err
	}
	if o.IsPaid {
		s.metrics.OrderTransition("mark_paid_cod", apperr.AlreadyPaid())
		return o, apperr.AlreadyPaid()
	}
	if o.PaymentMethod != models.PaymentMethodCashOnDelivery {
		err := apperr.Validation(MsgNotCashOnDelivery)
		s.metrics.OrderTransition("mark_paid_cod", err)
		return nil, err
	}

	return s.MarkPaid(ctx, orderID, &models.PaymentResult{
		Provider: providerCashOnDelivery,
		Status:   statusCompleted,
		Amount:   o.TotalPrice,
	})
}

// MarkDelivered requires a paid order. Delivering twice returns the order unchanged.
func (s *Service) MarkDelivered(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.markDelivered(ctx, orderID)
	s.metrics.OrderTransition("mark_delivered", err)
	return o, err
}

func (s *Service) markDelivered(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.IsPaid {
		return nil, apperr.NotPaid()
	}
	if o.IsDelivered {
		return o, nil
	}

	applied, err := s.store.UpdateOrderPaymentState(ctx, orderID, models.OrderStateUpdate{
		Transition: models.TransitionDelivered,
		At:         s.now(),
	})
	if err != nil {
		return nil, err
	}

	o, err = s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return o, nil
	}

	s.logger.Info("Order delivered", zap.String("order_id", orderID))
	s.publish(notify.Event{
		Type:     notify.EventOrderDelivered,
		EntityID: orderID,
		OwnerID:  o.UserID,
	})
	return o, nil
}

func (s *Service) publish(e notify.Event) {
	if s.events != nil {
		s.events.Publish(e)
	}
}

func providerOf(pr *models.PaymentResult) string {
	if pr == nil {
		return ""
	}
	return pr.Provider
}
