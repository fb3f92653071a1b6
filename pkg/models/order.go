package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusDelivered OrderStatus = "delivered"
)

type PaymentMethod string

const (
	PaymentMethodPayPal         PaymentMethod = "PayPal"
	PaymentMethodStripe         PaymentMethod = "Stripe"
	PaymentMethodCashOnDelivery PaymentMethod = "CashOnDelivery"
)

var PaymentMethods = []PaymentMethod{PaymentMethodPayPal, PaymentMethodStripe, PaymentMethodCashOnDelivery}

func (m PaymentMethod) Valid() bool {
	for _, pm := range PaymentMethods {
		if m == pm {
			return true
		}
	}
	return false
}

// UsesProvider is false for cash on delivery, which an admin settles by hand.
func (m PaymentMethod) UsesProvider() bool {
	return m == PaymentMethodPayPal || m == PaymentMethodStripe
}

type ShippingAddress struct {
	FullName      string `gorm:"type:varchar(255)" json:"full_name" validate:"required,min=3"`
	StreetAddress string `gorm:"type:varchar(255)" json:"street_address" validate:"required,min=3"`
	City          string `gorm:"type:varchar(100)" json:"city" validate:"required,min=3"`
	PostalCode    string `gorm:"type:varchar(20)" json:"postal_code" validate:"required,min=3"`
	Country       string `gorm:"type:varchar(100)" json:"country" validate:"required,min=3"`
}

// PaymentResult records what a provider reported, for auditing.
type PaymentResult struct {
	Provider      string          `json:"provider"`
	SessionID     string          `json:"session_id,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Status        string          `json:"status,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	EmailAddress  string          `json:"email_address,omitempty"`
}

type Order struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID          string          `gorm:"type:varchar(36);not null;index" json:"user_id"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	ItemsPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"items_price"`
	ShippingPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"shipping_price"`
	TaxPrice        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_price"`
	TotalPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(32);not null" json:"payment_method"`
	IsPaid          bool            `gorm:"not null;default:false" json:"is_paid"`
	PaidAt          *time.Time      `json:"paid_at"`
	IsDelivered     bool            `gorm:"not null;default:false" json:"is_delivered"`
	DeliveredAt     *time.Time      `json:"delivered_at"`
	PaymentResult   *PaymentResult  `gorm:"serializer:json;type:text" json:"payment_result,omitempty"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) Status() OrderStatus {
	switch {
	case o.IsDelivered:
		return OrderStatusDelivered
	case o.IsPaid:
		return OrderStatusPaid
	default:
		return OrderStatusCreated
	}
}

// OpenSession returns the stored provider session id for provider, if any.
func (o *Order) OpenSession(provider string) string {
	if o.IsPaid || o.PaymentResult == nil || o.PaymentResult.Provider != provider {
		return ""
	}
	return o.PaymentResult.SessionID
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	if o.PaymentResult != nil {
		pr := *o.PaymentResult
		cp.PaymentResult = &pr
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	return &cp
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	OrderID   string          `gorm:"type:varchar(36);index" json:"-"`
	Position  int             `gorm:"not null" json:"-"`
	ProductID string          `gorm:"type:varchar(36);not null" json:"product_id"`
	Slug      string          `gorm:"type:varchar(255)" json:"slug"`
	Name      string          `gorm:"type:varchar(255)" json:"name"`
	Image     string          `gorm:"type:varchar(512)" json:"image"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Qty       int             `gorm:"not null" json:"qty"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// SnapshotItems copies cart lines into order lines. The copy shares nothing with the cart.
func SnapshotItems(orderID string, items []CartItem) []OrderItem {
	out := make([]OrderItem, len(items))
	for i, it := range items {
		out[i] = OrderItem{
			OrderID:   orderID,
			Position:  i,
			ProductID: it.ProductID,
			Slug:      it.Slug,
			Name:      it.Name,
			Image:     it.Image,
			Price:     it.Price,
			Qty:       it.Qty,
		}
	}
	return out
}

type Transition int

const (
	// TransitionSessionOpened stores a provider session handle on an unpaid order.
	TransitionSessionOpened Transition = iota
	TransitionPaid
	TransitionDelivered
)

func (t Transition) String() string {
	switch t {
	case TransitionSessionOpened:
		return "session_opened"
	case TransitionPaid:
		return "paid"
	case TransitionDelivered:
		return "delivered"
	default:
		return "unknown"
	}
}

// OrderStateUpdate is a guarded write: it applies only while the order is in the state the
// transition starts from (unpaid for session/paid, paid and undelivered for delivered).
type OrderStateUpdate struct {
	Transition    Transition
	At            time.Time
	PaymentResult *PaymentResult
}
