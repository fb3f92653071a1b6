package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/pkg/money"
)

// Owner id prefixes. A cart belongs to exactly one of them.
const (
	OwnerUserPrefix    = "user:"
	OwnerSessionPrefix = "session:"
)

func UserOwner(userID string) string       { return OwnerUserPrefix + userID }
func SessionOwner(sessionID string) string { return OwnerSessionPrefix + sessionID }

type Cart struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID       string          `gorm:"type:varchar(80);uniqueIndex;not null" json:"owner_id"`
	Items         []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	ItemsPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"items_price"`
	ShippingPrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"shipping_price"`
	TaxPrice      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax_price"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Cart) TableName() string {
	return "carts"
}

type CartItem struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	CartID    string          `gorm:"type:varchar(36);index" json:"-"`
	Position  int             `gorm:"not null" json:"-"`
	ProductID string          `gorm:"type:varchar(36);not null" json:"product_id"`
	Slug      string          `gorm:"type:varchar(255)" json:"slug"`
	Name      string          `gorm:"type:varchar(255)" json:"name"`
	Image     string          `gorm:"type:varchar(512)" json:"image"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Qty       int             `gorm:"not null" json:"qty"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// IndexOf returns the line position for productID, or -1.
func (c *Cart) IndexOf(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Count is the number of units across all lines.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Qty
	}
	return n
}

func (c *Cart) Lines() []money.Line {
	lines := make([]money.Line, len(c.Items))
	for i, it := range c.Items {
		lines[i] = money.Line{Price: it.Price, Qty: it.Qty}
	}
	return lines
}

// Reprice recomputes every aggregate from the current item set.
func (c *Cart) Reprice(rules money.Rules) {
	for i := range c.Items {
		c.Items[i].Position = i
		c.Items[i].CartID = c.ID
	}
	p := money.CalcPrices(c.Lines(), rules)
	c.ItemsPrice = p.Items
	c.ShippingPrice = p.Shipping
	c.TaxPrice = p.Tax
	c.TotalPrice = p.Total
}

// Clone deep-copies the cart so callers never share the item slice with a store.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Items = append([]CartItem(nil), c.Items...)
	return &cp
}
