package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Line struct {
	Price decimal.Decimal
	Qty   int
}

type Prices struct {
	Items    decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Rules holds the store-wide shipping and tax policy.
type Rules struct {
	FreeShippingThreshold decimal.Decimal
	FlatShipping          decimal.Decimal
	TaxRate               decimal.Decimal
}

func DefaultRules() Rules {
	return Rules{
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShipping:          decimal.NewFromInt(10),
		TaxRate:               decimal.RequireFromString("0.15"),
	}
}

func NewRules(threshold, flat, taxRate string) (Rules, error) {
	t, err := ParsePrice(threshold)
	if err != nil {
		return Rules{}, fmt.Errorf("invalid free shipping threshold: %w", err)
	}
	f, err := ParsePrice(flat)
	if err != nil {
		return Rules{}, fmt.Errorf("invalid flat shipping: %w", err)
	}
	r, err := decimal.NewFromString(taxRate)
	if err != nil || r.IsNegative() {
		return Rules{}, fmt.Errorf("invalid tax rate %q", taxRate)
	}
	return Rules{FreeShippingThreshold: t, FlatShipping: f, TaxRate: r}, nil
}

// CalcPrices always recomputes from the full line set.
func CalcPrices(lines []Line, rules Rules) Prices {
	items := decimal.Zero
	for _, l := range lines {
		items = items.Add(Round2(l.Price).Mul(decimal.NewFromInt(int64(l.Qty))))
	}
	items = Round2(items)

	shipping := decimal.Zero
	if len(lines) > 0 && !items.GreaterThan(rules.FreeShippingThreshold) {
		shipping = Round2(rules.FlatShipping)
	}
	tax := Round2(rules.TaxRate.Mul(items))

	return Prices{
		Items:    items,
		Shipping: shipping,
		Tax:      tax,
		Total:    Round2(items.Add(shipping).Add(tax)),
	}
}
