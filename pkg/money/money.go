package money

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/pkg/apperr"
)

const Places = 2

var (
	priceShape  = regexp.MustCompile(`^\d+\.\d{2}$`)
	numberShape = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)$`)
)

// MaxPrice is the largest amount a decimal(12,2) column holds.
var MaxPrice = decimal.RequireFromString("9999999999.99")

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to two places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// IsCanonical reports whether s already has the persisted "123.45" shape.
func IsCanonical(s string) bool {
	return priceShape.MatchString(s)
}

// ParsePrice accepts any non-negative number and returns it repaired to two places.
// "10" and "10.5" become 10.00 and 10.50, "10.005" rounds to 10.01. Anything other than a
// plain non-negative decimal up to MaxPrice is rejected.
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, apperr.Validation("Price is required")
	}
	if !numberShape.MatchString(s) {
		return decimal.Zero, apperr.Validation("Price must be a valid number with two decimal places")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperr.Validation("Price must be a valid number with two decimal places")
	}
	if d.IsNegative() {
		return decimal.Zero, apperr.Validation("Price cannot be negative")
	}
	d = Round2(d)
	if d.GreaterThan(MaxPrice) {
		return decimal.Zero, apperr.Validation("Price is too large")
	}
	if !IsCanonical(Format(d)) {
		return decimal.Zero, apperr.Validation("Price must be a valid number with two decimal places")
	}
	return d, nil
}

// NormalizePrice is ParsePrice for callers that persist the string form.
func NormalizePrice(s string) (string, error) {
	d, err := ParsePrice(s)
	if err != nil {
		return "", err
	}
	return Format(d), nil
}

func MustParse(s string) decimal.Decimal {
	d, err := ParsePrice(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ToMinor converts to the smallest currency unit used by card providers.
func ToMinor(d decimal.Decimal) int64 {
	return Round2(d).Mul(hundred).IntPart()
}

func FromMinor(n int64) decimal.Decimal {
	return decimal.New(n, -Places)
}
