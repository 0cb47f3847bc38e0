// Package pricing holds the side-effect-free money rules: item prices, order
// totals, tax, service charge, coupon discounts and preparation estimates.
// All amounts are rounded to two decimal places.
package pricing

import (
	"errors"
	"time"

	"dinein-service/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ItemPrice is base + variant modifier + Σ(addOn.unitPrice × addOn.quantity), never below zero.
func ItemPrice(base decimal.Decimal, variant *models.SelectedVariant, addOns []models.SelectedAddOn) decimal.Decimal {
	price := base
	if variant != nil {
		price = price.Add(variant.PriceModifier)
	}
	for _, a := range addOns {
		price = price.Add(a.UnitPrice.Mul(decimal.NewFromInt(int64(a.Quantity))))
	}
	if price.IsNegative() {
		return decimal.Zero
	}
	return price.Round(2)
}

// Line is a priced quantity.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// OrderTotal is Σ unitPrice × quantity.
func OrderTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total.Round(2)
}

// Percent returns amount × rate / 100.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred).Round(2)
}

// Tax is computed off the pre-discount subtotal.
func Tax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return Percent(subtotal, rate)
}

// ServiceCharge is computed off the pre-discount subtotal.
func ServiceCharge(subtotal, rate decimal.Decimal) decimal.Decimal {
	return Percent(subtotal, rate)
}

// ClampDiscount bounds discount to [0, subtotal].
func ClampDiscount(discount, subtotal decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}

// FinalAmount is subtotal + tax + serviceCharge − clamped discount.
func FinalAmount(subtotal, tax, serviceCharge, discount decimal.Decimal) decimal.Decimal {
	return subtotal.Add(tax).Add(serviceCharge).Sub(ClampDiscount(discount, subtotal)).Round(2)
}

// Breakdown is the full bill arithmetic for one subtotal.
type Breakdown struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ServiceCharge  decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

// Summarize computes tax, service charge and the final amount for subtotal.
func Summarize(subtotal, taxRate, serviceRate, discount decimal.Decimal) Breakdown {
	tax := Tax(subtotal, taxRate)
	service := ServiceCharge(subtotal, serviceRate)
	discount = ClampDiscount(discount, subtotal)
	return Breakdown{
		Subtotal:       subtotal,
		TaxAmount:      tax,
		ServiceCharge:  service,
		DiscountAmount: discount,
		FinalAmount:    FinalAmount(subtotal, tax, service, discount),
	}
}

var (
	ErrCouponInactive   = errors.New("coupon is not active")
	ErrCouponExpired    = errors.New("coupon is outside its validity window")
	ErrCouponExhausted  = errors.New("coupon usage limit reached")
	ErrCouponMinimumNot = errors.New("order amount is below the coupon minimum")
)

// ValidateCoupon returns nil if c can be applied to orderAmount at now.
func ValidateCoupon(c *models.Coupon, orderAmount decimal.Decimal, now time.Time) error {
	if !c.IsActive {
		return ErrCouponInactive
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return ErrCouponExpired
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ErrCouponExhausted
	}
	if c.MinOrderAmount.Valid && orderAmount.LessThan(c.MinOrderAmount.Decimal) {
		return ErrCouponMinimumNot
	}
	return nil
}

// CouponDiscount is min(amount × value/100, maxDiscount) for PERCENTAGE and
// min(value, amount) for FIXED. Unknown types discount nothing.
func CouponDiscount(c *models.Coupon, orderAmount decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch c.Type {
	case models.CouponTypePercentage:
		discount = Percent(orderAmount, c.Value)
		if c.MaxDiscountAmount.Valid && discount.GreaterThan(c.MaxDiscountAmount.Decimal) {
			discount = c.MaxDiscountAmount.Decimal
		}
	case models.CouponTypeFixed:
		discount = c.Value
	default:
		return decimal.Zero
	}
	return ClampDiscount(discount, orderAmount)
}

// PrepLine is one line's preparation minutes and quantity.
type PrepLine struct {
	Minutes  int
	Quantity int
}

// EstimatePreparation sums minutes × quantity and floors the result at minMinutes.
// Monotonic in both quantity and line count.
func EstimatePreparation(lines []PrepLine, minMinutes int) int {
	total := 0
	for _, l := range lines {
		if l.Minutes > 0 && l.Quantity > 0 {
			total += l.Minutes * l.Quantity
		}
	}
	if total < minMinutes {
		return minMinutes
	}
	return total
}
