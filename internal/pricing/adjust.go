package pricing

import (
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
)

type SkipReason string

const (
	SkipBelowBasePrice  SkipReason = "below_base_price"
	SkipDiscountTooHigh SkipReason = "discount_out_of_range"
)

var (
	maxDiscount = decimal.NewFromInt(100)
	minDiscount = decimal.NewFromInt(-100)
)

// SkippedRow is a client price the adjustment left untouched.
type SkippedRow struct {
	ProductID uuid.UUID  `json:"product_id"`
	Reason    SkipReason `json:"reason"`
}

// BulkAdjustResult reports how many rows changed and which were skipped.
type BulkAdjustResult struct {
	UpdatedCount int          `json:"updated_count"`
	Skipped      []SkippedRow `json:"skipped"`
}

// ParsePercentage validates a bulk adjustment percentage and normalizes it to
// two decimal places. Zero is rejected because it changes nothing.
func ParsePercentage(value float64) (decimal.Decimal, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "percentage must be a number")
	}
	p := decimal.NewFromFloat(value).Round(2)
	if p.GreaterThan(maxDiscount) || p.LessThan(minDiscount) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "percentage must be between -100 and 100")
	}
	if p.IsZero() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "percentage must not be zero")
	}
	return p, nil
}

// Adjust shifts one row's terms by percentage points of the base price.
// A positive percentage lowers what the client pays and a negative one raises it.
// Custom prices move by base*p/100, rounded to cents before subtracting so that
// applying p and then -p restores the original value. Discounts move by p.
// ok is false when the result would cross a floor; the row must then be left as is.
func Adjust(basePrice decimal.Decimal, terms ClientPriceTerms, percentage decimal.Decimal) (ClientPriceTerms, SkipReason, bool) {
	if terms.CustomPrice.IsPositive() {
		delta := basePrice.Mul(percentage).Div(hundred).Round(2)
		next := terms.CustomPrice.Sub(delta)
		if next.LessThan(basePrice) {
			return terms, SkipBelowBasePrice, false
		}
		return ClientPriceTerms{CustomPrice: next, DiscountPercentage: decimal.Zero}, "", true
	}

	next := terms.DiscountPercentage.Add(percentage)
	if next.GreaterThanOrEqual(maxDiscount) || next.LessThan(minDiscount) {
		return terms, SkipDiscountTooHigh, false
	}
	return ClientPriceTerms{CustomPrice: decimal.Zero, DiscountPercentage: next}, "", true
}
