// Package pricing resolves what a client pays for a product and manages the
// per-client overrides that feed that resolution.
package pricing

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// ClientPriceTerms are the stored override values. Zero means unset.
type ClientPriceTerms struct {
	CustomPrice        decimal.Decimal
	DiscountPercentage decimal.Decimal
}

// Resolution is the price a client pays and what they save against base.
// Savings is negative when the override is a markup.
type Resolution struct {
	FinalPrice decimal.Decimal `json:"final_price"`
	Savings    decimal.Decimal `json:"savings"`
}

// PricedItem is one product/override pair fed to the aggregate helpers.
type PricedItem struct {
	BasePrice decimal.Decimal
	Terms     ClientPriceTerms
}

// Summary aggregates resolutions over a client's price list.
type Summary struct {
	Count           int             `json:"count"`
	TotalBase       decimal.Decimal `json:"total_base"`
	TotalFinal      decimal.Decimal `json:"total_final"`
	TotalSavings    decimal.Decimal `json:"total_savings"`
	AverageDiscount decimal.Decimal `json:"average_discount"`
}

// Resolve applies a custom price when one is set, otherwise the discount.
// Both figures are rounded to cents, half away from zero.
func Resolve(basePrice decimal.Decimal, terms ClientPriceTerms) Resolution {
	final := finalPrice(basePrice, terms).Round(2)
	return Resolution{
		FinalPrice: final,
		Savings:    basePrice.Round(2).Sub(final),
	}
}

func finalPrice(basePrice decimal.Decimal, terms ClientPriceTerms) decimal.Decimal {
	if terms.CustomPrice.IsPositive() {
		return terms.CustomPrice
	}
	return basePrice.Mul(one.Sub(terms.DiscountPercentage.Div(hundred)))
}

// EffectiveDiscount is the stored discount when set, otherwise the discount
// implied by the final price. Items without a positive base price count as 0.
func EffectiveDiscount(item PricedItem) decimal.Decimal {
	if !item.Terms.DiscountPercentage.IsZero() {
		return item.Terms.DiscountPercentage
	}
	if !item.BasePrice.IsPositive() {
		return decimal.Zero
	}
	final := finalPrice(item.BasePrice, item.Terms)
	return item.BasePrice.Sub(final).Div(item.BasePrice).Mul(hundred)
}

// AverageDiscount is the arithmetic mean of EffectiveDiscount. An empty set is 0.
func AverageDiscount(items []PricedItem) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(EffectiveDiscount(item))
	}
	return sum.Div(decimal.NewFromInt(int64(len(items)))).Round(2)
}

func Summarize(items []PricedItem) Summary {
	summary := Summary{
		Count:           len(items),
		TotalBase:       decimal.Zero,
		TotalFinal:      decimal.Zero,
		TotalSavings:    decimal.Zero,
		AverageDiscount: AverageDiscount(items),
	}
	for _, item := range items {
		res := Resolve(item.BasePrice, item.Terms)
		summary.TotalBase = summary.TotalBase.Add(item.BasePrice.Round(2))
		summary.TotalFinal = summary.TotalFinal.Add(res.FinalPrice)
		summary.TotalSavings = summary.TotalSavings.Add(res.Savings)
	}
	return summary
}
