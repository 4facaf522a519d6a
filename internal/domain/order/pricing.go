package order

import "github.com/shopspring/decimal"

// MaxQuantity is the largest quantity accepted for one line item.
const MaxQuantity = 10000

// MaxAmount is the largest amount an order column (NUMERIC(12,2)) can hold.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// Pricing holds the tax and shipping rules applied to every order.
type Pricing struct {
	TaxRate               decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	FlatShipping          decimal.Decimal
}

// DefaultPricing is 15% tax with flat 10.00 shipping below 100.00.
func DefaultPricing() Pricing {
	return Pricing{
		TaxRate:               decimal.RequireFromString("0.15"),
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShipping:          decimal.NewFromInt(10),
	}
}

// Totals are the derived monetary amounts of an order.
type Totals struct {
	ItemsPrice    decimal.Decimal
	TaxPrice      decimal.Decimal
	ShippingPrice decimal.Decimal
	TotalPrice    decimal.Decimal
}

// Calc derives order totals from priced items. Every intermediate amount is
// rounded to cents so that TotalPrice equals the sum of its parts exactly.
func (p Pricing) Calc(items []Item) Totals {
	itemsPrice := decimal.Zero
	for _, item := range items {
		itemsPrice = itemsPrice.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	itemsPrice = itemsPrice.Round(2)

	shipping := decimal.Zero
	if itemsPrice.LessThan(p.FreeShippingThreshold) {
		shipping = p.FlatShipping
	}
	shipping = shipping.Round(2)

	tax := itemsPrice.Mul(p.TaxRate).Round(2)

	return Totals{
		ItemsPrice:    itemsPrice,
		TaxPrice:      tax,
		ShippingPrice: shipping,
		TotalPrice:    itemsPrice.Add(tax).Add(shipping).Round(2),
	}
}
