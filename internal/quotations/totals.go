package quotations

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// Totals is the derived monetary summary of a quotation.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// LineTotal returns quantity * unit price less the discount, rounded half-up to cents.
func LineTotal(quantity, unitPrice, discountPercentage decimal.Decimal) decimal.Decimal {
	gross := quantity.Mul(unitPrice)
	net := gross.Mul(hundred.Sub(discountPercentage)).Div(hundred)
	return shared.Round2(net)
}

// ComputeTotals fills each item's Total and returns the quotation totals.
// Lines are rounded individually and the subtotal is rounded again.
func ComputeTotals(items []LineItem, taxPercentage decimal.Decimal) Totals {
	sum := decimal.Zero
	for i := range items {
		items[i].Total = LineTotal(items[i].Quantity, items[i].UnitPrice, items[i].DiscountPercentage)
		sum = sum.Add(items[i].Total)
	}
	subtotal := shared.Round2(sum)
	tax := decimal.Zero
	if !taxPercentage.IsZero() {
		tax = shared.Round2(shared.Percent(subtotal, taxPercentage))
	}
	return Totals{Subtotal: subtotal, TaxAmount: tax, Total: subtotal.Add(tax)}
}
