package quotations

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestComputeTotalsWithDiscountAndTax(t *testing.T) {
	items := []LineItem{
		{Quantity: dec(t, "2"), UnitPrice: dec(t, "100"), DiscountPercentage: dec(t, "10")},
	}
	totals := ComputeTotals(items, dec(t, "19"))

	assert.Equal(t, "180.00", items[0].Total.StringFixed(2))
	assert.Equal(t, "180.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "34.20", totals.TaxAmount.StringFixed(2))
	assert.Equal(t, "214.20", totals.Total.StringFixed(2))
}

func TestComputeTotalsRoundsEachLine(t *testing.T) {
	items := []LineItem{
		{Quantity: dec(t, "3"), UnitPrice: dec(t, "33.333")},
		{Quantity: dec(t, "1"), UnitPrice: dec(t, "535.005")},
	}
	totals := ComputeTotals(items, decimal.Zero)

	assert.Equal(t, "100.00", items[0].Total.StringFixed(2))
	assert.Equal(t, "535.01", items[1].Total.StringFixed(2))
	assert.Equal(t, "635.01", totals.Subtotal.StringFixed(2))
	assert.True(t, totals.TaxAmount.IsZero())
	assert.True(t, totals.Total.Equal(totals.Subtotal))
}

func TestComputeTotalsFullDiscount(t *testing.T) {
	items := []LineItem{{Quantity: dec(t, "5"), UnitPrice: dec(t, "80"), DiscountPercentage: dec(t, "100")}}
	totals := ComputeTotals(items, dec(t, "19"))
	assert.True(t, totals.Total.IsZero())
}

func TestComputeTotalsInvariant(t *testing.T) {
	items := []LineItem{
		{Quantity: dec(t, "1.5"), UnitPrice: dec(t, "19.99"), DiscountPercentage: dec(t, "7.5")},
		{Quantity: dec(t, "4"), UnitPrice: dec(t, "0.35")},
		{Quantity: dec(t, "12"), UnitPrice: dec(t, "1234.56"), DiscountPercentage: dec(t, "3")},
	}
	totals := ComputeTotals(items, dec(t, "19"))

	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Total)
	}
	assert.True(t, totals.Subtotal.Equal(sum))
	assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.TaxAmount)))
	assert.True(t, totals.TaxAmount.Equal(totals.TaxAmount.Round(2)))
}

func TestLineTotalHalfUp(t *testing.T) {
	assert.Equal(t, "0.01", LineTotal(dec(t, "1"), dec(t, "0.005"), decimal.Zero).StringFixed(2))
	assert.Equal(t, "2.68", LineTotal(dec(t, "1"), dec(t, "2.675"), decimal.Zero).StringFixed(2))
}

func TestComputeTotalsMixedDiscountLines(t *testing.T) {
	items := []LineItem{
		{Quantity: dec(t, "1"), UnitPrice: dec(t, "500.00")},
		{Quantity: dec(t, "3"), UnitPrice: dec(t, "50.00"), DiscountPercentage: dec(t, "10")},
	}
	totals := ComputeTotals(items, decimal.Zero)

	assert.Equal(t, "135.00", items[1].Total.StringFixed(2))
	assert.Equal(t, "635.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "635.00", totals.Total.StringFixed(2))
}
