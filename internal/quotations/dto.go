package quotations

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// ItemInput is one requested line item.
type ItemInput struct {
	Description        string          `json:"description" validate:"required,max=2000"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
}

// ClientInput is the client snapshot supplied by the caller.
type ClientInput struct {
	Name    string `json:"name" validate:"max=255"`
	TaxID   string `json:"tax_id" validate:"max=50"`
	Address string `json:"address"`
	Contact string `json:"contact" validate:"max=255"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"max=50"`
}

func (c ClientInput) snapshot() ClientSnapshot {
	return ClientSnapshot{
		Name:    strings.TrimSpace(c.Name),
		TaxID:   strings.TrimSpace(c.TaxID),
		Address: strings.TrimSpace(c.Address),
		Contact: strings.TrimSpace(c.Contact),
		Email:   strings.TrimSpace(c.Email),
		Phone:   strings.TrimSpace(c.Phone),
	}
}

// CreateRequest is the payload for creating a quotation.
type CreateRequest struct {
	ClientID      *int64          `json:"client_id" validate:"omitempty,gt=0"`
	Client        ClientInput     `json:"client"`
	Issuer        *Issuer         `json:"issuer"`
	Date          *shared.Date    `json:"date"`
	ValidityDays  *int            `json:"validity_days" validate:"omitempty,gte=0,lte=365"`
	Currency      string          `json:"currency" validate:"omitempty,len=3,alpha"`
	PaymentTerms  *string         `json:"payment_terms"`
	TaxPercentage decimal.Decimal `json:"tax_percentage"`
	Notes         string          `json:"notes"`
	Terms         string          `json:"terms"`
	Items         []ItemInput     `json:"items" validate:"dive"`
}

// UpdateRequest is a partial update. Nil fields are left unchanged; items
// replace the existing ones only when the array is non-empty.
type UpdateRequest struct {
	ClientID      *int64           `json:"client_id" validate:"omitempty,gt=0"`
	Client        *ClientInput     `json:"client"`
	Issuer        *Issuer          `json:"issuer"`
	Date          *shared.Date     `json:"date"`
	ValidityDays  *int             `json:"validity_days" validate:"omitempty,gte=0,lte=365"`
	Currency      *string          `json:"currency" validate:"omitempty,len=3,alpha"`
	PaymentTerms  *string          `json:"payment_terms"`
	TaxPercentage *decimal.Decimal `json:"tax_percentage"`
	Notes         *string          `json:"notes"`
	Terms         *string          `json:"terms"`
	Items         []ItemInput      `json:"items" validate:"dive"`
}

// StatusRequest is the payload for ChangeStatus.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes"`
}

// SendRequest optionally overrides the recipient address.
type SendRequest struct {
	Recipient string `json:"recipient" validate:"omitempty,email"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Status *Status
	Search string
	Page   shared.PageRequest
}

// buildItems validates inputs and converts them to line items in input order.
func buildItems(inputs []ItemInput) ([]LineItem, error) {
	fields := make(map[string]string)
	items := make([]LineItem, 0, len(inputs))
	for i, in := range inputs {
		prefix := fmt.Sprintf("items[%d].", i)
		if strings.TrimSpace(in.Description) == "" {
			fields[prefix+"description"] = "is required"
		}
		switch {
		case !in.Quantity.IsPositive():
			fields[prefix+"quantity"] = "must be greater than 0"
		case !fitsColumn(in.Quantity, quantityScale, maxQuantity):
			fields[prefix+"quantity"] = "must have at most 4 decimal places and be below 10000000000"
		}
		switch {
		case in.UnitPrice.IsNegative():
			fields[prefix+"unit_price"] = "must be greater than or equal to 0"
		case !fitsColumn(in.UnitPrice, amountScale, maxAmount):
			fields[prefix+"unit_price"] = "must have at most 2 decimal places and be below 1000000000000"
		}
		if msg := validatePercentage(in.DiscountPercentage); msg != "" {
			fields[prefix+"discount_percentage"] = msg
		}
		items = append(items, LineItem{
			Description:        strings.TrimSpace(in.Description),
			Quantity:           in.Quantity,
			UnitPrice:          in.UnitPrice,
			DiscountPercentage: in.DiscountPercentage,
			DisplayOrder:       i,
		})
	}
	if len(fields) > 0 {
		return nil, &shared.ValidationError{Message: "invalid line items", Fields: fields}
	}
	return items, nil
}

func validateTaxPercentage(pct decimal.Decimal) error {
	if msg := validatePercentage(pct); msg != "" {
		return shared.NewValidationError("tax_percentage", msg)
	}
	return nil
}

// Column scales of quotation_items and quotations.
const (
	quantityScale   = 4
	amountScale     = 2
	percentageScale = 2
)

var (
	maxQuantity = decimal.New(1, 10)
	maxAmount   = decimal.New(1, 12)
)

func validatePercentage(pct decimal.Decimal) string {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return "must be between 0 and 100"
	}
	if !pct.Equal(pct.Truncate(percentageScale)) {
		return "must have at most 2 decimal places"
	}
	return ""
}

// fitsColumn reports whether d is stored exactly by a NUMERIC column with the
// given scale and exclusive upper bound.
func fitsColumn(d decimal.Decimal, scale int32, limit decimal.Decimal) bool {
	return d.Equal(d.Truncate(scale)) && d.LessThan(limit)
}

// checkTotal rejects totals the NUMERIC(14,2) money columns cannot hold.
func checkTotal(t Totals) error {
	if !t.Total.LessThan(maxAmount) {
		return shared.NewValidationError("items", "quotation total must be below 1000000000000")
	}
	return nil
}
