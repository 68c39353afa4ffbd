package payables

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// CreateRequest is the payload for recording a supplier invoice.
type CreateRequest struct {
	SupplierID    int64           `json:"supplier_id" validate:"required,gt=0"`
	ExpenseType   string          `json:"expense_type" validate:"required"`
	Concept       string          `json:"concept" validate:"required"`
	InvoiceNumber string          `json:"invoice_number" validate:"max=50"`
	InvoiceDate   *shared.Date    `json:"invoice_date"`
	DueDate       *shared.Date    `json:"due_date" validate:"required"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Priority      string          `json:"priority"`
	Notes         string          `json:"notes"`
}

// UpdateRequest is a partial update. Nil fields are left unchanged.
type UpdateRequest struct {
	SupplierID    *int64           `json:"supplier_id" validate:"omitempty,gt=0"`
	ExpenseType   *string          `json:"expense_type"`
	Concept       *string          `json:"concept" validate:"omitempty,min=1"`
	InvoiceNumber *string          `json:"invoice_number" validate:"omitempty,max=50"`
	InvoiceDate   *shared.Date     `json:"invoice_date"`
	DueDate       *shared.Date     `json:"due_date"`
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	Priority      *string          `json:"priority"`
	Notes         *string          `json:"notes"`
}

// PaymentRequest is the payload for RegisterSupplierPayment.
type PaymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     *shared.Date    `json:"payment_date"`
	Method          string          `json:"method"`
	ReferenceNumber string          `json:"reference_number" validate:"max=100"`
	Bank            string          `json:"bank" validate:"max=100"`
	Notes           string          `json:"notes"`
}
