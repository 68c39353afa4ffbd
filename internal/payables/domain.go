// Package payables tracks supplier invoices, their payments and overdue state.
package payables

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/finance"
	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Status of an account payable.
type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
	StatusVoided  Status = "voided"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPartial, StatusPaid, StatusOverdue, StatusVoided:
		return true
	}
	return false
}

// Open reports whether the payable still expects payments.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusPartial || s == StatusOverdue
}

// ExpenseType classifies what the supplier invoice was for.
type ExpenseType string

var expenseTypes = map[string]ExpenseType{
	"technical_service":  "technical_service",
	"servicio_tecnico":   "technical_service",
	"consulting":         "consulting",
	"consultoria":        "consulting",
	"software":           "software",
	"hardware":           "hardware",
	"rent":               "rent",
	"arriendo":           "rent",
	"utilities":          "utilities",
	"servicios_publicos": "utilities",
	"payroll":            "payroll",
	"nomina":             "payroll",
	"taxes":              "taxes",
	"impuestos":          "taxes",
	"marketing":          "marketing",
	"transport":          "transport",
	"transporte":         "transport",
	"stationery":         "stationery",
	"papeleria":          "stationery",
	"maintenance":        "maintenance",
	"mantenimiento":      "maintenance",
	"other":              "other",
	"otro":               "other",
}

// ParseExpenseType accepts the English names and the legacy Spanish ones.
func ParseExpenseType(raw string) (ExpenseType, bool) {
	t, ok := expenseTypes[strings.ToLower(strings.TrimSpace(raw))]
	return t, ok
}

// Priority orders payables for the payments desk.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority defaults blank input to medium.
func ParsePriority(raw string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "medium", "media":
		return PriorityMedium, true
	case "high", "alta":
		return PriorityHigh, true
	case "low", "baja":
		return PriorityLow, true
	}
	return "", false
}

// AccountPayable is an invoice owed to a supplier.
type AccountPayable struct {
	ID             int64           `json:"id"`
	SupplierID     int64           `json:"supplier_id"`
	SupplierName   string          `json:"supplier_name,omitempty"`
	ExpenseType    ExpenseType     `json:"expense_type"`
	Concept        string          `json:"concept"`
	InvoiceNumber  string          `json:"invoice_number"`
	InvoiceDate    shared.Date     `json:"invoice_date"`
	DueDate        shared.Date     `json:"due_date"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
	Status         Status          `json:"status"`
	Priority       Priority        `json:"priority"`
	OverdueDays    int             `json:"overdue_days"`
	Notes          string          `json:"notes"`
	UserID         *int64          `json:"user_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Recompute derives pending balance, overdue days and status from the
// amounts and due date as of today. A voided payable stays voided.
func Recompute(p AccountPayable, today shared.Date) AccountPayable {
	p.PendingBalance = p.TotalAmount.Sub(p.PaidAmount)

	p.OverdueDays = 0
	if !p.DueDate.IsZero() {
		if days := shared.DaysBetween(p.DueDate, today); days > 0 {
			p.OverdueDays = days
		}
	}

	switch {
	case p.Status == StatusVoided:
	case p.PendingBalance.IsZero():
		p.Status = StatusPaid
	case p.OverdueDays > 0:
		p.Status = StatusOverdue
	case p.PaidAmount.IsPositive() && p.PendingBalance.IsPositive():
		p.Status = StatusPartial
	default:
		p.Status = StatusPending
	}
	return p
}

// SupplierPayment is money paid against a payable.
type SupplierPayment struct {
	ID              int64           `json:"id"`
	PayableID       int64           `json:"payable_id"`
	SupplierID      int64           `json:"supplier_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     shared.Date     `json:"payment_date"`
	Method          finance.Method  `json:"method"`
	ReferenceNumber string          `json:"reference_number"`
	Bank            string          `json:"bank"`
	Notes           string          `json:"notes"`
	UserID          *int64          `json:"user_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

// PaymentReceipt is returned after a supplier payment is recorded.
type PaymentReceipt struct {
	Payment    SupplierPayment `json:"payment"`
	MovementID int64           `json:"movement_id"`
	Payable    AccountPayable  `json:"payable"`
}

// ListFilter narrows List.
type ListFilter struct {
	Status     *Status
	SupplierID *int64
	Page       shared.PageRequest
}
