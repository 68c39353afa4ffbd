// Package finance records payments and movements and derives dashboards and reports from them.
package finance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Direction tells whether a movement brings money in or takes it out.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// ParseDirection accepts the English names and their Spanish equivalents.
func ParseDirection(raw string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "income", "ingreso":
		return DirectionIncome, true
	case "expense", "egreso":
		return DirectionExpense, true
	}
	return "", false
}

// PaymentType classifies a client payment.
type PaymentType string

const (
	PaymentAdvance PaymentType = "advance"
	PaymentPartial PaymentType = "partial"
	PaymentFull    PaymentType = "full"
)

// ParsePaymentType accepts the English names and the legacy Spanish ones.
func ParsePaymentType(raw string) (PaymentType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "advance", "anticipo":
		return PaymentAdvance, true
	case "partial", "pago_parcial":
		return PaymentPartial, true
	case "full", "pago_total":
		return PaymentFull, true
	}
	return "", false
}

// Movement categories created by the system.
const (
	CategoryAdvance          = "advance"
	CategoryQuotationPayment = "quotation_payment"
	CategorySupplierPayment  = "supplier_payment"
)

// CategoryFor maps a payment type to the category of its mirrored movement.
func CategoryFor(t PaymentType) string {
	if t == PaymentAdvance {
		return CategoryAdvance
	}
	return CategoryQuotationPayment
}

// Method is how money changed hands.
type Method string

const (
	MethodCash     Method = "cash"
	MethodTransfer Method = "transfer"
	MethodCheck    Method = "check"
	MethodCard     Method = "card"
	MethodOther    Method = "other"
)

// ParseMethod defaults blank input to transfer and accepts Spanish names.
func ParseMethod(raw string) (Method, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "transfer", "transferencia":
		return MethodTransfer, true
	case "cash", "efectivo":
		return MethodCash, true
	case "check", "cheque":
		return MethodCheck, true
	case "card", "tarjeta":
		return MethodCard, true
	case "other", "otro":
		return MethodOther, true
	}
	return "", false
}

// Movement is one ledger entry.
type Movement struct {
	ID                int64           `json:"id"`
	Direction         Direction       `json:"direction"`
	Category          string          `json:"category"`
	Subcategory       string          `json:"subcategory"`
	Amount            decimal.Decimal `json:"amount"`
	Date              shared.Date     `json:"date"`
	Description       string          `json:"description"`
	ClientID          *int64          `json:"client_id"`
	ClientName        string          `json:"client_name,omitempty"`
	QuotationID       *int64          `json:"quotation_id"`
	PaymentID         *int64          `json:"payment_id"`
	SupplierID        *int64          `json:"supplier_id"`
	SupplierName      string          `json:"supplier_name,omitempty"`
	PayableID         *int64          `json:"payable_id"`
	SupplierPaymentID *int64          `json:"supplier_payment_id"`
	Method            Method          `json:"method"`
	ReferenceNumber   string          `json:"reference_number"`
	UserID            *int64          `json:"user_id"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Payment is money received against a quotation.
type Payment struct {
	ID              int64           `json:"id"`
	QuotationID     int64           `json:"quotation_id"`
	ClientID        *int64          `json:"client_id"`
	Type            PaymentType     `json:"payment_type"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     shared.Date     `json:"payment_date"`
	Method          Method          `json:"method"`
	ReferenceNumber string          `json:"reference_number"`
	Bank            string          `json:"bank"`
	Notes           string          `json:"notes"`
	UserID          *int64          `json:"user_id"`
	UserName        string          `json:"user_name,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// QuotationRef is the slice of a quotation payments need.
type QuotationRef struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	ClientID   *int64          `json:"client_id"`
	ClientName string          `json:"client_name"`
	Total      decimal.Decimal `json:"total"`
	Status     string          `json:"status"`
}

// quotationAccepted mirrors the quotation lifecycle status that admits payments.
const quotationAccepted = "accepted"

// PaymentSummary is the paid/balance position of a quotation.
type PaymentSummary struct {
	Total     decimal.Decimal `json:"total"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Balance   decimal.Decimal `json:"balance"`
	FullyPaid bool            `json:"fully_paid"`
}

// Summarize derives the balance of a quotation from its total and paid amount.
func Summarize(total, paid decimal.Decimal) PaymentSummary {
	return PaymentSummary{
		Total:     total,
		TotalPaid: paid,
		Balance:   total.Sub(paid),
		FullyPaid: paid.GreaterThanOrEqual(total),
	}
}

// PaymentReceipt is returned by RegisterPayment.
type PaymentReceipt struct {
	Payment    Payment        `json:"payment"`
	MovementID int64          `json:"movement_id"`
	Quotation  QuotationRef   `json:"quotation"`
	Summary    PaymentSummary `json:"summary"`
}

// QuotationPayments is returned by GetPaymentsForQuotation.
type QuotationPayments struct {
	Quotation QuotationRef   `json:"quotation"`
	Payments  []Payment      `json:"payments"`
	Summary   PaymentSummary `json:"summary"`
}
