package quotations

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Status enumerates quotation lifecycle states.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusVoided   Status = "voided"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusVoided}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	for _, candidate := range Statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Issuer is the company profile printed on the quotation.
type Issuer struct {
	Name    string `json:"name"`
	TaxID   string `json:"tax_id"`
	Address string `json:"address"`
	Website string `json:"website"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

// ClientSnapshot is the client data frozen on the quotation at creation time.
type ClientSnapshot struct {
	Name    string `json:"name"`
	TaxID   string `json:"tax_id"`
	Address string `json:"address"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

// IsEmpty reports whether no snapshot field was supplied.
func (c ClientSnapshot) IsEmpty() bool {
	return c == ClientSnapshot{}
}

// Quotation is a priced offer with its line items.
type Quotation struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	Issuer        Issuer          `json:"issuer"`
	ClientID      *int64          `json:"client_id"`
	Client        ClientSnapshot  `json:"client"`
	Date          shared.Date     `json:"date"`
	ValidityDays  int             `json:"validity_days"`
	Currency      string          `json:"currency"`
	PaymentTerms  string          `json:"payment_terms"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxPercentage decimal.Decimal `json:"tax_percentage"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	Total         decimal.Decimal `json:"total"`
	Notes         string          `json:"notes"`
	Terms         string          `json:"terms"`
	Status        Status          `json:"status"`
	UserID        *int64          `json:"user_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []LineItem      `json:"items"`
}

// ApplyTotals copies computed totals onto the quotation.
func (q *Quotation) ApplyTotals(t Totals) {
	q.Subtotal = t.Subtotal
	q.TaxAmount = t.TaxAmount
	q.Total = t.Total
}

// LineItem is one priced row of a quotation.
type LineItem struct {
	ID                 int64           `json:"id"`
	QuotationID        int64           `json:"quotation_id"`
	Description        string          `json:"description"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	Total              decimal.Decimal `json:"total"`
	DisplayOrder       int             `json:"display_order"`
}

// StatusChange reports the outcome of ChangeStatus.
type StatusChange struct {
	ID       int64  `json:"id"`
	Number   string `json:"number"`
	Previous Status `json:"previous_status"`
	Current  Status `json:"status"`
}

// SendResult reports the outcome of Send.
type SendResult struct {
	ID          int64  `json:"id"`
	Number      string `json:"number"`
	Status      Status `json:"status"`
	Recipient   string `json:"recipient"`
	EmailQueued bool   `json:"email_queued"`
}

// EmailRequest describes a quotation email to dispatch after a send commits.
type EmailRequest struct {
	QuotationID int64
	Number      string
	Recipient   string
	ClientName  string
	Total       decimal.Decimal
	Currency    string
}

// TransitionPolicy guards status changes.
type TransitionPolicy struct {
	AllowVoidAccepted bool
}

// Check returns an InvalidTransitionError when from → to is not allowed.
// voided is terminal. accepted and rejected are only reachable from draft or
// sent. An accepted quotation can only leave to voided, and only when
// AllowVoidAccepted is set. A rejected quotation may be reopened.
func (p TransitionPolicy) Check(from, to Status) error {
	denied := false
	switch {
	case from == StatusVoided:
		denied = to != StatusVoided
	case to == StatusAccepted || to == StatusRejected:
		denied = from != StatusDraft && from != StatusSent
	case from == StatusAccepted:
		denied = to != StatusVoided || !p.AllowVoidAccepted
	}
	if denied {
		return &shared.InvalidTransitionError{Entity: "quotation", From: string(from), To: string(to)}
	}
	return nil
}
