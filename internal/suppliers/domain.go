// Package suppliers manages the supplier directory that payables are owed to.
package suppliers

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Kind of supplier.
type Kind string

const (
	KindCompany            Kind = "company"
	KindPerson             Kind = "person"
	KindExternalTechnician Kind = "external_technician"
	KindFreelancer         Kind = "freelancer"
)

// ParseKind defaults blank input to company and accepts the legacy Spanish names.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "company", "empresa":
		return KindCompany, true
	case "person", "persona_natural":
		return KindPerson, true
	case "external_technician", "tecnico_externo":
		return KindExternalTechnician, true
	case "freelancer":
		return KindFreelancer, true
	}
	return "", false
}

// Status of a supplier.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus defaults blank input to active.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "active", "activo":
		return StatusActive, true
	case "inactive", "inactivo":
		return StatusInactive, true
	}
	return "", false
}

// AccountType of a supplier bank account.
type AccountType string

const (
	AccountSavings  AccountType = "savings"
	AccountChecking AccountType = "checking"
)

// ParseAccountType returns nil for blank input.
func ParseAccountType(raw string) (*AccountType, bool) {
	var t AccountType
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return nil, true
	case "savings", "ahorros":
		t = AccountSavings
	case "checking", "corriente":
		t = AccountChecking
	default:
		return nil, false
	}
	return &t, true
}

// Supplier is a vendor the business buys from.
type Supplier struct {
	ID            int64        `json:"id"`
	Kind          Kind         `json:"kind"`
	Name          string       `json:"name"`
	TaxID         string       `json:"tax_id"`
	Phone         string       `json:"phone"`
	Email         string       `json:"email"`
	Address       string       `json:"address"`
	City          string       `json:"city"`
	Region        string       `json:"region"`
	Bank          string       `json:"bank"`
	AccountType   *AccountType `json:"account_type"`
	AccountNumber string       `json:"account_number"`
	Category      string       `json:"category"`
	Status        Status       `json:"status"`
	Notes         string       `json:"notes"`
	UserID        *int64       `json:"user_id"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Balance summarises what is still owed to a supplier.
type Balance struct {
	OpenPayables int             `json:"open_payables"`
	Pending      decimal.Decimal `json:"pending"`
	Overdue      decimal.Decimal `json:"overdue"`
}

// Detail is a supplier with its outstanding balance.
type Detail struct {
	Supplier
	Balance Balance `json:"balance"`
}

// ListFilter narrows List.
type ListFilter struct {
	Search   string
	Kind     *Kind
	Status   *Status
	Category string
	Page     shared.PageRequest
}

// Input is the payload for create and update.
type Input struct {
	Kind          string `json:"kind"`
	Name          string `json:"name" validate:"required,max=255"`
	TaxID         string `json:"tax_id" validate:"required,max=50"`
	Phone         string `json:"phone" validate:"max=50"`
	Email         string `json:"email" validate:"omitempty,email,max=255"`
	Address       string `json:"address"`
	City          string `json:"city" validate:"max=100"`
	Region        string `json:"region" validate:"max=100"`
	Bank          string `json:"bank" validate:"max=100"`
	AccountType   string `json:"account_type"`
	AccountNumber string `json:"account_number" validate:"max=50"`
	Category      string `json:"category" validate:"max=100"`
	Status        string `json:"status"`
	Notes         string `json:"notes"`
}

func (in Input) toSupplier() (Supplier, error) {
	kind, ok := ParseKind(in.Kind)
	if !ok {
		return Supplier{}, shared.NewValidationError("kind", "must be one of: company, person, external_technician, freelancer")
	}
	status, ok := ParseStatus(in.Status)
	if !ok {
		return Supplier{}, shared.NewValidationError("status", "must be active or inactive")
	}
	accountType, ok := ParseAccountType(in.AccountType)
	if !ok {
		return Supplier{}, shared.NewValidationError("account_type", "must be savings or checking")
	}
	s := Supplier{
		Kind:          kind,
		Name:          strings.TrimSpace(in.Name),
		TaxID:         strings.TrimSpace(in.TaxID),
		Phone:         strings.TrimSpace(in.Phone),
		Email:         strings.TrimSpace(in.Email),
		Address:       strings.TrimSpace(in.Address),
		City:          strings.TrimSpace(in.City),
		Region:        strings.TrimSpace(in.Region),
		Bank:          strings.TrimSpace(in.Bank),
		AccountType:   accountType,
		AccountNumber: strings.TrimSpace(in.AccountNumber),
		Category:      strings.TrimSpace(in.Category),
		Status:        status,
		Notes:         in.Notes,
	}
	if s.Name == "" {
		return Supplier{}, shared.NewValidationError("name", "is required")
	}
	if s.TaxID == "" {
		return Supplier{}, shared.NewValidationError("tax_id", "is required")
	}
	return s, nil
}
