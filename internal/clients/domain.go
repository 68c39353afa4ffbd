// Package clients manages the CRM client records quotations are issued to.
package clients

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Status of a client relationship.
type Status string

const (
	StatusProspect Status = "prospect"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus defaults blank input to prospect and accepts the legacy Spanish names.
func ParseStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "prospect", "prospecto":
		return StatusProspect, true
	case "active", "activo":
		return StatusActive, true
	case "inactive", "inactivo":
		return StatusInactive, true
	}
	return "", false
}

// Client is a customer or prospect.
type Client struct {
	ID            int64      `json:"id"`
	Kind          string     `json:"kind"`
	Name          string     `json:"name"`
	TaxID         string     `json:"tax_id"`
	Phone         string     `json:"phone"`
	Email         string     `json:"email"`
	Address       string     `json:"address"`
	City          string     `json:"city"`
	Region        string     `json:"region"`
	Website       string     `json:"website"`
	Status        Status     `json:"status"`
	Sector        string     `json:"sector"`
	Notes         string     `json:"notes"`
	LastContactAt *time.Time `json:"last_contact_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// QuotationSummary is a quotation issued to the client.
type QuotationSummary struct {
	ID     int64           `json:"id"`
	Number string          `json:"number"`
	Date   shared.Date     `json:"date"`
	Total  decimal.Decimal `json:"total"`
	Status string          `json:"status"`
}

// Detail is a client with its active contacts, latest interactions and most
// recent quotations.
type Detail struct {
	Client
	Contacts     []Contact          `json:"contacts"`
	Interactions []Interaction      `json:"interactions"`
	Quotations   []QuotationSummary `json:"quotations"`
}

// ListFilter narrows List.
type ListFilter struct {
	Search string
	Status *Status
	Sector string
	Page   shared.PageRequest
}

// Input is the payload for create and update.
type Input struct {
	Kind    string `json:"kind" validate:"max=20"`
	Name    string `json:"name" validate:"required,max=255"`
	TaxID   string `json:"tax_id" validate:"required,max=50"`
	Phone   string `json:"phone" validate:"required,max=50"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"max=100"`
	Region  string `json:"region" validate:"max=100"`
	Website string `json:"website" validate:"omitempty,max=255"`
	Status  string `json:"status"`
	Sector  string `json:"sector" validate:"max=100"`
	Notes   string `json:"notes"`
}

func (in Input) toClient() (Client, error) {
	status, ok := ParseStatus(in.Status)
	if !ok {
		return Client{}, shared.NewValidationError("status", "must be one of: prospect, active, inactive")
	}
	c := Client{
		Kind:    strings.TrimSpace(in.Kind),
		Name:    strings.TrimSpace(in.Name),
		TaxID:   strings.TrimSpace(in.TaxID),
		Phone:   strings.TrimSpace(in.Phone),
		Email:   strings.TrimSpace(in.Email),
		Address: strings.TrimSpace(in.Address),
		City:    strings.TrimSpace(in.City),
		Region:  strings.TrimSpace(in.Region),
		Website: strings.TrimSpace(in.Website),
		Status:  status,
		Sector:  strings.TrimSpace(in.Sector),
		Notes:   in.Notes,
	}
	if c.Kind == "" {
		c.Kind = "company"
	}
	required := map[string]string{"name": c.Name, "tax_id": c.TaxID, "phone": c.Phone, "email": c.Email, "address": c.Address}
	fields := map[string]string{}
	for field, value := range required {
		if value == "" {
			fields[field] = "is required"
		}
	}
	if len(fields) > 0 {
		return Client{}, &shared.ValidationError{Message: "request validation failed", Fields: fields}
	}
	return c, nil
}
