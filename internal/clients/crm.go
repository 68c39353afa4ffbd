package clients

import (
	"strings"
	"time"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Contact is a person reachable at a client.
type Contact struct {
	ID        int64     `json:"id"`
	ClientID  int64     `json:"client_id"`
	Name      string    `json:"name"`
	Position  string    `json:"position"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	IsPrimary bool      `json:"is_primary"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactInput is the payload for adding a contact.
type ContactInput struct {
	Name      string `json:"name" validate:"required,max=255"`
	Position  string `json:"position" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=50"`
	Email     string `json:"email" validate:"omitempty,email,max=255"`
	IsPrimary bool   `json:"is_primary"`
}

func (in ContactInput) toContact(clientID int64) (Contact, error) {
	c := Contact{
		ClientID:  clientID,
		Name:      strings.TrimSpace(in.Name),
		Position:  strings.TrimSpace(in.Position),
		Phone:     strings.TrimSpace(in.Phone),
		Email:     strings.TrimSpace(in.Email),
		IsPrimary: in.IsPrimary,
		IsActive:  true,
	}
	if c.Name == "" {
		return Contact{}, shared.NewValidationError("name", "is required")
	}
	return c, nil
}

// InteractionKind is the channel of a client interaction.
type InteractionKind string

const (
	InteractionCall     InteractionKind = "call"
	InteractionWhatsApp InteractionKind = "whatsapp"
	InteractionEmail    InteractionKind = "email"
	InteractionVisit    InteractionKind = "visit"
	InteractionNote     InteractionKind = "note"
	InteractionMeeting  InteractionKind = "meeting"
)

const interactionKinds = "call, whatsapp, email, visit, note, meeting"

// ParseInteractionKind accepts the English names and the legacy Spanish ones.
func ParseInteractionKind(raw string) (InteractionKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "call", "llamada":
		return InteractionCall, true
	case "whatsapp":
		return InteractionWhatsApp, true
	case "email", "correo":
		return InteractionEmail, true
	case "visit", "visita":
		return InteractionVisit, true
	case "note", "nota":
		return InteractionNote, true
	case "meeting", "reunion", "reunión":
		return InteractionMeeting, true
	}
	return "", false
}

// Interaction is one entry of a client's contact history.
type Interaction struct {
	ID              int64           `json:"id"`
	ClientID        int64           `json:"client_id"`
	Kind            InteractionKind `json:"kind"`
	Description     string          `json:"description"`
	OccurredAt      time.Time       `json:"occurred_at"`
	QuotationID     *int64          `json:"quotation_id"`
	DurationMinutes int             `json:"duration_minutes"`
	Outcome         string          `json:"outcome"`
	UserID          *int64          `json:"user_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

// InteractionInput is the payload for recording an interaction.
type InteractionInput struct {
	Kind            string     `json:"kind" validate:"required"`
	Description     string     `json:"description" validate:"required"`
	OccurredAt      *time.Time `json:"occurred_at"`
	QuotationID     *int64     `json:"quotation_id" validate:"omitempty,gt=0"`
	DurationMinutes int        `json:"duration_minutes" validate:"gte=0,lte=1440"`
	Outcome         string     `json:"outcome" validate:"max=255"`
}

func (in InteractionInput) toInteraction(clientID int64, now time.Time) (Interaction, error) {
	kind, ok := ParseInteractionKind(in.Kind)
	if !ok {
		return Interaction{}, shared.NewValidationError("kind", "must be one of: "+interactionKinds)
	}
	it := Interaction{
		ClientID:        clientID,
		Kind:            kind,
		Description:     strings.TrimSpace(in.Description),
		OccurredAt:      now,
		QuotationID:     in.QuotationID,
		DurationMinutes: in.DurationMinutes,
		Outcome:         strings.TrimSpace(in.Outcome),
	}
	if it.Description == "" {
		return Interaction{}, shared.NewValidationError("description", "is required")
	}
	if it.DurationMinutes < 0 {
		return Interaction{}, shared.NewValidationError("duration_minutes", "must not be negative")
	}
	if in.OccurredAt != nil && !in.OccurredAt.IsZero() {
		it.OccurredAt = *in.OccurredAt
	}
	return it, nil
}

// InteractionFilter narrows Interactions.
type InteractionFilter struct {
	ClientID int64
	Kind     *InteractionKind
	Page     shared.PageRequest
}

// ExportRow is a client with its primary contact, flattened for export.
type ExportRow struct {
	Client
	PrimaryContact *Contact `json:"primary_contact"`
}
