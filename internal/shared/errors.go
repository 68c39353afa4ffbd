package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate unique key or a blocked delete.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState indicates an operation the entity's current state forbids.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidTransition indicates a disallowed status transition.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrOverpayment indicates a payment larger than the outstanding balance.
	ErrOverpayment = errors.New("payment exceeds outstanding balance")
	// ErrUnauthorized indicates a missing or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller lacks a permission.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError carries per-field messages for client-correctable input errors.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Message: message, Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	msg := e.Message
	if msg == "" {
		msg = ErrValidation.Error()
	}
	return msg + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a duplicate unique value or a delete blocked by references.
type ConflictError struct {
	Entity string
	Field  string
	Value  string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Field, e.Value)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// InvalidStateError reports a business rule violated by the entity's current state.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string { return e.Message }

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// InvalidTransitionError reports a disallowed status change.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// OverpaymentError reports the amounts involved in a rejected payment.
type OverpaymentError struct {
	Total       decimal.Decimal
	AlreadyPaid decimal.Decimal
	Amount      decimal.Decimal
	Excess      decimal.Decimal
}

// NewOverpaymentError computes the excess of paid+amount over total.
func NewOverpaymentError(total, alreadyPaid, amount decimal.Decimal) *OverpaymentError {
	return &OverpaymentError{
		Total:       total,
		AlreadyPaid: alreadyPaid,
		Amount:      amount,
		Excess:      alreadyPaid.Add(amount).Sub(total),
	}
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds the outstanding balance by %s", e.Amount.StringFixed(2), e.Excess.StringFixed(2))
}

func (e *OverpaymentError) Is(target error) bool { return target == ErrOverpayment }

// Details exposes the amounts for API payloads.
func (e *OverpaymentError) Details() map[string]any {
	return map[string]any{
		"total":        e.Total.StringFixed(2),
		"already_paid": e.AlreadyPaid.StringFixed(2),
		"amount":       e.Amount.StringFixed(2),
		"excess":       e.Excess.StringFixed(2),
	}
}

// UserSafeMessage returns a message that is safe to show to API callers.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrOverpayment):
		return rootMessage(err)
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, ErrUnauthorized):
		return "authentication required"
	case errors.Is(err, ErrForbidden):
		return "you do not have permission to perform this action"
	default:
		return "internal server error"
	}
}

// rootMessage prefers the typed error's own message over wrapping prefixes.
func rootMessage(err error) string {
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		se *InvalidStateError
		te *InvalidTransitionError
		oe *OverpaymentError
	)
	switch {
	case errors.As(err, &ve):
		if ve.Message != "" {
			return ve.Message
		}
		return ve.Error()
	case errors.As(err, &nf):
		return nf.Error()
	case errors.As(err, &ce):
		return ce.Error()
	case errors.As(err, &se):
		return se.Error()
	case errors.As(err, &te):
		return te.Error()
	case errors.As(err, &oe):
		return oe.Error()
	}
	return err.Error()
}
