// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

var exposeInternal atomic.Bool

// SetDebug controls whether 500 responses include the underlying error text.
func SetDebug(enabled bool) {
	exposeInternal.Store(enabled)
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	msg := shared.UserSafeMessage(err)
	var (
		validation  *shared.ValidationError
		overpayment *shared.OverpaymentError
	)
	switch {
	case errors.As(err, &validation):
		writeProblem(w, ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Detail: msg, Errors: validation.Fields})
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", msg)
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", msg)
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", msg)
	case errors.As(err, &overpayment):
		writeProblem(w, ProblemDetail{Title: "Overpayment", Status: http.StatusBadRequest, Detail: msg, Meta: overpayment.Details()})
	case errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusBadRequest, "Invalid Transition", msg)
	case errors.Is(err, shared.ErrInvalidState):
		Problem(w, http.StatusBadRequest, "Invalid State", msg)
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", msg)
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", msg)
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", msg)
	default:
		detail := msg
		if exposeInternal.Load() && err != nil {
			detail = err.Error()
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", detail)
	}
}

// IsClientError reports whether err maps to a 4xx response.
func IsClientError(err error) bool {
	for _, target := range []error{
		shared.ErrValidation, shared.ErrNotFound, shared.ErrConflict, shared.ErrInvalidState,
		shared.ErrInvalidTransition, shared.ErrOverpayment, shared.ErrUnauthorized,
		shared.ErrForbidden, shared.ErrInvalidCredentials,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Fail logs server-side failures with request attribution and writes the error response.
func Fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	if logger != nil && !IsClientError(err) {
		logger.Error(op, append(shared.LogAttrs(r.Context()), slog.Any("error", err))...)
	}
	RespondError(w, err)
}
