package shared

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5/middleware"
)

// Role names understood by the access gate.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID  int64
	Email   string
	Name    string
	Role    string
	TokenID string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// ActorID returns the caller's user id, or zero for anonymous contexts.
func ActorID(ctx context.Context) int64 {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}

// LogAttrs returns request-scoped attributes for log attribution.
func LogAttrs(ctx context.Context) []any {
	attrs := make([]any, 0, 3)
	if id := middleware.GetReqID(ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if p, ok := PrincipalFromContext(ctx); ok {
		attrs = append(attrs, slog.Int64("actor_id", p.UserID), slog.String("actor_email", p.Email))
	}
	return attrs
}
