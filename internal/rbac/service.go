package rbac

import (
	"context"
	"strings"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Service resolves the permissions granted to a principal.
type Service struct {
	grants map[string][]string
}

// NewService constructs a Service from a role to permission table.
// A nil table falls back to DefaultGrants.
func NewService(grants map[string][]string) *Service {
	if grants == nil {
		grants = DefaultGrants()
	}
	normalized := make(map[string][]string, len(grants))
	for role, perms := range grants {
		normalized[strings.ToLower(role)] = normalizePermissions(perms)
	}
	return &Service{grants: normalized}
}

// EffectivePermissions returns the permissions of the principal's role.
func (s *Service) EffectivePermissions(_ context.Context, p shared.Principal) ([]string, error) {
	perms, ok := s.grants[strings.ToLower(p.Role)]
	if !ok {
		return []string{}, nil
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out, nil
}

// Can reports whether the principal holds perm.
func (s *Service) Can(ctx context.Context, p shared.Principal, perm string) bool {
	granted, err := s.EffectivePermissions(ctx, p)
	if err != nil {
		return false
	}
	return hasAnyPermission(granted, normalizePermissions([]string{perm}))
}
