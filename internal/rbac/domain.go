package rbac

import (
	"sort"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// Permission names checked by the HTTP layer.
const (
	PermQuotationsView   = "quotations.view"
	PermQuotationsEdit   = "quotations.edit"
	PermQuotationsDelete = "quotations.delete"
	PermFinanceView      = "finance.view"
	PermFinanceEdit      = "finance.edit"
	PermPayablesView     = "payables.view"
	PermPayablesEdit     = "payables.edit"
	PermSuppliersView    = "suppliers.view"
	PermSuppliersEdit    = "suppliers.edit"
	PermClientsView      = "clients.view"
	PermClientsEdit      = "clients.edit"
	PermUsersManage      = "users.manage"
	PermJobsView         = "jobs.view"
)

// AllPermissions lists every permission known to the system.
var AllPermissions = []string{
	PermQuotationsView, PermQuotationsEdit, PermQuotationsDelete,
	PermFinanceView, PermFinanceEdit,
	PermPayablesView, PermPayablesEdit,
	PermSuppliersView, PermSuppliersEdit,
	PermClientsView, PermClientsEdit,
	PermUsersManage, PermJobsView,
}

// adminOnly are withheld from the regular user role.
var adminOnly = map[string]struct{}{
	PermQuotationsDelete: {},
	PermUsersManage:      {},
	PermJobsView:         {},
}

// DefaultGrants returns the built-in role to permission table.
func DefaultGrants() map[string][]string {
	user := make([]string, 0, len(AllPermissions))
	for _, p := range AllPermissions {
		if _, ok := adminOnly[p]; !ok {
			user = append(user, p)
		}
	}
	admin := append([]string(nil), AllPermissions...)
	sort.Strings(admin)
	sort.Strings(user)
	return map[string][]string{
		shared.RoleAdmin: admin,
		shared.RoleUser:  user,
	}
}
