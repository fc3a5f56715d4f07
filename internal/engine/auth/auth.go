// Package auth maps roles onto the capabilities the API checks.
package auth

import (
	"fmt"

	"trayline/internal/domain"
)

const (
	CapPatientsManage = "patients.manage"
	CapChartsManage   = "charts.manage"
	CapUsersManage    = "users.manage"
	CapTasksRead      = "tasks.read"
	CapTaskCreate     = "task.create"
	CapTaskPrepare    = "task.prepare"
	CapTaskAssign     = "task.assign"
	CapTaskDeliver    = "task.deliver"
	CapAlertsRead     = "alerts.read"
	CapEventsRead     = "events.read"
)

// ForbiddenError reports a capability the actor's role does not grant.
type ForbiddenError struct {
	Capability string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: requires %s", e.Capability)
}

var grants = map[domain.Role][]string{
	domain.RolePantryStaff: {
		CapTasksRead,
		CapTaskPrepare,
		CapTaskAssign,
		CapAlertsRead,
	},
	domain.RoleDeliveryPersonnel: {
		CapTasksRead,
		CapTaskDeliver,
	},
}

// Allowed reports whether role grants the capability. Admins hold every
// capability.
func Allowed(role domain.Role, capability string) bool {
	if role == domain.RoleAdmin {
		return true
	}
	for _, c := range grants[role] {
		if c == capability {
			return true
		}
	}
	return false
}
