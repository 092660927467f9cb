// Package identity is the capability provider for caller identity. It trusts
// the role claim carried by the token verbatim; authorization questions are
// answered by exactly one policy function so role branching never spreads
// across call sites.
package identity

// Role is the caller role issued by the identity provider.
type Role string

const (
	RoleUser            Role = "user"
	RoleBuildingManager Role = "building_manager"
	RoleAdmin           Role = "admin"
	RoleAccountant      Role = "accountant"
)

// Roles lists every role the provider can issue.
var Roles = []Role{RoleUser, RoleBuildingManager, RoleAdmin, RoleAccountant}

// Valid reports whether the role is one the provider can issue.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleBuildingManager, RoleAdmin, RoleAccountant:
		return true
	}
	return false
}

// Action names a workflow operation for authorization purposes.
type Action string

const (
	ActionSubmitAddress       Action = "address.submit"
	ActionListOwnAddresses    Action = "address.list_own"
	ActionReviewAddresses     Action = "address.review"
	ActionManageBuildings     Action = "building.manage"
	ActionRequestRegistration Action = "registration.request"
	ActionListRegistrations   Action = "registration.list"
	ActionReviewRegistrations Action = "registration.review"
	ActionReconcile           Action = "reconcile.run"
)

// CanPerform is the single authorization policy. Admins can do everything a
// manager can; accountants are read-only spectators until accounting features
// exist.
func CanPerform(action Action, role Role) bool {
	switch action {
	case ActionSubmitAddress, ActionListOwnAddresses, ActionRequestRegistration:
		return role == RoleUser || role == RoleBuildingManager || role == RoleAdmin
	case ActionListRegistrations:
		return role.Valid()
	case ActionManageBuildings, ActionReviewRegistrations:
		return role == RoleBuildingManager || role == RoleAdmin
	case ActionReviewAddresses, ActionReconcile:
		return role == RoleAdmin
	}
	return false
}
