package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanPerform(t *testing.T) {
	tests := []struct {
		action  Action
		role    Role
		allowed bool
	}{
		{ActionSubmitAddress, RoleUser, true},
		{ActionSubmitAddress, RoleBuildingManager, true},
		{ActionSubmitAddress, RoleAdmin, true},
		{ActionSubmitAddress, RoleAccountant, false},

		{ActionReviewAddresses, RoleAdmin, true},
		{ActionReviewAddresses, RoleBuildingManager, false},
		{ActionReviewAddresses, RoleUser, false},

		{ActionManageBuildings, RoleBuildingManager, true},
		{ActionManageBuildings, RoleAdmin, true},
		{ActionManageBuildings, RoleUser, false},
		{ActionManageBuildings, RoleAccountant, false},

		{ActionRequestRegistration, RoleUser, true},
		{ActionRequestRegistration, RoleAccountant, false},

		{ActionListRegistrations, RoleUser, true},
		{ActionListRegistrations, RoleBuildingManager, true},
		{ActionListRegistrations, RoleAccountant, true},
		{ActionListRegistrations, Role("ghost"), false},

		{ActionReviewRegistrations, RoleBuildingManager, true},
		{ActionReviewRegistrations, RoleAdmin, true},
		{ActionReviewRegistrations, RoleUser, false},

		{ActionReconcile, RoleAdmin, true},
		{ActionReconcile, RoleBuildingManager, false},

		{Action("unknown.action"), RoleAdmin, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.action)+"/"+string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanPerform(tt.action, tt.role))
		})
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range Roles {
		assert.True(t, role.Valid(), string(role))
	}
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}
