package identity_test

import (
	"testing"

	"github.com/sethnakola1/healthcare-mvp-v2-sub000/identity"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	t.Run("known role", func(t *testing.T) {
		role, err := identity.ParseRole("DOCTOR")
		require.NoError(t, err)
		require.Equal(t, identity.RoleDoctor, role)
	})

	t.Run("surrounding whitespace is tolerated", func(t *testing.T) {
		role, err := identity.ParseRole(" NURSE ")
		require.NoError(t, err)
		require.Equal(t, identity.RoleNurse, role)
	})

	t.Run("unknown role is an error, not a fallback", func(t *testing.T) {
		_, err := identity.ParseRole("WIZARD")
		require.Error(t, err)
		require.Contains(t, err.Error(), "unknown role")
	})

	t.Run("empty role is an error", func(t *testing.T) {
		_, err := identity.ParseRole("")
		require.Error(t, err)
	})
}

func TestRoleDisplayName(t *testing.T) {
	t.Run("single word", func(t *testing.T) {
		require.Equal(t, "Doctor", identity.RoleDoctor.DisplayName())
	})

	t.Run("two words", func(t *testing.T) {
		require.Equal(t, "Tech Advisor", identity.RoleTechAdvisor.DisplayName())
		require.Equal(t, "Hospital Admin", identity.RoleHospitalAdmin.DisplayName())
	})

	t.Run("unknown role is normalized verbatim", func(t *testing.T) {
		require.Equal(t, "Ward Clerk", identity.RoleType("WARD_CLERK").DisplayName())
	})
}

func TestIdentityHelpers(t *testing.T) {
	id := identity.Identity{
		UserID:    "user-1",
		Email:     "jane.doe@example.com",
		FirstName: "Jane",
		LastName:  "Doe",
		Role:      identity.RoleDoctor,
	}

	require.Equal(t, "Jane Doe", id.FullName())
	require.Equal(t, "Doctor", id.RoleDisplayName())
}

func TestRoleCan(t *testing.T) {
	t.Run("doctor manages patients but not billing", func(t *testing.T) {
		require.True(t, identity.RoleDoctor.Can(identity.ActionManagePatients))
		require.False(t, identity.RoleDoctor.Can(identity.ActionManageBilling))
	})

	t.Run("billing specialist", func(t *testing.T) {
		require.True(t, identity.RoleBillingSpecialist.Can(identity.ActionManageBilling))
		require.False(t, identity.RoleBillingSpecialist.Can(identity.ActionManageUsers))
	})

	t.Run("super admin has everything", func(t *testing.T) {
		require.True(t, identity.RoleSuperAdmin.Can(identity.ActionSystemConfig))
		require.True(t, identity.RoleSuperAdmin.Can(identity.ActionManageHospitals))
	})

	t.Run("unknown role is permitted nothing", func(t *testing.T) {
		require.False(t, identity.RoleType("WIZARD").Can(identity.ActionViewPatients))
	})
}
