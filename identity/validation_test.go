package identity_test

import (
	"testing"

	"github.com/sethnakola1/healthcare-mvp-v2-sub000/identity"
	"github.com/stretchr/testify/require"
)

func TestValidateCredentials(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, identity.ValidateCredentials("a@b.com", "Passw0rd!"))
	})

	t.Run("missing email", func(t *testing.T) {
		err := identity.ValidateCredentials("", "Passw0rd!")
		require.Error(t, err)
		require.Contains(t, err.Error(), "email is required")
	})

	t.Run("malformed email", func(t *testing.T) {
		for _, email := range []string{"notanemail", "@b.com", "a@", "a b@c.com", "a@nodot"} {
			err := identity.ValidateCredentials(email, "Passw0rd!")
			require.Error(t, err, "email %q should be rejected", email)
		}
	})

	t.Run("missing password", func(t *testing.T) {
		err := identity.ValidateCredentials("a@b.com", "")
		require.Error(t, err)
		require.Contains(t, err.Error(), "password is required")
	})
}

func TestValidatePasswordStrength(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, identity.ValidatePasswordStrength("Passw0rd!"))
	})

	tests := []struct {
		name     string
		password string
		wantMsg  string
	}{
		{"too short", "P0w!", "at least 8 characters"},
		{"no uppercase", "passw0rd!", "uppercase"},
		{"no lowercase", "PASSW0RD!", "lowercase"},
		{"no number", "Password!", "number"},
		{"no special character", "Passw0rd", "special character"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := identity.ValidatePasswordStrength(tc.password)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestRegistrationValidate(t *testing.T) {
	valid := identity.Registration{
		Email:           "jane.doe@example.com",
		Password:        "Passw0rd!",
		ConfirmPassword: "Passw0rd!",
		FirstName:       "Jane",
		LastName:        "Doe",
		Role:            identity.RoleReceptionist,
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid.Validate())
	})

	t.Run("password mismatch", func(t *testing.T) {
		reg := valid
		reg.ConfirmPassword = "Different1!"
		err := reg.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "do not match")
	})

	t.Run("missing names", func(t *testing.T) {
		reg := valid
		reg.FirstName = "  "
		require.Error(t, reg.Validate())

		reg = valid
		reg.LastName = ""
		require.Error(t, reg.Validate())
	})

	t.Run("unknown role", func(t *testing.T) {
		reg := valid
		reg.Role = "WIZARD"
		err := reg.Validate()
		require.Error(t, err)
		require.Contains(t, err.Error(), "unknown role")
	})
}
