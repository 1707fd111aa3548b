package identity

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// RoleType represents a user role in the healthcare administration system.
// The set is closed: a role string from the backend that is not listed here
// is a decode error, never coerced into a default.
type RoleType string

const (
	RoleSuperAdmin        RoleType = "SUPER_ADMIN"        // Platform-wide administration
	RoleTechAdvisor       RoleType = "TECH_ADVISOR"       // Technical support and configuration
	RoleHospitalAdmin     RoleType = "HOSPITAL_ADMIN"     // Manages a single hospital's staff and settings
	RoleDoctor            RoleType = "DOCTOR"             // Clinical staff with patient access
	RoleNurse             RoleType = "NURSE"              // Clinical staff with limited patient access
	RoleReceptionist      RoleType = "RECEPTIONIST"       // Front-desk scheduling
	RoleBillingSpecialist RoleType = "BILLING_SPECIALIST" // Billing and invoicing
	RolePatient           RoleType = "PATIENT"            // Self-service portal access
)

// Roles lists every recognized role.
var Roles = []RoleType{
	RoleSuperAdmin,
	RoleTechAdvisor,
	RoleHospitalAdmin,
	RoleDoctor,
	RoleNurse,
	RoleReceptionist,
	RoleBillingSpecialist,
	RolePatient,
}

// ParseRole validates a raw role string against the closed role set.
func ParseRole(s string) (RoleType, error) {
	role := RoleType(strings.TrimSpace(s))
	for _, r := range Roles {
		if r == role {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// IsValid reports whether the role is part of the closed set.
func (r RoleType) IsValid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// DisplayName renders a role for display ("TECH_ADVISOR" -> "Tech Advisor").
// Unknown roles get the same normalized rendering; the result is cosmetic
// only and never used for authorization decisions.
func (r RoleType) DisplayName() string {
	words := strings.FieldsFunc(string(r), func(c rune) bool {
		return c == '_' || c == '-' || c == ' '
	})
	for i, w := range words {
		w = strings.ToLower(w)
		runes := []rune(w)
		if len(runes) > 0 {
			runes[0] = unicode.ToUpper(runes[0])
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// Identity is the authenticated user record as confirmed by the backend.
type Identity struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Role       RoleType  `json:"role"`
	HospitalID string    `json:"hospital_id,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	LastLogin  time.Time `json:"last_login,omitempty"`
}

// FullName returns the user's display name.
func (i Identity) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// RoleDisplayName returns the cosmetic rendering of the user's role.
func (i Identity) RoleDisplayName() string {
	return i.Role.DisplayName()
}
