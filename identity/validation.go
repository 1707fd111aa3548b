package identity

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidateCredentials validates login credentials before any network call.
func ValidateCredentials(email, password string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// ValidateEmail checks a basic address shape. The backend remains
// authoritative; this only catches obviously malformed input.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("invalid email format")
	}
	if !strings.Contains(email[at:], ".") {
		return fmt.Errorf("invalid email format")
	}
	if strings.ContainsAny(email, " \t\n\r") {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePasswordStrength checks if a password meets the policy:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
// - Contains at least one special character
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper   bool
		hasLower   bool
		hasNumber  bool
		hasSpecial bool
	)

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}
	if !hasSpecial {
		return fmt.Errorf("password must contain at least one special character")
	}

	return nil
}

// Registration is a new-account request. Client-side validation is defense
// in depth; the backend is authoritative.
type Registration struct {
	Email           string   `json:"email"`
	Password        string   `json:"password"`
	ConfirmPassword string   `json:"-"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Phone           string   `json:"phone,omitempty"`
	Role            RoleType `json:"role"`
}

// Validate checks required fields, email shape, password policy and
// confirm-password agreement.
func (r Registration) Validate() error {
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if err := ValidatePasswordStrength(r.Password); err != nil {
		return err
	}
	if r.ConfirmPassword != "" && r.ConfirmPassword != r.Password {
		return fmt.Errorf("passwords do not match")
	}
	if strings.TrimSpace(r.FirstName) == "" {
		return fmt.Errorf("first name is required")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return fmt.Errorf("last name is required")
	}
	if !r.Role.IsValid() {
		return fmt.Errorf("unknown role %q", string(r.Role))
	}
	return nil
}
