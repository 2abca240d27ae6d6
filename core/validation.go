package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Minimum lengths the registration and password forms ask for.
const (
	minUsernameLen = 4
	minPasswordLen = 4
)

// These checks only give early feedback in forms. The back-end applies its own
// rules and its answer wins.

// ValidateLogin requires both fields.
func ValidateLogin(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return validationError("Username is required")
	}
	if password == "" {
		return validationError("Password is required")
	}
	return nil
}

// ValidateSignup checks lengths and that the confirmation matches.
func ValidateSignup(username, password, confirmation string) error {
	if len(strings.TrimSpace(username)) < minUsernameLen {
		return validationError("Username must be at least 4 characters")
	}
	if len(password) < minPasswordLen {
		return validationError("Password must be at least 4 characters")
	}
	if password != confirmation {
		return validationError("Passwords do not match")
	}
	return nil
}

// ValidatePasswordChange checks the new password and its confirmation.
// rejectReuse additionally refuses a new password equal to the old one.
func ValidatePasswordChange(oldPassword, newPassword, confirmation string, rejectReuse bool) error {
	if oldPassword == "" {
		return validationError("Current password is required")
	}
	if len(newPassword) < minPasswordLen {
		return validationError("New password must be at least 4 characters")
	}
	if newPassword != confirmation {
		return validationError("Passwords do not match")
	}
	if rejectReuse && newPassword == oldPassword {
		return validationError("New password must differ from the current one")
	}
	return nil
}

// ParseAmount reads a strictly positive monetary amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, validationError("Amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, validationError("Amount must be a number")
	}
	if !d.IsPositive() {
		return decimal.Zero, validationError("Amount must be greater than zero")
	}
	return d, nil
}
