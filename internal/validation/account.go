package validation

import (
	"errors"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxEmailLength = 254
	maxNameLength  = 100
)

// ValidateEmail accepts a bare RFC 5322 address. Display-name forms such as
// "Alice <alice@example.com>" are rejected: the value is stored as-is.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("email address is required")
	}
	if len(email) > maxEmailLength {
		return errors.New("email address is too long (max 254 characters)")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return errors.New("invalid email address format")
	}

	_, domain, _ := strings.Cut(email, "@")
	if !strings.Contains(domain, ".") {
		return errors.New("invalid email address format")
	}
	return nil
}

// ValidateName checks the display name shown as "uploaded by".
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return errors.New("name is too long (max 100 characters)")
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return errors.New("name contains invalid characters")
		}
	}
	return nil
}

const (
	MinPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

var (
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong  = errors.New("password must not exceed 72 bytes")
	ErrPasswordWeak     = errors.New("password is too common, please choose a stronger one")
)

var weakPasswords = []string{"password", "123456", "qwerty", "letmein", "abc123"}

// ValidatePassword checks a new password. It must not contain the local part
// of the account's email.
func ValidatePassword(password, email string) error {
	if utf8.RuneCountInString(strings.TrimSpace(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}

	lower := strings.ToLower(password)
	for _, weak := range weakPasswords {
		if strings.Contains(lower, weak) {
			return ErrPasswordWeak
		}
	}
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	if len(local) >= 4 && strings.Contains(lower, local) {
		return ErrPasswordWeak
	}
	return nil
}
