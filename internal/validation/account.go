package validation

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Account form errors. Messages are shown to the user as-is.
var (
	ErrNameRequired     = errors.New("name is required")
	ErrNameTooLong      = errors.New("name is too long (max 100 characters)")
	ErrEmailRequired    = errors.New("email address is required")
	ErrEmailTooLong     = errors.New("email address is too long (max 254 characters)")
	ErrEmailInvalid     = errors.New("invalid email address format")
	ErrPasswordTooShort = errors.New("password must be at least 12 characters")
	ErrPasswordTooLong  = errors.New("password must not exceed 72 bytes")
	ErrPasswordCommon   = errors.New("password is too common, please choose a stronger one")
)

const (
	maxNameLength     = 100
	maxEmailLength    = 254
	minPasswordLength = 12
	maxPasswordBytes  = 72 // bcrypt truncates beyond this
)

var commonPasswordParts = []string{
	"password", "123456", "qwerty", "admin", "letmein",
	"welcome", "monkey", "dragon", "master", "sunshine",
	"senha", "vetlink",
}

func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// NormalizeEmail lower-cases and trims an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks length and RFC 5322 syntax; the address must be bare,
// without a display name.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}
	if len(email) > maxEmailLength {
		return ErrEmailTooLong
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrEmailInvalid
	}
	return nil
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	lower := strings.ToLower(password)
	for _, part := range commonPasswordParts {
		if strings.Contains(lower, part) {
			return ErrPasswordCommon
		}
	}
	return nil
}
