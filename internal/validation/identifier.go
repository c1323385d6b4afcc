// Package validation holds the identifier and code rules shared by request
// binding and the services.
package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

var validate = validator.New()

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips spaces, dashes and parentheses from a phone number
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

// IsEmail reports whether s is a syntactically valid email address
func IsEmail(s string) bool {
	return validate.Var(s, "required,email,max=255") == nil
}

// IsPhone reports whether s is an E.164 phone number
func IsPhone(s string) bool {
	return validate.Var(s, "required,e164") == nil
}

// IsOTPCode reports whether s looks like a one-time code
func IsOTPCode(s string) bool {
	return validate.Var(s, "required,numeric,min=4,max=10") == nil
}

// Classify normalizes an identifier and reports which channel it belongs to
func Classify(identifier string) (string, domain.IdentifierType, error) {
	if strings.Contains(identifier, "@") {
		email := NormalizeEmail(identifier)
		if IsEmail(email) {
			return email, domain.IdentifierEmail, nil
		}
		return "", "", domain.ErrInvalidIdentifier
	}
	phone := NormalizePhone(identifier)
	if IsPhone(phone) {
		return phone, domain.IdentifierPhone, nil
	}
	return "", "", domain.ErrInvalidIdentifier
}

// Normalize applies the channel's normalization to identifier
func Normalize(identifier string, t domain.IdentifierType) string {
	if t == domain.IdentifierEmail {
		return NormalizeEmail(identifier)
	}
	return NormalizePhone(identifier)
}

// RegisterBindings installs the identifier and otpcode tags on v, the
// validator gin uses for request binding.
func RegisterBindings(v *validator.Validate) error {
	if err := v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		_, _, err := Classify(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}
	return v.RegisterValidation("otpcode", func(fl validator.FieldLevel) bool {
		return IsOTPCode(fl.Field().String())
	})
}
