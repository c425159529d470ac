package credential

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinPasswordLength is the minimum password length, in characters, for new accounts.
const MinPasswordLength = 6

// SpecialCharacters is the set a new password must draw at least one character from.
const SpecialCharacters = `!@#$%^&*(),.?":{}|<>`

// Field names the form input a violation belongs to.
type Field string

const (
	FieldUsername     Field = "username"
	FieldPassword     Field = "password"
	FieldConfirmation Field = "confirmation"
)

// Violation is one failed rule, attached to the field that caused it.
type Violation struct {
	Field   Field
	Message string
}

// Result is the outcome of a validation call. Each call returns a fresh
// Result; callers must treat it as read-only.
type Result struct {
	Valid      bool
	Violations []Violation
}

// Errors returns the violation messages in the order they were found.
func (r Result) Errors() []string {
	out := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		out[i] = v.Message
	}
	return out
}

// For returns the messages attached to one field.
func (r Result) For(field Field) []string {
	var out []string
	for _, v := range r.Violations {
		if v.Field == field {
			out = append(out, v.Message)
		}
	}
	return out
}

// Error joins the messages so a Result can be shown as a single banner.
func (r Result) Error() string {
	return strings.Join(r.Errors(), "; ")
}

func newResult(violations []Violation) Result {
	return Result{Valid: len(violations) == 0, Violations: violations}
}

// ValidateUsername fails if the trimmed username is empty.
func ValidateUsername(s string) Result {
	if strings.TrimSpace(s) == "" {
		return newResult([]Violation{{FieldUsername, "username is required"}})
	}
	return newResult(nil)
}

// ValidatePassword checks the strength rule for new accounts. Every rule is
// evaluated so that all missing requirements are reported together. The
// letter and digit classes are ASCII only.
func ValidatePassword(s string) Result {
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
		if strings.ContainsRune(SpecialCharacters, r) {
			hasSpecial = true
		}
	}

	var v []Violation
	if utf8.RuneCountInString(s) < MinPasswordLength {
		v = append(v, Violation{FieldPassword, fmt.Sprintf("password must be at least %d characters", MinPasswordLength)})
	}
	if !hasUpper {
		v = append(v, Violation{FieldPassword, "password must contain an uppercase letter"})
	}
	if !hasLower {
		v = append(v, Violation{FieldPassword, "password must contain a lowercase letter"})
	}
	if !hasDigit {
		v = append(v, Violation{FieldPassword, "password must contain a number"})
	}
	if !hasSpecial {
		v = append(v, Violation{FieldPassword, fmt.Sprintf("password must contain a special character (%s)", SpecialCharacters)})
	}
	return newResult(v)
}

// ValidateConfirmation fails unless confirmation is byte-for-byte equal to password.
func ValidateConfirmation(password, confirmation string) Result {
	if password != confirmation {
		return newResult([]Violation{{FieldConfirmation, "passwords do not match"}})
	}
	return newResult(nil)
}

// ValidateSignup reports the first failing stage in the order username,
// password, confirmation. The password stage reports all of its rules.
func ValidateSignup(username, password, confirmation string) Result {
	if r := ValidateUsername(username); !r.Valid {
		return r
	}
	if r := ValidatePassword(password); !r.Valid {
		return r
	}
	return ValidateConfirmation(password, confirmation)
}

// ValidateLogin only requires both fields. Existing accounts may predate the
// password strength rule, and the backend decides whether they are valid.
func ValidateLogin(username, password string) Result {
	var v []Violation
	if strings.TrimSpace(username) == "" {
		v = append(v, Violation{FieldUsername, "username is required"})
	}
	if password == "" {
		v = append(v, Violation{FieldPassword, "password is required"})
	}
	return newResult(v)
}
