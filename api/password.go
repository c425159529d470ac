package api

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 6
	// passwordSymbols is the server's accepted symbol set. It differs from
	// the client's form rule; the server has the final say.
	passwordSymbols = "!.@#$%^&*()_[]"
	// bcryptMaxLen is the longest input bcrypt accepts.
	bcryptMaxLen = 72
)

// passwordStrong applies the server-side strength rule.
func passwordStrong(password string) bool {
	var upper, lower, digit, symbol bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			upper = true
		case unicode.IsLower(ch):
			lower = true
		case unicode.IsDigit(ch):
			digit = true
		case strings.ContainsRune(passwordSymbols, ch):
			symbol = true
		}
	}
	return len([]rune(password)) >= minPasswordLen && upper && lower && digit && symbol
}

func hashPassword(password string, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
