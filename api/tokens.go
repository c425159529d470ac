package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jmcleod/sessiongate/internal/util"
	"github.com/jmcleod/sessiongate/internal/uuid"
)

const tokenIssuerName = "sessiongate"

var errInvalidToken = errors.New("invalid token")

// tokenIssuer mints and verifies HS256 access tokens.
type tokenIssuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func newTokenIssuer(ttl time.Duration) (*tokenIssuer, error) {
	key, err := util.NewKey()
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	return &tokenIssuer{key: key, ttl: ttl, now: time.Now}, nil
}

func (ti *tokenIssuer) issue(username string) (string, error) {
	now := ti.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuerName,
		Subject:   username,
		ID:        uuid.New(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
}

// verify returns the username the token was issued to.
func (ti *tokenIssuer) verify(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return ti.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", errInvalidToken)
	}
	return claims.Subject, nil
}
