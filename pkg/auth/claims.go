// Package auth verifies bearer tokens and carries the authenticated
// principal through the request context.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the verified claims of a bearer token. The subject is the
// user ID every owned resource is scoped by.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the principal's identifier.
func (c *Claims) UserID() string {
	return c.Subject
}

var errMissingSubject = errors.New("token has no subject")

// VerifyToken parses and validates an HS256 bearer token.
func VerifyToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errMissingSubject
	}
	return claims, nil
}
