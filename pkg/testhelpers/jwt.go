// Package testhelpers provides utilities for testing chatq-engine components.
package testhelpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateTestJWT signs an HS256 token carrying the access-profile claims
// read by the auth package.
func GenerateTestJWT(t *testing.T, secret, sub, authCode string, level int) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   sub,
		"auth":  authCode,
		"level": level,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

// GenerateTestJWTWithBearer returns a token with the "Bearer " prefix for the Authorization header.
func GenerateTestJWTWithBearer(t *testing.T, secret, sub, authCode string, level int) string {
	t.Helper()
	return "Bearer " + GenerateTestJWT(t, secret, sub, authCode, level)
}
