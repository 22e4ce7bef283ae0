package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatq-inc/chatq-engine/pkg/config"
	"github.com/chatq-inc/chatq-engine/pkg/testhelpers"
)

const testSecret = "test-jwt-secret"

// createUnsignedToken creates an alg=none token (accepted in dev mode only).
func createUnsignedToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

func TestJWTValidator_HMAC(t *testing.T) {
	v, err := NewJWTValidator(&config.AuthConfig{EnableVerification: true, JWTSecret: testSecret})
	require.NoError(t, err)
	defer v.Close()

	claims, err := v.ValidateToken(testhelpers.GenerateTestJWT(t, testSecret, "kim", "SALES", 3))
	require.NoError(t, err)

	assert.Equal(t, "kim", claims.Subject)
	assert.Equal(t, "SALES", claims.AuthCode)
	require.NotNil(t, claims.Level)
	assert.Equal(t, 3, *claims.Level)
}

func TestJWTValidator_Rejects(t *testing.T) {
	v, err := NewJWTValidator(&config.AuthConfig{EnableVerification: true, JWTSecret: testSecret})
	require.NoError(t, err)
	defer v.Close()

	tests := []struct {
		name  string
		token string
	}{
		{name: "wrong secret", token: testhelpers.GenerateTestJWT(t, "other-secret", "kim", "SALES", 3)},
		{name: "unsigned", token: createUnsignedToken(t, map[string]any{"sub": "kim", "auth": "ADMIN"})},
		{name: "garbage", token: "not-a-valid-token"},
		{name: "empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestJWTValidator_Expired(t *testing.T) {
	v, err := NewJWTValidator(&config.AuthConfig{EnableVerification: true, JWTSecret: testSecret})
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "kim",
		"auth": "SALES",
		"exp":  time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = v.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTValidator_DevModeSkipsSignature(t *testing.T) {
	v, err := NewJWTValidator(&config.AuthConfig{EnableVerification: false})
	require.NoError(t, err)

	claims, err := v.ValidateToken(createUnsignedToken(t, map[string]any{"sub": "dev", "auth": "ADMIN", "level": 1}))
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", claims.AuthCode)
	assert.Equal(t, 1, *claims.Level)

	_, err = v.ValidateToken("not-a-valid-token")
	assert.Error(t, err)
}

func TestJWTValidator_HMACWithoutSecret(t *testing.T) {
	v, err := NewJWTValidator(&config.AuthConfig{EnableVerification: true})
	require.NoError(t, err)

	_, err = v.ValidateToken(testhelpers.GenerateTestJWT(t, testSecret, "kim", "SALES", 3))
	assert.Error(t, err)
}

func TestJWTValidator_JWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "test-key",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	defer server.Close()

	v, err := NewJWTValidator(&config.AuthConfig{EnableVerification: true, JWKSURL: server.URL})
	require.NoError(t, err)
	defer v.Close()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":   "lee",
		"auth":  "FINANCE",
		"level": 2,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	claims, err := v.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "FINANCE", claims.AuthCode)
	assert.Equal(t, 2, *claims.Level)

	// HMAC tokens are refused when only JWKS is configured.
	_, err = v.ValidateToken(testhelpers.GenerateTestJWT(t, testSecret, "kim", "SALES", 3))
	assert.Error(t, err)
}
