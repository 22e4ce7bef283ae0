// Package auth resolves the caller's access profile (auth code and level)
// from a bearer token, a session cookie, or the configured guest defaults.
// Login itself happens elsewhere; this package only reads what it issued.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chatq-inc/chatq-engine/pkg/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ProfileKey is the context key for the resolved access profile.
	ProfileKey contextKey = "profile"
)

// Claims are the JWT claims issued by the login service.
type Claims struct {
	jwt.RegisteredClaims
	AuthCode string `json:"auth,omitempty"`
	Level    *int   `json:"level,omitempty"` // nil when the issuer omitted it
	Name     string `json:"name,omitempty"`
}

// Profile converts claims into an access profile. Missing fields fall back
// to the given defaults.
func (c *Claims) Profile(defaultAuth string, defaultLevel int) *models.AccessProfile {
	profile := &models.AccessProfile{
		AuthCode: c.AuthCode,
		UserID:   c.Subject,
		Level:    defaultLevel,
	}
	if profile.AuthCode == "" {
		profile.AuthCode = defaultAuth
	}
	if c.Level != nil {
		profile.Level = *c.Level
	}
	return profile
}

// WithProfile returns a copy of ctx carrying profile.
func WithProfile(ctx context.Context, profile *models.AccessProfile) context.Context {
	return context.WithValue(ctx, ProfileKey, profile)
}

// ProfileFromContext returns the profile stored by the middleware, or the
// guest profile when there is none.
func ProfileFromContext(ctx context.Context) *models.AccessProfile {
	if profile, ok := ctx.Value(ProfileKey).(*models.AccessProfile); ok && profile != nil {
		return profile
	}
	return models.GuestProfile()
}
