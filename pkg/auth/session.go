package auth

import (
	"crypto/sha256"
	"net/http"
	"strconv"

	"github.com/gorilla/sessions"
)

// Session value keys written by the login service.
const (
	SessionKeyAuth  = "AUTH"
	SessionKeyLevel = "LEVEL"
	SessionKeyUser  = "USER"
)

// NewSessionStore creates the cookie store used to read login sessions.
//
// The secret parameter is used to sign session cookies. It can be any
// passphrase; it is SHA-256 hashed to derive a 32-byte key. The secret must
// match the login service and be stable across restarts and replicas.
func NewSessionStore(secret string, cookie CookieSettings) *sessions.CookieStore {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   cookie.Domain,
		MaxAge:   8 * 60 * 60,
		HttpOnly: true,
		Secure:   cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// sessionLevel reads the level stored in a session. Login services written
// in other stacks may store it as a string.
func sessionLevel(v any) (int, bool) {
	switch level := v.(type) {
	case int:
		return level, true
	case int64:
		return int(level), true
	case float64:
		return int(level), true
	case string:
		n, err := strconv.Atoi(level)
		return n, err == nil
	default:
		return 0, false
	}
}
