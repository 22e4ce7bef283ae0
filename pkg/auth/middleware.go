package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates profile resolution to ProfileResolver.
type Middleware struct {
	resolver ProfileResolver
	logger   *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given ProfileResolver.
func NewMiddleware(resolver ProfileResolver, logger *zap.Logger) *Middleware {
	return &Middleware{
		resolver: resolver,
		logger:   logger,
	}
}

// ResolveProfile stores the caller's access profile in the request context.
// Anonymous callers get the default profile; an invalid bearer token is
// rejected with 401.
func (m *Middleware) ResolveProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile, source, err := m.resolver.Resolve(r)
		if err != nil {
			m.unauthorized(w, err.Error())
			return
		}

		m.logger.Debug("Resolved access profile",
			zap.String("auth", profile.AuthCode),
			zap.Int("level", profile.Level),
			zap.String("source", source))

		next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), profile)))
	})
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	})
}
