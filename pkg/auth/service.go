package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/config"
	"github.com/chatq-inc/chatq-engine/pkg/models"
)

// Common authentication errors.
var (
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrInvalidToken      = errors.New("invalid bearer token")
)

// Profile sources, reported for logging.
const (
	SourceToken   = "token"
	SourceSession = "session"
	SourceDefault = "default"
)

// ProfileResolver determines the access profile of a request.
type ProfileResolver interface {
	// Resolve checks, in order, a bearer token, the login session and the
	// configured defaults. A presented but invalid token is an error; an
	// absent one is not.
	Resolve(r *http.Request) (*models.AccessProfile, string, error)
}

type profileResolver struct {
	validator    TokenValidator
	store        sessions.Store
	sessionName  string
	defaultAuth  string
	defaultLevel int
	logger       *zap.Logger
}

// NewProfileResolver creates a ProfileResolver. store may be nil when no
// session secret is configured.
func NewProfileResolver(validator TokenValidator, store sessions.Store, cfg *config.AuthConfig, logger *zap.Logger) ProfileResolver {
	return &profileResolver{
		validator:    validator,
		store:        store,
		sessionName:  cfg.SessionName,
		defaultAuth:  cfg.DefaultAuthCode,
		defaultLevel: cfg.DefaultLevel,
		logger:       logger.Named("auth"),
	}
}

var _ ProfileResolver = (*profileResolver)(nil)

func (s *profileResolver) Resolve(r *http.Request) (*models.AccessProfile, string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			s.logger.Debug("Invalid Authorization header format",
				zap.String("path", r.URL.Path))
			return nil, "", ErrInvalidAuthFormat
		}

		claims, err := s.validator.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			s.logger.Debug("JWT validation failed",
				zap.Error(err),
				zap.String("path", r.URL.Path))
			return nil, "", ErrInvalidToken
		}
		return claims.Profile(s.defaultAuth, s.defaultLevel), SourceToken, nil
	}

	if profile, ok := s.fromSession(r); ok {
		return profile, SourceSession, nil
	}

	return &models.AccessProfile{
		AuthCode: s.defaultAuth,
		UserID:   "guest",
		Level:    s.defaultLevel,
	}, SourceDefault, nil
}

func (s *profileResolver) fromSession(r *http.Request) (*models.AccessProfile, bool) {
	if s.store == nil {
		return nil, false
	}

	session, err := s.store.Get(r, s.sessionName)
	if err != nil {
		// A cookie signed with another key decodes to a new empty session.
		s.logger.Debug("Ignoring unreadable session cookie", zap.Error(err))
		return nil, false
	}

	authCode, _ := session.Values[SessionKeyAuth].(string)
	if authCode == "" {
		return nil, false
	}

	profile := &models.AccessProfile{AuthCode: authCode, Level: s.defaultLevel}
	if level, ok := sessionLevel(session.Values[SessionKeyLevel]); ok {
		profile.Level = level
	}
	profile.UserID, _ = session.Values[SessionKeyUser].(string)
	return profile, true
}
