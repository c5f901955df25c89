package service

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/sentinnell/analytics_api/internal/config"
	"github.com/sentinnell/analytics_api/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginDisabled      = errors.New("login is not configured")
)

// AuthService issues write tokens to the configured curator.
type AuthService struct {
	username     string
	passwordHash []byte
	secret       string
	ttl          time.Duration
}

func NewAuthService(cfg config.AuthConfig, secret string) *AuthService {
	return &AuthService{
		username:     cfg.Username,
		passwordHash: []byte(cfg.PasswordHash),
		secret:       secret,
		ttl:          cfg.TokenTTL,
	}
}

// Enabled reports whether Login can succeed at all.
func (s *AuthService) Enabled() bool {
	return len(s.passwordHash) > 0 && s.secret != ""
}

func (s *AuthService) Login(username, password string) (string, error) {
	if !s.Enabled() {
		return "", ErrLoginDisabled
	}
	log.Debug().Str("username", username).Msg("Login attempt")

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	// Verify password using bcrypt even for unknown users so timing is uniform
	pwErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !userOK || pwErr != nil {
		log.Warn().Str("username", username).Msg("Login failed")
		return "", ErrInvalidCredentials
	}

	token, err := utils.GenerateJWT(s.secret, username, s.ttl)
	if err != nil {
		return "", err
	}
	log.Info().Str("username", username).Msg("Login successful")
	return token, nil
}

// HashPassword returns the bcrypt hash to put in ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
