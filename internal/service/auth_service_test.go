package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sentinnell/analytics_api/internal/config"
	"github.com/sentinnell/analytics_api/internal/utils"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(config.AuthConfig{Username: "curator", PasswordHash: string(hash), TokenTTL: time.Hour}, "secret")
}

func TestAuthService_Login(t *testing.T) {
	svc := newAuthService(t)

	token, err := svc.Login("curator", "hunter2")
	require.NoError(t, err)
	claims, err := utils.ValidateJWT("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "curator", claims.Subject)

	_, err = svc.Login("curator", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login("someone", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Disabled(t *testing.T) {
	svc := NewAuthService(config.AuthConfig{Username: "admin"}, "secret")
	assert.False(t, svc.Enabled())
	_, err := svc.Login("admin", "x")
	assert.ErrorIs(t, err, ErrLoginDisabled)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")))
}
