package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mtss-api/internal/models"
	appErrors "github.com/noah-isme/mtss-api/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "identity", Audience: []string{"mtss"}})
	token, expiresAt, err := svc.Issue(models.Actor{UserID: "user-1", TenantID: "tenant-1", Role: models.RoleCoordinator})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", claims.TenantID)
	assert.Equal(t, models.RoleCoordinator, claims.Role)
}

func TestTokenServiceRejectsExpired(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", TTL: time.Minute})
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := svc.Issue(models.Actor{UserID: "user-1", TenantID: "tenant-1", Role: models.RoleTeacher})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}

func TestTokenServiceRejectsWrongAudienceAndSecret(t *testing.T) {
	issuer := NewTokenService(TokenConfig{Secret: "secret", Audience: []string{"other"}})
	token, _, err := issuer.Issue(models.Actor{UserID: "u", TenantID: "t", Role: models.RoleAdmin})
	require.NoError(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "secret", Audience: []string{"mtss"}}).ValidateToken(token)
	assert.Error(t, err)
	_, err = NewTokenService(TokenConfig{Secret: "different"}).ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenServiceRequiresTenantAndRole(t *testing.T) {
	sign := func(claims *models.JWTClaims) string {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}
	svc := NewTokenService(TokenConfig{Secret: "secret"})

	_, err := svc.ValidateToken(sign(&models.JWTClaims{UserID: "u", Role: models.RoleAdmin}))
	assert.Error(t, err)
	_, err = svc.ValidateToken(sign(&models.JWTClaims{UserID: "u", TenantID: "t", Role: "STUDENT"}))
	assert.Error(t, err)
}
