package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

func TestNewService(t *testing.T) {
	service := NewService("", 0)
	assert.Equal(t, []byte(DefaultSecret), service.jwtSecret)
	assert.Equal(t, DefaultExpiry, service.tokenExp)

	service = NewService("s3cret", time.Hour)
	assert.Equal(t, []byte("s3cret"), service.jwtSecret)
	assert.Equal(t, time.Hour, service.tokenExp)
}

func TestService_HashPassword(t *testing.T) {
	service := NewService("test", 0)

	password := "testpassword123"
	hash, err := service.HashPassword(password)

	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)

	assert.True(t, service.CheckPassword(password, hash))
	assert.False(t, service.CheckPassword("wrongpassword", hash))
}

func TestService_ValidateToken(t *testing.T) {
	service := NewService("test", 0)

	user := &models.User{ID: 12, Username: "testuser", Role: models.RoleAdmin}
	token, err := service.GenerateToken(user)
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(12), claims.UserID)
	assert.Equal(t, user.Username, claims.Username)
	assert.Equal(t, user.Role, claims.Role)
	assert.False(t, claims.IsDriver())

	_, err = service.ValidateToken("invalid-token")
	assert.Equal(t, ErrInvalidToken, err)

	_, err = service.ValidateToken("Bearer " + token)
	assert.NoError(t, err)
}

func TestService_DriverToken(t *testing.T) {
	service := NewService("test", 0)

	token, err := service.GenerateDriverToken(&models.Driver{ID: 7, Phone: "0501234567"})
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.IsDriver())
	assert.Equal(t, int64(7), claims.DriverID)
	assert.Zero(t, claims.UserID)
	assert.Equal(t, "0501234567", claims.Username)
}

func TestService_ValidateToken_WrongSecret(t *testing.T) {
	token, err := NewService("one", 0).GenerateToken(&models.User{ID: 1, Username: "u", Role: models.RoleViewer})
	require.NoError(t, err)

	_, err = NewService("two", 0).ValidateToken(token)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_ValidateToken_MissingID(t *testing.T) {
	service := NewService("test", 0)
	token, err := service.sign(jwt.MapClaims{"username": "x", "role": string(models.RoleDriver)})
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.Equal(t, ErrInvalidToken, err)
}

func TestService_ExpiredToken(t *testing.T) {
	service := NewService("test", time.Minute)
	issued := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return issued }

	token, err := service.GenerateToken(&models.User{ID: 1, Username: "u", Role: models.RoleAdmin})
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, issued.Add(time.Minute).Unix(), claims.Exp)

	service.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = service.ValidateToken(token)
	assert.Equal(t, ErrExpiredToken, err)
}

func TestService_ExtractTokenFromHeader(t *testing.T) {
	service := NewService("test", 0)

	extracted, err := service.ExtractTokenFromHeader("Bearer valid-token")
	assert.NoError(t, err)
	assert.Equal(t, "valid-token", extracted)

	for _, header := range []string{"", "InvalidFormat", "Bearer ", "Basic abc"} {
		_, err = service.ExtractTokenFromHeader(header)
		assert.Equal(t, ErrInvalidToken, err, header)
	}
}

func TestService_GenerateRefreshToken(t *testing.T) {
	service := NewService("test", 0)

	token, err := service.GenerateRefreshToken()
	assert.NoError(t, err)
	assert.Len(t, token, 44) // base64 of 32 bytes
}
