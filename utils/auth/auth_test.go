package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sahilchouksey/edu-materials-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testManager() *JWTManager {
	return NewJWTManager(JWTConfig{
		Secret:        "test-secret",
		Expiry:        time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "edu-materials-test",
	})
}

func TestTokenPairRoundTrip(t *testing.T) {
	m := testManager()

	pair, err := m.GenerateTokenPair(42, "user@example.com", 3)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	access, err := m.ValidateToken(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), access.UserID)
	assert.Equal(t, "user@example.com", access.Email)
	assert.Equal(t, TokenTypeAccess, access.TokenType)
	assert.Equal(t, 3, access.TokenVersion)
	assert.NotEmpty(t, access.ID)

	refresh, err := m.ValidateToken(pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, refresh.TokenType)
	assert.NotEqual(t, access.ID, refresh.ID)
	assert.True(t, refresh.ExpiresAtTime().After(access.ExpiresAtTime()))
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	token, _, err := testManager().GenerateAccessToken(1, "a@example.com", 0)
	require.NoError(t, err)

	other := NewJWTManager(JWTConfig{Secret: "another-secret", Expiry: time.Hour})
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenExpired(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "test-secret", Expiry: -time.Minute})

	token, _, err := m.GenerateAccessToken(1, "a@example.com", 0)
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateTokenRejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{UserID: 1, TokenType: TokenTypeAccess}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = testManager().ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashAndVerifyPassword(t *testing.T) {
	Cost = bcrypt.MinCost
	t.Cleanup(func() { Cost = DefaultCost })

	hash, err := HashPassword("user123")
	require.NoError(t, err)
	assert.NotEqual(t, "user123", hash)

	assert.NoError(t, VerifyPassword(hash, "user123"))
	assert.ErrorIs(t, VerifyPassword(hash, "user124"), ErrPasswordMismatch)
}

func setupBlacklistDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Group{}, &model.User{}, &model.JWTTokenBlacklist{}))
	return db
}

func TestBlacklist(t *testing.T) {
	db := setupBlacklistDB(t)
	ctx := context.Background()
	svc := NewBlacklistService(db)

	user := model.User{Email: "user@example.com", PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(&user).Error)

	revoked, err := svc.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, svc.RevokeToken(ctx, "jti-1", user.ID, time.Now().Add(time.Hour), "logout"))
	require.NoError(t, svc.RevokeToken(ctx, "jti-1", user.ID, time.Now().Add(time.Hour), "logout"))

	revoked, err = svc.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, svc.RevokeToken(ctx, "jti-old", user.ID, time.Now().Add(-time.Hour), "refresh"))
	removed, err := svc.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	require.NoError(t, svc.RevokeAllUserTokens(ctx, user.ID))
	var reloaded model.User
	require.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.Equal(t, 1, reloaded.TokenVersion)
}
