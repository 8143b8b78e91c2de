package auth

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/edu-materials-api/model"
	authutil "github.com/sahilchouksey/edu-materials-api/utils/auth"
	"github.com/sahilchouksey/edu-materials-api/utils/middleware"
	"github.com/sahilchouksey/edu-materials-api/utils/response"
	"github.com/sahilchouksey/edu-materials-api/utils/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TokenRequest is the body of POST /users/token/
type TokenRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the body of POST /users/token/refresh/
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// Token exchanges credentials for an access/refresh pair
func (h *AuthHandler) Token(c *fiber.Ctx) error {
	var req TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return response.InvalidBody(c, err)
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	ctx := c.UserContext()
	ip := c.IP()

	var user model.User
	if err := h.db.WithContext(ctx).Where("email = ?", NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			h.log.Error("failed to load user for login", zap.Error(err))
			return response.InternalServerError(c, "Failed to authenticate")
		}
		_ = h.bruteForceProtection.RecordFailedAttempt(ctx, ip)
		return response.Unauthorized(c, "No active account found with the given credentials")
	}

	if err := authutil.VerifyPassword(user.PasswordHash, req.Password); err != nil || !user.IsActive {
		_ = h.bruteForceProtection.RecordFailedAttempt(ctx, ip)
		return response.Unauthorized(c, "No active account found with the given credentials")
	}

	_ = h.bruteForceProtection.RecordSuccessfulAttempt(ctx, ip)

	now := time.Now()
	if err := h.db.WithContext(ctx).Model(&user).UpdateColumn("last_login", now).Error; err != nil {
		h.log.Warn("failed to update last login", zap.Uint("user_id", user.ID), zap.Error(err))
	}

	pair, err := h.jwtManager.GenerateTokenPair(user.ID, user.Email, user.TokenVersion)
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		return response.InternalServerError(c, "Failed to generate tokens")
	}

	return response.Success(c, pair)
}

// Refresh rotates a refresh token. The presented refresh token is blacklisted.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.InvalidBody(c, err)
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	ctx := c.UserContext()

	claims, err := h.jwtManager.ValidateToken(req.Refresh)
	if err != nil || claims.TokenType != authutil.TokenTypeRefresh {
		return response.Unauthorized(c, "Token is invalid or expired")
	}

	revoked, err := h.blacklistService.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check token status")
	}
	if revoked {
		return response.Unauthorized(c, "Token is blacklisted")
	}

	var user model.User
	if err := h.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		return response.Unauthorized(c, "Token is invalid or expired")
	}
	if !user.IsActive || user.TokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Token is invalid or expired")
	}

	if err := h.blacklistService.RevokeToken(ctx, claims.ID, user.ID, claims.ExpiresAtTime(), "refresh"); err != nil {
		h.log.Error("failed to blacklist refresh token", zap.Error(err))
		return response.InternalServerError(c, "Failed to refresh token")
	}

	pair, err := h.jwtManager.GenerateTokenPair(user.ID, user.Email, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate tokens")
	}

	return response.Success(c, pair)
}

// Logout blacklists the access token used for the request
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	if err := h.blacklistService.RevokeToken(c.UserContext(), claims.ID, claims.UserID, claims.ExpiresAtTime(), "logout"); err != nil {
		h.log.Error("failed to revoke token", zap.Error(err))
		return response.InternalServerError(c, "Failed to logout")
	}

	return response.SuccessWithMessage(c, "Successfully logged out", nil)
}
