package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/edu-materials-api/model"
	authutil "github.com/sahilchouksey/edu-materials-api/utils/auth"
	"github.com/sahilchouksey/edu-materials-api/utils/response"
	"github.com/sahilchouksey/edu-materials-api/utils/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
	Password2 string `json:"password2" validate:"required"`
	FirstName string `json:"first_name" validate:"omitempty,max=150"`
	LastName  string `json:"last_name" validate:"omitempty,max=150"`
	Phone     string `json:"phone" validate:"omitempty,max=35"`
	City      string `json:"city" validate:"omitempty,max=100"`
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register handles POST /users/register/
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.InvalidBody(c, err)
	}

	req.Email = NormalizeEmail(req.Email)

	fields := map[string]string{}
	if err := h.validator.ValidateStruct(req); err != nil {
		fields = validation.FormatValidationErrors(err)
	}

	if _, bad := fields["password"]; !bad && req.Password != "" {
		if req.Password != req.Password2 {
			fields["password"] = "Password fields didn't match."
		} else if problems := validation.ValidatePassword(req.Password, req.Email); len(problems) > 0 {
			fields["password"] = strings.Join(problems, " ")
		}
	}

	if len(fields) > 0 {
		return response.ValidationError(c, fields)
	}

	ctx := c.UserContext()

	var existing int64
	if err := h.db.WithContext(ctx).Model(&model.User{}).Where("email = ?", req.Email).Count(&existing).Error; err != nil {
		h.log.Error("failed to check existing user", zap.Error(err))
		return response.InternalServerError(c, "Failed to create user")
	}
	if existing > 0 {
		return response.Conflict(c, "User with this email already exists")
	}

	hashedPassword, err := authutil.HashPassword(req.Password)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	user := model.User{
		Email:        req.Email,
		PasswordHash: hashedPassword,
		FirstName:    validation.SanitizeString(req.FirstName),
		LastName:     validation.SanitizeString(req.LastName),
		Phone:        validation.SanitizeString(req.Phone),
		City:         validation.SanitizeString(req.City),
		IsActive:     true,
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		var students model.Group
		if err := tx.Where("name = ?", model.GroupStudents).First(&students).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		return tx.Model(&user).Association("Groups").Append(&students)
	})
	if err != nil {
		h.log.Error("failed to create user", zap.String("email", req.Email), zap.Error(err))
		return response.InternalServerError(c, "Failed to create user")
	}

	h.sendWelcome(user.Email, user.FirstName)

	return response.Created(c, NewUserResponse(&user))
}

// sendWelcome emails the new user without holding up the response
func (h *AuthHandler) sendWelcome(email, firstName string) {
	if h.mailer == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := h.mailer.SendWelcomeEmail(ctx, email, firstName); err != nil {
			h.log.Warn("failed to send welcome email", zap.String("email", email), zap.Error(err))
		}
	}()
}
