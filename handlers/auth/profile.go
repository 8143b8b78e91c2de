package auth

import (
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/edu-materials-api/utils/middleware"
	"github.com/sahilchouksey/edu-materials-api/utils/response"
	"github.com/sahilchouksey/edu-materials-api/utils/validation"
	"go.uber.org/zap"
)

// MaxAvatarSize is the largest accepted avatar upload
const MaxAvatarSize = 5 << 20

// UpdateProfileRequest is the body of PATCH /users/profile/. Absent fields
// are left unchanged.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Phone     *string `json:"phone" validate:"omitempty,max=35"`
	City      *string `json:"city" validate:"omitempty,max=100"`
}

// Profile returns the caller's own user record
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}
	return response.Success(c, NewUserResponse(user))
}

// UpdateProfile partially updates the caller's own user record
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.InvalidBody(c, err)
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.FormatValidationErrors(err))
	}

	updates := map[string]interface{}{}
	if req.FirstName != nil {
		user.FirstName = validation.SanitizeString(*req.FirstName)
		updates["first_name"] = user.FirstName
	}
	if req.LastName != nil {
		user.LastName = validation.SanitizeString(*req.LastName)
		updates["last_name"] = user.LastName
	}
	if req.Phone != nil {
		user.Phone = validation.SanitizeString(*req.Phone)
		updates["phone"] = user.Phone
	}
	if req.City != nil {
		user.City = validation.SanitizeString(*req.City)
		updates["city"] = user.City
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(c.UserContext()).Model(user).Updates(updates).Error; err != nil {
			h.log.Error("failed to update profile", zap.Uint("user_id", user.ID), zap.Error(err))
			return response.InternalServerError(c, "Failed to update profile")
		}
	}

	return response.Success(c, NewUserResponse(user))
}

// UploadAvatar stores a new profile picture from the multipart "avatar" field
func (h *AuthHandler) UploadAvatar(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	if h.avatars == nil {
		return response.ServiceUnavailable(c, "Avatar storage is not configured")
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		return response.FieldError(c, "avatar", "No file was submitted.")
	}
	if file.Size > MaxAvatarSize {
		return response.FieldError(c, "avatar", "File is larger than 5 MB.")
	}

	f, err := file.Open()
	if err != nil {
		return response.BadRequest(c, "Failed to read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxAvatarSize+1))
	if err != nil {
		return response.BadRequest(c, "Failed to read uploaded file")
	}
	if len(data) > MaxAvatarSize {
		return response.FieldError(c, "avatar", "File is larger than 5 MB.")
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return response.FieldError(c, "avatar", "Upload a valid image.")
	}

	ctx := c.UserContext()
	url, err := h.avatars.UploadAvatar(ctx, user.ID, file.Filename, contentType, data)
	if err != nil {
		h.log.Error("failed to upload avatar", zap.Uint("user_id", user.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to upload avatar")
	}

	previous := user.AvatarURL
	if err := h.db.WithContext(ctx).Model(user).Update("avatar_url", url).Error; err != nil {
		h.log.Error("failed to save avatar url", zap.Uint("user_id", user.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to update profile")
	}
	user.AvatarURL = url

	if previous != "" {
		if err := h.avatars.DeleteByURL(ctx, previous); err != nil {
			h.log.Warn("failed to delete previous avatar", zap.String("url", previous), zap.Error(err))
		}
	}

	return response.Success(c, NewUserResponse(user))
}
