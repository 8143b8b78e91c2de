package subscription

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/edu-materials-api/services"
	"github.com/sahilchouksey/edu-materials-api/utils/middleware"
	"github.com/sahilchouksey/edu-materials-api/utils/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubscriptionHandler toggles and lists the caller's course subscriptions
type SubscriptionHandler struct {
	service *services.SubscriptionService
	log     *zap.Logger
}

// NewSubscriptionHandler creates a new subscription handler
func NewSubscriptionHandler(db *gorm.DB, log *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: services.NewSubscriptionService(db),
		log:     log,
	}
}

// ToggleRequest is the body of POST /materials/subscriptions/
type ToggleRequest struct {
	CourseID uint `json:"course_id"`
}

// SubscriptionResponse is one entry of the caller's subscription list
type SubscriptionResponse struct {
	ID          uint      `json:"id"`
	CourseID    uint      `json:"course_id"`
	CourseTitle string    `json:"course_title"`
	CreatedAt   time.Time `json:"created_at"`
}

// Toggle handles POST /materials/subscriptions/
func (h *SubscriptionHandler) Toggle(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	var req ToggleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.InvalidBody(c, err)
	}
	if req.CourseID == 0 {
		return response.FieldError(c, "course_id", "This field is required.")
	}

	result, err := h.service.Toggle(c.UserContext(), userID, req.CourseID)
	if err != nil {
		if errors.Is(err, services.ErrCourseNotFound) {
			return response.NotFound(c, "Course not found")
		}
		h.log.Error("failed to toggle subscription",
			zap.Uint("user_id", userID),
			zap.Uint("course_id", req.CourseID),
			zap.Error(err))
		return response.InternalServerError(c, "Failed to update subscription")
	}

	return response.SuccessWithMessage(c, result.Message, fiber.Map{
		"course_id":  req.CourseID,
		"subscribed": result.Subscribed,
	})
}

// List handles GET /materials/subscriptions/
func (h *SubscriptionHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "")
	}

	subs, err := h.service.ListForUser(c.UserContext(), userID)
	if err != nil {
		h.log.Error("failed to list subscriptions", zap.Uint("user_id", userID), zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch subscriptions")
	}

	items := make([]SubscriptionResponse, 0, len(subs))
	for _, s := range subs {
		items = append(items, SubscriptionResponse{
			ID:          s.ID,
			CourseID:    s.CourseID,
			CourseTitle: s.Course.Title,
			CreatedAt:   s.CreatedAt,
		})
	}

	return response.Success(c, items)
}
